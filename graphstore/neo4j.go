package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/hupe1980/pathgo/core"
)

// Neo4jConfig holds connection settings for a Neo4j-backed adjacency store.
type Neo4jConfig struct {
	// URI is the Bolt endpoint, e.g. "neo4j://localhost:7687".
	URI string

	// Username and Password select basic auth. Leave Username empty for
	// an unauthenticated instance.
	Username string
	Password string

	// Database is the target database name. Empty selects the default.
	Database string
}

// Neo4jStore mirrors shard adjacency into a Neo4j graph. Identities become
// (:Identity {id, shard}) nodes and per-shard adjacency rows become
// [:CONNECTED {shard}] relationships, so the same logical edge held by two
// shards is kept as two relationships and each shard can be reloaded alone.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to Neo4j and verifies connectivity before returning.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j store: missing URI")
	}

	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	return &Neo4jStore{driver: driver, database: cfg.Database}, nil
}

// LoadAdjacency implements Store.
func (s *Neo4jStore) LoadAdjacency(ctx context.Context, shardID int) (Record, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	rec := make(Record)

	res, err := session.Run(ctx,
		`MATCH (n:Identity) WHERE n.shard = $shard RETURN n.id AS id`,
		map[string]any{"shard": shardID})
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	for res.Next(ctx) {
		value, _ := res.Record().Get("id")
		id, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected identity value %v", value)
		}
		rec[core.Identity(id)] = nil
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}

	res, err = session.Run(ctx,
		`MATCH (a:Identity)-[r:CONNECTED]->(b:Identity) WHERE r.shard = $shard
		 RETURN a.id AS owner, b.id AS neighbor ORDER BY owner, neighbor`,
		map[string]any{"shard": shardID})
	if err != nil {
		return nil, fmt.Errorf("load adjacency: %w", err)
	}
	for res.Next(ctx) {
		ownerVal, _ := res.Record().Get("owner")
		neighborVal, _ := res.Record().Get("neighbor")
		owner, ok1 := ownerVal.(string)
		neighbor, ok2 := neighborVal.(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unexpected adjacency row %v -> %v", ownerVal, neighborVal)
		}
		rec[core.Identity(owner)] = append(rec[core.Identity(owner)], core.Identity(neighbor))
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("load adjacency: %w", err)
	}
	return rec, nil
}

// PersistIdentity implements Store.
func (s *Neo4jStore) PersistIdentity(ctx context.Context, shardID int, id core.Identity, present bool) error {
	cypher := `MERGE (n:Identity {id: $id}) SET n.shard = $shard`
	if !present {
		cypher = `MATCH (n:Identity {id: $id}) WHERE n.shard = $shard DETACH DELETE n`
	}
	if err := s.write(ctx, cypher, map[string]any{"id": string(id), "shard": shardID}); err != nil {
		return fmt.Errorf("persist identity %q: %w", id, err)
	}
	return nil
}

// PersistEdge implements Store.
func (s *Neo4jStore) PersistEdge(ctx context.Context, shardID int, owner, neighbor core.Identity, present bool) error {
	cypher := `MERGE (a:Identity {id: $owner})
		MERGE (b:Identity {id: $neighbor})
		MERGE (a)-[:CONNECTED {shard: $shard}]->(b)`
	if !present {
		cypher = `MATCH (a:Identity {id: $owner})-[r:CONNECTED {shard: $shard}]->(b:Identity {id: $neighbor})
			DELETE r`
	}
	params := map[string]any{"owner": string(owner), "neighbor": string(neighbor), "shard": shardID}
	if err := s.write(ctx, cypher, params); err != nil {
		return fmt.Errorf("persist edge %q->%q: %w", owner, neighbor, err)
	}
	return nil
}

func (s *Neo4jStore) write(ctx context.Context, cypher string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// Close implements Store.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}
