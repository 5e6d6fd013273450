package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/pathgo/snapshot"
)

// DDBCommitStore layers DynamoDB on top of an S3 snapshot store for
// atomic CURRENT pointer commits. This enables safe concurrent writers:
// S3 lacks compare-and-swap, so the pointer lives in a DynamoDB table
// whose conditional writes serialize commits.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket/prefix
//   - Sort key: version (number) - monotonically increasing version
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name pathgo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another writer committed a
// snapshot between this writer's read and its commit.
var ErrConcurrentCommit = errors.New("concurrent snapshot commit detected")

var _ snapshot.Store = (*DDBCommitStore)(nil)

// NewDDBCommitStore wraps s3Store with DynamoDB-backed pointer commits.
// baseURI should be "s3://bucket/prefix", used as the partition key.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Put writes an object. Writes to the CURRENT pointer go through a
// DynamoDB conditional put instead of S3.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == snapshot.CurrentKey {
		return s.commitVersion(ctx, string(data))
	}
	return s.s3Store.Put(ctx, name, data)
}

// Get reads an object. The CURRENT pointer resolves through DynamoDB.
func (s *DDBCommitStore) Get(ctx context.Context, name string) ([]byte, error) {
	if name == snapshot.CurrentKey {
		version, key, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, snapshot.ErrNotFound
		}
		return []byte(key), nil
	}
	return s.s3Store.Get(ctx, name)
}

func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.s3Store.Delete(ctx, name)
}

func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// latestVersion queries DynamoDB for the latest committed pointer.
func (s *DDBCommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in commit table")
	}
	keyAttr, ok := item["snapshot_key"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid snapshot_key attribute in commit table")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}
	return version, keyAttr.Value, nil
}

// commitVersion atomically advances the pointer using a conditional put.
func (s *DDBCommitStore) commitVersion(ctx context.Context, snapshotKey string) error {
	currentVersion, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}
	newVersion := currentVersion + 1

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: s.baseURI},
			"version":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
			"snapshot_key": &types.AttributeValueMemberS{Value: snapshotKey},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("commit pointer: %w", err)
	}
	return nil
}
