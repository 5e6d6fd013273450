package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/pathgo"
	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/prometheusexport"
	"github.com/hupe1980/pathgo/testutil"
)

var (
	servePort    int
	serveShards  int
	servePreload int
	serveSeed    int64
	serveCache   int
	serveDebug   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	Long: `Starts an HTTP server exposing path queries, graph mutations, and
connection suggestions as JSON endpoints, plus Prometheus metrics.

With --preload N the server starts with a synthetic scale-free graph of
N identities (member-0 ... member-N-1), handy for poking at the API
without loading data first.

Endpoints:
  GET    /v1/path?from=X&to=Y[&max_depth=N][&skip_cache=true]
  POST   /v1/identities                    {"id": "alice"}
  DELETE /v1/identities/:id
  GET    /v1/identities/:id/connections
  GET    /v1/identities/:id/suggestions?limit=N
  POST   /v1/connections                   {"a": "alice", "b": "bob"}
  DELETE /v1/connections?a=X&b=Y
  GET    /v1/mutual?a=X&b=Y
  GET    /v1/stats
  GET    /healthz
  GET    /metrics

Examples:
  pathgo serve --preload 10000
  curl 'localhost:8080/v1/path?from=member-0000&to=member-4711'`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().IntVar(&serveShards, "shards", 4, "Number of shards")
	serveCmd.Flags().IntVar(&servePreload, "preload", 0, "Preload a synthetic graph with this many identities")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 42, "RNG seed for --preload")
	serveCmd.Flags().IntVar(&serveCache, "cache", 8192, "Result cache capacity")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable gin debug mode and request logging")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	collector, err := prometheusexport.NewCollector()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: register metrics: %v\n", err)
		os.Exit(1)
	}
	defer collector.Close()

	pg, err := pathgo.Graph(serveShards).
		CacheCapacity(serveCache).
		Metrics(collector).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: create graph: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	if servePreload > 0 {
		fmt.Printf("Preloading %d identities...\n", servePreload)
		ctx := context.Background()
		rng := testutil.NewRNG(serveSeed)
		ids := testutil.Identities("member", servePreload)
		for _, id := range ids {
			if _, err := pg.AddIdentity(ctx, id); err != nil {
				fmt.Fprintf(os.Stderr, "Error: preload: %v\n", err)
				os.Exit(1)
			}
		}
		for _, e := range rng.ScaleFree(ids, 3) {
			if _, err := pg.AddConnection(ctx, e.A, e.B); err != nil {
				fmt.Fprintf(os.Stderr, "Error: preload: %v\n", err)
				os.Exit(1)
			}
		}
	}

	router := newRouter(&server{pg: pg}, serveDebug)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", servePort),
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		fmt.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Listening on :%d (metrics on /metrics)\n", servePort)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRouter(srv *server, debug bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	if debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/path", srv.handleFindPath)
		v1.POST("/identities", srv.handleAddIdentity)
		v1.DELETE("/identities/:id", srv.handleRemoveIdentity)
		v1.GET("/identities/:id/connections", srv.handleConnections)
		v1.GET("/identities/:id/suggestions", srv.handleSuggestions)
		v1.POST("/connections", srv.handleAddConnection)
		v1.DELETE("/connections", srv.handleRemoveConnection)
		v1.GET("/mutual", srv.handleMutual)
		v1.GET("/stats", srv.handleStats)
	}
	router.GET("/healthz", srv.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// requestID tags every request for log correlation, honoring an
// X-Request-ID set by an upstream proxy.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

type server struct {
	pg *pathgo.PathGo
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps facade errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var unknown *pathgo.ErrUnknownIdentity
	var invalid *pathgo.ErrInvalidEdge
	switch {
	case errors.As(err, &unknown):
		status = http.StatusNotFound
	case errors.As(err, &invalid), errors.Is(err, pathgo.ErrEmptyIdentity):
		status = http.StatusBadRequest
	case errors.Is(err, pathgo.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	c.JSON(status, errorResponse{Error: err.Error()})
}

type pathResponse struct {
	Found     bool            `json:"found"`
	Degrees   int             `json:"degrees"`
	Path      []core.Identity `json:"path,omitempty"`
	Outcome   string          `json:"outcome"`
	FromCache bool            `json:"from_cache"`
	ElapsedMS float64         `json:"elapsed_ms"`
}

func (s *server) handleFindPath(c *gin.Context) {
	from := core.Identity(c.Query("from"))
	to := core.Identity(c.Query("to"))

	var optFns []func(o *pathgo.FindPathOptions)
	if raw := c.Query("max_depth"); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil || depth < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "max_depth must be a positive integer"})
			return
		}
		optFns = append(optFns, func(o *pathgo.FindPathOptions) { o.MaxDepth = depth })
	}
	if c.Query("skip_cache") == "true" {
		optFns = append(optFns, func(o *pathgo.FindPathOptions) { o.SkipCache = true })
	}

	result, err := s.pg.FindPath(c.Request.Context(), from, to, optFns...)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pathResponse{
		Found:     result.Found,
		Degrees:   result.Degrees,
		Path:      result.Path,
		Outcome:   result.Outcome.String(),
		FromCache: result.FromCache,
		ElapsedMS: float64(result.Elapsed.Microseconds()) / 1000,
	})
}

type identityRequest struct {
	ID core.Identity `json:"id" binding:"required"`
}

func (s *server) handleAddIdentity(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	created, err := s.pg.AddIdentity(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"id": req.ID, "created": created})
}

func (s *server) handleRemoveIdentity(c *gin.Context) {
	id := core.Identity(c.Param("id"))

	removed, err := s.pg.RemoveIdentity(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "removed": removed})
}

func (s *server) handleConnections(c *gin.Context) {
	id := core.Identity(c.Param("id"))

	connections, err := s.pg.Connections(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "connections": connections})
}

func (s *server) handleSuggestions(c *gin.Context) {
	id := core.Identity(c.Param("id"))

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	suggestions, err := s.pg.SuggestConnections(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "suggestions": suggestions})
}

type connectionRequest struct {
	A core.Identity `json:"a" binding:"required"`
	B core.Identity `json:"b" binding:"required"`
}

func (s *server) handleAddConnection(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	created, err := s.pg.AddConnection(c.Request.Context(), req.A, req.B)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"a": req.A, "b": req.B, "created": created})
}

func (s *server) handleRemoveConnection(c *gin.Context) {
	a := core.Identity(c.Query("a"))
	b := core.Identity(c.Query("b"))

	removed, err := s.pg.RemoveConnection(c.Request.Context(), a, b)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"a": a, "b": b, "removed": removed})
}

func (s *server) handleMutual(c *gin.Context) {
	a := core.Identity(c.Query("a"))
	b := core.Identity(c.Query("b"))

	mutual, err := s.pg.MutualConnections(c.Request.Context(), a, b)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"a": a, "b": b, "mutual": mutual})
}

func (s *server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.pg.Stats())
}

func (s *server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
