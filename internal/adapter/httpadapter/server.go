package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/neo-data-etl/internal/adapter/store"
	"github.com/couchcryptid/neo-data-etl/internal/query"
)

// QueryRunner executes catalog queries and the approach filter.
type QueryRunner interface {
	Queries() []query.Query
	Run(ctx context.Context, id string) (query.Result, error)
	Filter(ctx context.Context, f query.Filter) (query.Result, error)
}

// RunLister lists stored ingestion run reports.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]store.IngestionRun, error)
}

// Server exposes health, readiness, metrics, and the read-only query API.
type Server struct {
	httpServer *http.Server
	queries    QueryRunner
	runs       RunLister
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api/v1 query routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, queries QueryRunner, runs RunLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		queries: queries,
		runs:    runs,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/queries", s.handleListQueries)
	mux.HandleFunc("GET /api/v1/queries/{id}", s.handleRunQuery)
	mux.HandleFunc("GET /api/v1/approaches", s.handleApproaches)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
