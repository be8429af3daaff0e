package query

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/couchcryptid/neo-data-etl/internal/observability"
)

// filterMetricLabel is the query label recorded for approach filter runs.
const filterMetricLabel = "approach-filter"

// Service runs catalog queries and the approach filter against one store
// handle, recording durations.
type Service struct {
	catalog *Catalog
	db      *gorm.DB
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService creates a Service. db stays owned by the caller.
func NewService(catalog *Catalog, db *gorm.DB, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{catalog: catalog, db: db, metrics: metrics, logger: logger}
}

// Queries lists the catalog.
func (s *Service) Queries() []Query {
	return s.catalog.Queries()
}

// Run executes a catalog query by id.
func (s *Service) Run(ctx context.Context, id string) (Result, error) {
	if _, err := s.catalog.Get(id); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := s.catalog.Run(ctx, s.db, id)
	s.observe(id, start, len(res.Rows), err)
	return res, err
}

// Filter executes the approach filter.
func (s *Service) Filter(ctx context.Context, f Filter) (Result, error) {
	if err := f.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := RunFilter(ctx, s.db, f)
	s.observe(filterMetricLabel, start, len(res.Rows), err)
	return res, err
}

func (s *Service) observe(label string, start time.Time, rows int, err error) {
	elapsed := time.Since(start)
	s.metrics.QueryDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		s.logger.Error("query failed", "query", label, "error", err)
		return
	}
	s.logger.Debug("query executed", "query", label, "rows", rows, "duration", elapsed)
}
