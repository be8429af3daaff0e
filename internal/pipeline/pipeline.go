package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/domain"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
)

// Extractor walks the feed from start until the records counted by count
// reach budget or the feed has no next page. count sees every page as soon
// as it is fetched. On error it returns the pages fetched so far.
type Extractor interface {
	Extract(ctx context.Context, start time.Time, budget int, count func(domain.FeedPage) int) ([]domain.FeedPage, error)
}

// Normalizer flattens one feed page into records and drops.
type Normalizer interface {
	Normalize(page domain.FeedPage) domain.PageResult
}

// Loader writes records to the store.
type Loader interface {
	Write(ctx context.Context, records []domain.Record) (domain.WriteReport, error)
}

// Publisher forwards records to a downstream topic.
type Publisher interface {
	Publish(ctx context.Context, runID string, records []domain.Record) (domain.PublishReport, error)
}

// RunRecorder persists run summaries.
type RunRecorder interface {
	SaveRun(ctx context.Context, summary domain.RunSummary) error
}

// Option configures optional pipeline stages.
type Option func(*Pipeline)

// WithPublisher publishes every stored batch of records after the write.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithRecorder stores the summary of every run.
func WithRecorder(r RunRecorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// Pipeline runs one ingestion at a time: fetch and normalize pages until the
// record budget is met, write both tables, then optionally publish.
type Pipeline struct {
	extractor  Extractor
	normalizer Normalizer
	loader     Loader
	publisher  Publisher
	recorder   RunRecorder
	logger     *slog.Logger
	metrics    *observability.Metrics
	completed  atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, n Normalizer, l Loader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  e,
		normalizer: n,
		loader:     l,
		logger:     logger,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once at least one run has finished.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.completed.Load() {
		return errors.New("no ingestion run has completed yet")
	}
	return nil
}

// Run performs one ingestion run starting at the start date. Fetch failures
// end the fetch loop but not the run: whatever was fetched is still written.
// Run returns an error only when ctx is cancelled; the summary is filled in
// as far as the run got either way.
func (p *Pipeline) Run(ctx context.Context, start time.Time, budget int) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		StartDate: start.Format(config.DateLayout),
		Budget:    budget,
		StartedAt: domain.Now(),
		Dropped:   make(map[domain.DropReason]int, len(domain.DropReasons)),
	}
	logger := p.logger.With("run_id", summary.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	logger.Info("ingestion started", "start_date", summary.StartDate, "budget", budget)

	var results []domain.PageResult
	pages, err := p.extractor.Extract(ctx, start, budget, func(page domain.FeedPage) int {
		res := p.normalizer.Normalize(page)
		results = append(results, res)
		return len(res.Records)
	})
	summary.Pages = len(pages)
	for _, page := range pages {
		summary.Objects += page.ObjectCount()
	}
	if err != nil {
		summary.Interrupted = true
		summary.FetchError = err.Error()
		if ctx.Err() != nil {
			return p.finish(ctx, logger, summary), ctx.Err()
		}
		logger.Warn("feed fetch ended early, continuing with partial data",
			"pages", summary.Pages,
			"objects", summary.Objects,
			"error", err,
		)
	}

	records := p.collect(logger, results, &summary)

	report, err := p.loader.Write(ctx, records)
	summary.AsteroidRows = report.Asteroids
	summary.AsteroidFailures = report.AsteroidFailures
	summary.ApproachRows = report.Approaches
	summary.ApproachFailures = report.ApproachFailures
	if err != nil {
		logger.Error("store write interrupted", "error", err)
		return p.finish(ctx, logger, summary), err
	}

	if p.publisher != nil && len(records) > 0 {
		pub, err := p.publisher.Publish(ctx, summary.RunID, records)
		summary.Published = pub.Published
		summary.PublishFailures = pub.Failed
		if err != nil {
			if ctx.Err() != nil {
				return p.finish(ctx, logger, summary), ctx.Err()
			}
			logger.Error("publish failed", "error", err)
		}
	}

	summary = p.finish(ctx, logger, summary)
	p.completed.Store(true)
	return summary, nil
}

// collect gathers the records of every normalized page and accounts for the
// drops.
func (p *Pipeline) collect(logger *slog.Logger, results []domain.PageResult, summary *domain.RunSummary) []domain.Record {
	records := make([]domain.Record, 0, summary.Objects)
	for _, res := range results {
		for _, d := range res.Drops {
			summary.Dropped[d.Reason]++
			p.metrics.RecordsDropped.WithLabelValues(string(d.Reason)).Inc()
			logger.Warn("object dropped",
				"bucket", d.Bucket,
				"id", d.ObjectID,
				"reason", d.Reason,
				"field", d.Field,
			)
		}
		records = append(records, res.Records...)
	}
	summary.Normalized = len(records)
	p.metrics.RecordsNormalized.Add(float64(len(records)))
	return records
}

// finish stamps, logs and records the summary. Recording uses a context
// detached from cancellation so interrupted runs are still reported.
func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, summary domain.RunSummary) domain.RunSummary {
	summary.FinishedAt = domain.Now()
	elapsed := summary.FinishedAt.Sub(summary.StartedAt)
	p.metrics.RunDuration.Observe(elapsed.Seconds())

	attrs := []any{
		"pages", summary.Pages,
		"objects", summary.Objects,
		"normalized", summary.Normalized,
		"dropped", summary.TotalDropped(),
	}
	for _, reason := range domain.DropReasons {
		attrs = append(attrs, "dropped_"+string(reason), summary.Dropped[reason])
	}
	attrs = append(attrs,
		"asteroid_rows", summary.AsteroidRows,
		"asteroid_failures", summary.AsteroidFailures,
		"approach_rows", summary.ApproachRows,
		"approach_failures", summary.ApproachFailures,
		"published", summary.Published,
		"publish_failures", summary.PublishFailures,
		"interrupted", summary.Interrupted,
		"duration", elapsed,
	)
	logger.Info("ingestion finished", attrs...)

	if p.recorder != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.recorder.SaveRun(saveCtx, summary); err != nil {
			logger.Error("save run summary failed", "error", err)
		}
	}
	return summary
}
