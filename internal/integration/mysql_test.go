//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/neo-data-etl/internal/adapter/neows"
	"github.com/couchcryptid/neo-data-etl/internal/adapter/store"
	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/domain"
	"github.com/couchcryptid/neo-data-etl/internal/mockfeed"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
	"github.com/couchcryptid/neo-data-etl/internal/pipeline"
	"github.com/couchcryptid/neo-data-etl/internal/query"
)

// TestMySQLStore ingests into MySQL and runs every catalog query plus the
// approach filter against the result.
func TestMySQLStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	dsn := startMySQL(ctx, t)
	_, feedURL := startFeed(t, mockfeed.Options{Start: testStart, Days: 14, PerDay: 4, MissingMagnitudeEvery: 10})

	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()

	s, err := store.Open(ctx, config.DriverMySQL, dsn, metrics, logger)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema creation is idempotent")
	require.NoError(t, s.CheckReadiness(ctx))

	client := neows.NewClient(feedURL, "DEMO_KEY", 10*time.Second, metrics, logger)
	p := pipeline.New(client, pipeline.NewNormalizer(), s, logger, metrics, pipeline.WithRecorder(s))

	summary, err := p.Run(ctx, testStart, 1000)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 56, summary.Objects)
	assert.Equal(t, 5, summary.Dropped[domain.DropMissingField])
	assert.Equal(t, 51, summary.AsteroidRows)
	assert.Equal(t, 51, summary.ApproachRows)

	audit, err := s.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(51), audit.Asteroids)
	assert.Equal(t, int64(51), audit.Approaches)
	assert.Zero(t, audit.DuplicateObjectIDs)
	assert.Zero(t, audit.OrphanApproaches)

	runs, err := s.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].ID)
	assert.Equal(t, summary.StartedAt.Unix(), runs[0].StartedAt.Unix())

	catalog, err := query.LoadCatalog()
	require.NoError(t, err)
	require.NoError(t, catalog.Verify(ctx, s.DB()))

	for _, q := range catalog.Queries() {
		t.Run(q.ID, func(t *testing.T) {
			res, err := catalog.Run(ctx, s.DB(), q.ID)
			require.NoError(t, err)
			assert.NotEmpty(t, res.Columns)
		})
	}

	res, err := catalog.Run(ctx, s.DB(), "approaches-per-month")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2025-01", res.Rows[0][0])

	f := query.DefaultFilter()
	f.Date = "2025-01-08"
	res, err = query.RunFilter(ctx, s.DB(), f)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 4)

	f = query.DefaultFilter()
	f.Hazardous = query.HazardYes
	res, err = query.RunFilter(ctx, s.DB(), f)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Rows)
}
