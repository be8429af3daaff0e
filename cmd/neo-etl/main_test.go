package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/mockfeed"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
)

var testStart = time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

// newTestApp points a fresh app at a SQLite file and a generated feed of six
// objects over two days.
func newTestApp(t *testing.T) *app {
	t.Helper()
	feed := mockfeed.New(mockfeed.Options{Start: testStart, Days: 2, PerDay: 3})
	srv := httptest.NewServer(feed)
	t.Cleanup(srv.Close)

	return &app{
		cfg: &config.Config{
			FeedURL:         srv.URL + "/neo/rest/v1/feed",
			APIKey:          "DEMO_KEY",
			MaxRecords:      1000,
			HTTPTimeout:     5 * time.Second,
			StoreDriver:     config.DriverSQLite,
			StoreDSN:        filepath.Join(t.TempDir(), "neo.db"),
			KafkaTopic:      "neo-close-approaches",
			HTTPAddr:        "127.0.0.1:0",
			ShutdownTimeout: time.Second,
		},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NewMetricsForTesting(),
	}
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCommand(a)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestCommand(t *testing.T) {
	a := newTestApp(t)

	out, err := execute(t, a, "ingest", "--start", "2025-01-07")
	require.NoError(t, err)

	var summary struct {
		RunID      string `json:"run_id"`
		StartDate  string `json:"start_date"`
		Objects    int    `json:"objects"`
		Normalized int    `json:"normalized"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "2025-01-07", summary.StartDate)
	assert.Equal(t, 6, summary.Objects)
	assert.Equal(t, 6, summary.Normalized)
}

func TestIngestCommand_InvalidFlags(t *testing.T) {
	a := newTestApp(t)

	_, err := execute(t, a, "ingest", "--start", "07/01/2025")
	require.Error(t, err)

	_, err = execute(t, newTestApp(t), "ingest", "--max-records", "0")
	require.Error(t, err)
}

func TestIngestCommand_PublishWithoutBrokers(t *testing.T) {
	_, err := execute(t, newTestApp(t), "ingest", "--start", "2025-01-07", "--publish")
	require.ErrorContains(t, err, "KAFKA_BROKERS")
}

func TestCatalogCommand(t *testing.T) {
	out, err := execute(t, newTestApp(t), "catalog")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 21)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "approach-count")
}

func TestQueryCommand(t *testing.T) {
	a := newTestApp(t)
	_, err := execute(t, a, "ingest", "--start", "2025-01-07")
	require.NoError(t, err)

	out, err := execute(t, a, "query", "approach-count", "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "name,approach_count", lines[0])

	out, err = execute(t, a, "query", "hazard-split")
	require.NoError(t, err)
	assert.Contains(t, out, `"columns"`)
}

func TestQueryCommand_Errors(t *testing.T) {
	a := newTestApp(t)

	_, err := execute(t, a, "query", "drop-everything")
	require.Error(t, err)

	_, err = execute(t, a, "query", "approach-count", "--format", "xml")
	require.ErrorContains(t, err, "unknown format")

	_, err = execute(t, a, "query")
	require.Error(t, err)
}

func TestFilterCommand(t *testing.T) {
	a := newTestApp(t)
	_, err := execute(t, a, "ingest", "--start", "2025-01-07")
	require.NoError(t, err)

	out, err := execute(t, a, "filter", "--hazardous", "Yes")
	require.NoError(t, err)

	var res struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Columns, 10)
	assert.Len(t, res.Rows, 1)

	out, err = execute(t, a, "filter", "--date", "2025-01-08", "--format", "csv")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 4)
}

func TestFormatCheckedBeforeStoreOpens(t *testing.T) {
	for _, args := range [][]string{
		{"query", "approach-count", "--format", "xml"},
		{"filter", "--format", "xml"},
	} {
		a := newTestApp(t)
		_, err := execute(t, a, args...)
		require.ErrorContains(t, err, "unknown format", args)
		assert.NoFileExists(t, a.cfg.StoreDSN, "store is not opened for a bad format")
	}
}

func TestFilterCommand_Invalid(t *testing.T) {
	a := newTestApp(t)

	_, err := execute(t, a, "filter", "--hazardous", "maybe")
	require.Error(t, err)

	_, err = execute(t, a, "filter", "--velocity-min", "500", "--velocity-max", "100")
	require.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	a := newTestApp(t)

	out, err := execute(t, a, "check", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  query catalog")
	assert.Contains(t, out, "(none recorded)")

	for range 2 {
		_, err = execute(t, a, "ingest", "--start", "2025-01-07")
		require.NoError(t, err)
	}

	out, err = execute(t, a, "check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "6 duplicate ids")

	out, err = execute(t, a, "check", "--strict")
	require.Error(t, err)
	assert.Contains(t, out, "FAIL  table consistency")
	assert.Contains(t, out, "6 object ids appear more than once")
}

type stubReadiness struct{ err error }

func (s stubReadiness) CheckReadiness(context.Context) error { return s.err }

func TestReadiness(t *testing.T) {
	ctx := context.Background()
	notReady := errors.New("no completed run")

	assert.NoError(t, readiness{}.CheckReadiness(ctx))
	assert.NoError(t, readiness{stubReadiness{}, stubReadiness{}}.CheckReadiness(ctx))
	assert.ErrorIs(t, readiness{stubReadiness{}, stubReadiness{err: notReady}}.CheckReadiness(ctx), notReady)
}

func TestServe_StopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, true) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
