package httpadapter_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/neo-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/neo-data-etl/internal/adapter/store"
	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/domain"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
	"github.com/couchcryptid/neo-data-etl/internal/query"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type failingRuns struct{}

func (failingRuns) RecentRuns(context.Context, int) ([]store.IngestionRun, error) {
	return nil, errors.New("database is locked")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer serves a SQLite store holding two approaches and one run.
func newTestServer(t *testing.T, readyErr error) *httpadapter.Server {
	t.Helper()
	ctx := context.Background()
	metrics := observability.NewMetricsForTesting()

	s, err := store.Open(ctx, config.DriverSQLite, filepath.Join(t.TempDir(), "neo.db"), metrics, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))

	_, err = s.Write(ctx, []domain.Record{
		{
			Object:   domain.NearEarthObject{ID: 1, ReferenceID: 1, Name: "(2020 AB)", DiameterMinKm: 0.1, DiameterMaxKm: 0.2, Hazardous: true},
			Approach: domain.CloseApproach{ReferenceID: 1, Date: "2025-01-07", VelocityKmph: 15000, MissAstronomical: 0.01, MissLunar: 3.9, OrbitingBody: "Earth"},
		},
		{
			Object:   domain.NearEarthObject{ID: 2, ReferenceID: 2, Name: "(2021 CD)", DiameterMinKm: 1, DiameterMaxKm: 2},
			Approach: domain.CloseApproach{ReferenceID: 2, Date: "2025-01-08", VelocityKmph: 170000, MissAstronomical: 0.3, MissLunar: 116, OrbitingBody: "Earth"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, domain.RunSummary{
		RunID:     "run-1",
		StartDate: "2025-01-07",
		StartedAt: time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC),
	}))

	catalog, err := query.LoadCatalog()
	require.NoError(t, err)
	svc := query.NewService(catalog, s.DB(), metrics, discardLogger())

	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, svc, s, discardLogger())
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(t, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(t, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(t, errors.New("store unreachable")), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(t, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestListQueries(t *testing.T) {
	rec := get(newTestServer(t, nil), "/api/v1/queries")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Queries []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"queries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Queries, 20)
	assert.Equal(t, "approach-count", body.Queries[0].ID)
	assert.NotContains(t, rec.Body.String(), "SELECT", "statements are not exposed")
}

func TestRunQuery_JSON(t *testing.T) {
	rec := get(newTestServer(t, nil), "/api/v1/queries/fastest-approach")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"name", "relative_velocity_kmph"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "(2021 CD)", res.Rows[0][0])
	assert.InDelta(t, 170000.0, res.Rows[0][1], 0)
}

func TestRunQuery_CSV(t *testing.T) {
	rec := get(newTestServer(t, nil), "/api/v1/queries/approach-count?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="approach-count.csv"`)

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "approach_count"}, rows[0])
}

func TestRunQuery_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, get(srv, "/api/v1/queries/drop-tables").Code)
	assert.Equal(t, http.StatusBadRequest, get(srv, "/api/v1/queries/approach-count?format=xml").Code)
}

func TestApproaches(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		rows   int
	}{
		{"defaults", "/api/v1/approaches", 1},
		{"wide velocity range", "/api/v1/approaches?velocity_max=200000", 2},
		{"hazardous only", "/api/v1/approaches?velocity_max=200000&hazardous=Yes", 1},
		{"by date", "/api/v1/approaches?velocity_max=200000&date=2025-01-08", 1},
		{"large objects", "/api/v1/approaches?velocity_max=200000&diameter_min=1.5", 1},
		{"nothing matches", "/api/v1/approaches?lunar_max=0.5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(srv, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res struct {
				Columns []string `json:"columns"`
				Rows    [][]any  `json:"rows"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Len(t, res.Columns, 10)
			assert.Len(t, res.Rows, tt.rows)
		})
	}
}

func TestApproaches_CSV(t *testing.T) {
	rec := get(newTestServer(t, nil), "/api/v1/approaches?velocity_max=200000&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filtered_neo_data.csv")

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestApproaches_InvalidFilter(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, target := range []string{
		"/api/v1/approaches?velocity_min=fast",
		"/api/v1/approaches?date=yesterday",
		"/api/v1/approaches?hazardous=maybe",
		"/api/v1/approaches?velocity_min=500&velocity_max=100",
		"/api/v1/approaches?au_max=-1",
	} {
		rec := get(srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "invalid filter")
	}
}

func TestRuns(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := get(srv, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []store.IngestionRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-1", body.Runs[0].ID)

	assert.Equal(t, http.StatusBadRequest, get(srv, "/api/v1/runs?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(srv, "/api/v1/runs?limit=many").Code)
}

func TestRuns_StoreError(t *testing.T) {
	catalog, err := query.LoadCatalog()
	require.NoError(t, err)
	srv := httpadapter.NewServer(":0", &mockReadiness{}, query.NewService(catalog, nil, observability.NewMetricsForTesting(), discardLogger()),
		failingRuns{}, discardLogger())

	rec := get(srv, "/api/v1/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}
