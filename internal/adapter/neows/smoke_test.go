//go:build neows

package neows

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/neo-data-etl/internal/domain"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
)

// These tests hit the real NeoWs API and require NEO_API_KEY.
// Run with: go test -tags=neows ./internal/adapter/neows/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("NEO_API_KEY")
	if key == "" {
		t.Fatal("NEO_API_KEY must be set to run smoke tests")
	}
	return &Client{
		apiKey:     key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.nasa.gov/neo/rest/v1/feed",
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ExtractOnePage(t *testing.T) {
	c := smokeClient(t)

	pages, err := c.Extract(context.Background(), time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), 1, nil)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	page := pages[0]
	assert.NotEmpty(t, page.Next)
	assert.Positive(t, page.ObjectCount())

	res := domain.NormalizePage(page)
	assert.NotEmpty(t, res.Records)
	t.Logf("objects=%d records=%d drops=%d", page.ObjectCount(), len(res.Records), len(res.Drops))
}
