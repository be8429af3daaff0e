package neows

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/domain"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
)

// maxErrorBody bounds how much of a failed response body is kept in a StatusError.
const maxErrorBody = 512

// StatusError is returned when the feed answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("neows API error: status %d: %s", e.StatusCode, e.Body)
}

// Client walks the NeoWs feed endpoint. It implements pipeline.Extractor.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a NeoWs feed client.
func NewClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Extract fetches pages starting at start and follows links.next until the
// accumulated record count reaches budget or the feed has no next page. Each
// page is passed to count as soon as it is fetched; count returns how many
// records the page yielded. A nil count treats every object as a record. The
// page that crosses the budget is kept whole.
//
// On a failed request the pages fetched so far are returned together with the
// error. There is no retry.
func (c *Client) Extract(ctx context.Context, start time.Time, budget int, count func(domain.FeedPage) int) ([]domain.FeedPage, error) {
	if count == nil {
		count = domain.FeedPage.ObjectCount
	}
	next := c.firstPageURL(start)
	var pages []domain.FeedPage
	records := 0

	for next != "" && records < budget {
		page, err := c.fetchPage(ctx, next)
		if err != nil {
			c.metrics.FetchErrors.Inc()
			return pages, err
		}

		n := page.ObjectCount()
		records += count(page)
		pages = append(pages, page)
		c.metrics.PagesFetched.Inc()
		c.metrics.ObjectsFetched.Add(float64(n))
		c.logger.Info("feed page fetched",
			"url", redactKey(next),
			"objects", n,
			"total_records", records,
			"budget", budget,
			"has_next", page.Next != "",
		)

		next = page.Next
	}

	return pages, nil
}

func (c *Client) firstPageURL(start time.Time) string {
	params := url.Values{
		"start_date": {start.Format(config.DateLayout)},
		"api_key":    {c.apiKey},
	}
	return c.baseURL + "?" + params.Encode()
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (domain.FeedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.FeedPage{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeedPage{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.FeedPage{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	var feedResp response
	if err := dec.Decode(&feedResp); err != nil {
		return domain.FeedPage{}, fmt.Errorf("decode response: %w", err)
	}

	page := domain.FeedPage{
		URL:          pageURL,
		ElementCount: feedResp.ElementCount,
		Buckets:      feedResp.NearEarthObjects,
	}
	if feedResp.Links.Next != nil {
		page.Next = *feedResp.Links.Next
	}
	return page, nil
}

// redactKey hides the api_key query parameter so URLs can be logged.
func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// NeoWs feed response types.

type response struct {
	Links            links                         `json:"links"`
	ElementCount     int                           `json:"element_count"`
	NearEarthObjects map[string][]domain.RawObject `json:"near_earth_objects"`
}

type links struct {
	Next *string `json:"next"`
	Prev *string `json:"prev"`
	Self string  `json:"self"`
}
