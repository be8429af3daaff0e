// Command mockfeed serves a deterministic imitation of the NeoWs feed for
// local ingestion runs without an API key or network access.
//
// Usage:
//
//	go run ./cmd/mockfeed -addr :8081 -start 2025-01-07 -days 14 -per-day 5
//	NEO_FEED_URL=http://localhost:8081/neo/rest/v1/feed neo-etl ingest --start 2025-01-07
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/mockfeed"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(logger); err != nil {
		logger.Error("mockfeed failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	addr := flag.String("addr", ":8081", "listen address")
	start := flag.String("start", "", "first day with data, YYYY-MM-DD (default today)")
	days := flag.Int("days", 14, "days of data")
	perDay := flag.Int("per-day", 5, "objects per day")
	pageDays := flag.Int("page-days", 7, "days per page")
	apiKey := flag.String("api-key", "", "required api_key value (any key accepted when empty)")
	missingMag := flag.Int("missing-magnitude-every", 0, "omit absolute_magnitude_h from every n-th object")
	noApproach := flag.Int("no-approach-every", 0, "empty close_approach_data on every n-th object")
	failOn := flag.Int("fail-on-page", 0, "answer the n-th request with 503")
	flag.Parse()

	if *days <= 0 || *perDay < 0 {
		flag.Usage()
		return fmt.Errorf("-days must be positive and -per-day non-negative")
	}

	first, err := config.ParseDate(*start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if first.IsZero() {
		first = time.Now().UTC()
	}

	feed := mockfeed.New(mockfeed.Options{
		Start:                 first,
		Days:                  *days,
		PerDay:                *perDay,
		PageDays:              *pageDays,
		APIKey:                *apiKey,
		MissingMagnitudeEvery: *missingMag,
		NoApproachEvery:       *noApproach,
		FailOnPage:            *failOn,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /neo/rest/v1/feed", feed)
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock feed listening", "addr", *addr, "start", first.Format(config.DateLayout), "objects", feed.TotalObjects())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("mock feed stopped", "requests", feed.Requests())
	return nil
}
