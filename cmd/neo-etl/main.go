// Command neo-etl ingests the NASA NeoWs feed into a relational store and
// serves read-only queries over it.
//
// Usage:
//
//	neo-etl ingest --start 2025-01-07 --max-records 500
//	neo-etl catalog
//	neo-etl query fastest-10 --format csv
//	neo-etl filter --hazardous Yes --velocity-min 10000 --velocity-max 20000
//	neo-etl check
//	neo-etl serve
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/neo-data-etl/internal/adapter/store"
	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
	"github.com/couchcryptid/neo-data-etl/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = rootCommand(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// app carries the process-wide dependencies shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func rootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "neo-etl",
		Short:         "NASA near-Earth object feed ingestion and queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfg.StoreDriver, "store-driver", a.cfg.StoreDriver, "store driver (sqlite or mysql)")
	root.PersistentFlags().StringVar(&a.cfg.StoreDSN, "store-dsn", a.cfg.StoreDSN, "SQLite file path or MySQL DSN")

	root.AddCommand(
		ingestCommand(a),
		catalogCommand(a),
		queryCommand(a),
		filterCommand(a),
		checkCommand(a),
		serveCommand(a),
	)
	return root
}

// openStore opens the configured store and creates missing tables. The
// caller closes it.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, a.cfg.StoreDriver, a.cfg.StoreDSN, a.metrics, a.logger)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// openQueries opens the store and a query service whose catalog has been
// verified against it.
func (a *app) openQueries(ctx context.Context) (*query.Service, *store.Store, error) {
	catalog, err := query.LoadCatalog()
	if err != nil {
		return nil, nil, err
	}
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := catalog.Verify(ctx, s.DB()); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return query.NewService(catalog, s.DB(), a.metrics, a.logger), s, nil
}
