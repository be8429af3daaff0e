package main

import (
	"context"
	"errors"
	"net/http"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/neo-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/neo-data-etl/internal/domain"
)

// readiness reports ready only when every checker does.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func serveCommand(a *app) *cobra.Command {
	var ingestOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and the read-only query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), ingestOnStart)
		},
	}
	cmd.Flags().StringVar(&a.cfg.HTTPAddr, "addr", a.cfg.HTTPAddr, "listen address")
	cmd.Flags().BoolVar(&ingestOnStart, "ingest-on-start", false, "run one ingestion in the background; /readyz waits for it")
	return cmd
}

func (a *app) serve(ctx context.Context, ingestOnStart bool) error {
	svc, s, err := a.openQueries(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	ready := readiness{s}
	g, gctx := errgroup.WithContext(ctx)

	if ingestOnStart {
		p, closePublisher, err := a.newPipeline(s)
		if err != nil {
			return err
		}
		defer closePublisher()
		ready = append(ready, p)

		start := a.cfg.StartDate
		if start.IsZero() {
			start = domain.Today()
		}
		g.Go(func() error {
			// A failed ingestion leaves the API serving whatever is stored.
			if _, err := p.Run(gctx, start, a.cfg.MaxRecords); err != nil && gctx.Err() == nil {
				a.logger.Error("ingestion error", "error", err)
			}
			return nil
		})
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, ready, svc, s, a.logger)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	a.logger.Info("shutdown complete")
	return err
}
