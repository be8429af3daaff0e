package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/neo-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/neo-data-etl/internal/adapter/neows"
	"github.com/couchcryptid/neo-data-etl/internal/adapter/store"
	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/domain"
	"github.com/couchcryptid/neo-data-etl/internal/pipeline"
)

func ingestCommand(a *app) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the feed from a start date and store normalized records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if start != "" {
				d, err := config.ParseDate(start)
				if err != nil {
					return err
				}
				a.cfg.StartDate = d
			}
			if err := config.ValidateMaxRecords(a.cfg.MaxRecords); err != nil {
				return err
			}
			summary, err := a.ingest(cmd.Context())
			if err != nil {
				return err
			}
			return writeSummary(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "first feed date, YYYY-MM-DD (default NEO_START_DATE or today)")
	cmd.Flags().IntVar(&a.cfg.MaxRecords, "max-records", a.cfg.MaxRecords, "stop fetching once this many records have been normalized")
	cmd.Flags().StringVar(&a.cfg.FeedURL, "feed-url", a.cfg.FeedURL, "NeoWs feed endpoint")
	cmd.Flags().BoolVar(&a.cfg.KafkaEnabled, "publish", a.cfg.KafkaEnabled, "publish records to Kafka after storing them")
	return cmd
}

// ingest runs one ingestion against a freshly opened store.
func (a *app) ingest(ctx context.Context) (domain.RunSummary, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return domain.RunSummary{}, err
	}
	defer s.Close()

	p, closePublisher, err := a.newPipeline(s)
	if err != nil {
		return domain.RunSummary{}, err
	}
	defer closePublisher()

	start := a.cfg.StartDate
	if start.IsZero() {
		start = domain.Today()
	}
	return p.Run(ctx, start, a.cfg.MaxRecords)
}

// newPipeline wires the feed client, the store and, when enabled, the Kafka
// publisher. The returned func closes the publisher.
func (a *app) newPipeline(s *store.Store) (*pipeline.Pipeline, func(), error) {
	client := neows.NewClient(a.cfg.FeedURL, a.cfg.APIKey, a.cfg.HTTPTimeout, a.metrics, a.logger)
	opts := []pipeline.Option{pipeline.WithRecorder(s)}
	closer := func() {}

	if a.cfg.KafkaEnabled {
		if len(a.cfg.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("publishing requires KAFKA_BROKERS")
		}
		pub := kafkaadapter.NewPublisher(a.cfg, a.metrics, a.logger)
		opts = append(opts, pipeline.WithPublisher(pub))
		closer = func() {
			if err := pub.Close(); err != nil {
				a.logger.Error("kafka publisher close error", "error", err)
			}
		}
		a.logger.Info("kafka publishing enabled", "topic", a.cfg.KafkaTopic, "brokers", a.cfg.KafkaBrokers)
	}

	return pipeline.New(client, pipeline.NewNormalizer(), s, a.logger, a.metrics, opts...), closer, nil
}

func writeSummary(w io.Writer, summary domain.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
