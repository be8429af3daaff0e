package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/domain"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
)

// Publisher produces normalized records to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic. Records are
// keyed by object id so every approach of one object lands on one partition.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, metrics: metrics, logger: logger}
}

// Publish sends records in a single WriteMessages call. Messages the broker
// rejects are counted as failed; the rest count as published.
func (p *Publisher) Publish(ctx context.Context, runID string, records []domain.Record) (domain.PublishReport, error) {
	var report domain.PublishReport
	if len(records) == 0 {
		return report, nil
	}

	msgs := make([]kafkago.Message, 0, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], runID)
		if err != nil {
			report.Failed++
			p.logger.Warn("serialize failed, skipping record", "id", records[i].Object.ID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}

	err := p.writer.WriteMessages(ctx, msgs...)
	var writeErrs kafkago.WriteErrors
	switch {
	case err == nil:
		report.Published = len(msgs)
	case errors.As(err, &writeErrs):
		for _, e := range writeErrs {
			if e == nil {
				report.Published++
			} else {
				report.Failed++
			}
		}
		p.logger.Warn("some records were not published",
			"topic", p.writer.Topic,
			"failed", writeErrs.Count(),
			"error", err,
		)
		err = nil
	default:
		report.Failed += len(msgs)
		err = fmt.Errorf("publish to %s: %w", p.writer.Topic, err)
	}

	p.metrics.RecordsPublished.Add(float64(report.Published))
	p.metrics.PublishErrors.Add(float64(report.Failed))
	return report, err
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Record into a Kafka message.
func serializeToMessage(record domain.Record, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(record.Object.ID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "orbiting_body", Value: []byte(record.Approach.OrbitingBody)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
