//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/couchcryptid/neo-data-etl/internal/mockfeed"
)

var testStart = time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("neo-test"))
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start kafka container")

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// startMySQL runs a MySQL server and returns a DSN that parses DATETIME
// columns into time.Time.
func startMySQL(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("neo_database"),
		tcmysql.WithUsername("neo"),
		tcmysql.WithPassword("neo"),
	)
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start mysql container")

	dsn, err := c.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)
	return dsn
}

// startFeed serves a generated feed for the lifetime of the test.
func startFeed(t *testing.T, opts mockfeed.Options) (*mockfeed.Feed, string) {
	t.Helper()
	feed := mockfeed.New(opts)
	srv := httptest.NewServer(feed)
	t.Cleanup(srv.Close)
	return feed, srv.URL + "/neo/rest/v1/feed"
}
