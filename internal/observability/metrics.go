package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion and queries.
type Metrics struct {
	PagesFetched      prometheus.Counter
	ObjectsFetched    prometheus.Counter
	FetchErrors       prometheus.Counter
	RecordsNormalized prometheus.Counter
	RecordsDropped    *prometheus.CounterVec // labels: reason={no_close_approach,missing_field,malformed_field}
	PipelineRunning   prometheus.Gauge

	// Store metrics.
	RowsWritten    *prometheus.CounterVec // labels: table={asteroids,close_approach}
	RowWriteErrors *prometheus.CounterVec // labels: table={asteroids,close_approach}

	// Kafka publishing metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter

	RunDuration   prometheus.Histogram
	QueryDuration *prometheus.HistogramVec // labels: query=<catalog id or "approach-filter">
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PagesFetched,
		m.ObjectsFetched,
		m.FetchErrors,
		m.RecordsNormalized,
		m.RecordsDropped,
		m.PipelineRunning,
		m.RowsWritten,
		m.RowWriteErrors,
		m.RecordsPublished,
		m.PublishErrors,
		m.RunDuration,
		m.QueryDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "pages_fetched_total",
			Help:      "Total feed pages fetched successfully.",
		}),
		ObjectsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "objects_fetched_total",
			Help:      "Total raw objects received from the feed.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "fetch_errors_total",
			Help:      "Fetch loops ended early by a transport, status, or decode error.",
		}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "records_normalized_total",
			Help:      "Total objects flattened into records.",
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "records_dropped_total",
			Help:      "Objects rejected by the normalizer, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "neo_etl",
			Name:      "pipeline_running",
			Help:      "1 while an ingestion run is active, 0 otherwise.",
		}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "rows_written_total",
			Help:      "Rows inserted into the store, by table.",
		}, []string{"table"}),
		RowWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "row_write_errors_total",
			Help:      "Row inserts that failed and were skipped, by table.",
		}, []string{"table"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "records_published_total",
			Help:      "Records published to the Kafka topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neo_etl",
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish calls.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "neo_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete ingestion run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "neo_etl",
			Name:      "query_duration_seconds",
			Help:      "Catalog and filter query duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"query"}),
	}
}
