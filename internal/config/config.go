package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DateLayout is the feed's calendar date format.
const DateLayout = "2006-01-02"

// Supported store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedURL     string
	APIKey      string
	StartDate   time.Time // zero means "today"
	MaxRecords  int
	HTTPTimeout time.Duration

	StoreDriver string
	StoreDSN    string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("NEO_HTTP_TIMEOUT", "30s"))
	if err != nil || httpTimeout <= 0 {
		return nil, errors.New("invalid NEO_HTTP_TIMEOUT")
	}

	maxRecords, err := parseMaxRecords()
	if err != nil {
		return nil, err
	}

	startDate, err := ParseDate(os.Getenv("NEO_START_DATE"))
	if err != nil {
		return nil, fmt.Errorf("invalid NEO_START_DATE: %w", err)
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		FeedURL:     sharedcfg.EnvOrDefault("NEO_FEED_URL", "https://api.nasa.gov/neo/rest/v1/feed"),
		APIKey:      sharedcfg.EnvOrDefault("NEO_API_KEY", "DEMO_KEY"),
		StartDate:   startDate,
		MaxRecords:  maxRecords,
		HTTPTimeout: httpTimeout,

		StoreDriver: strings.ToLower(sharedcfg.EnvOrDefault("STORE_DRIVER", DriverSQLite)),
		StoreDSN:    sharedcfg.EnvOrDefault("STORE_DSN", "neo_database.db"),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "neo-close-approaches"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("NEO_FEED_URL is required")
	}
	if cfg.StoreDriver != DriverSQLite && cfg.StoreDriver != DriverMySQL {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMySQL, cfg.StoreDriver)
	}
	if cfg.StoreDSN == "" {
		return nil, errors.New("STORE_DSN is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

// ParseDate parses a YYYY-MM-DD date in UTC. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

// maxRecordsLimit caps a single run; the whole run is held in memory.
const maxRecordsLimit = 100000

func parseMaxRecords() (int, error) {
	s := os.Getenv("NEO_MAX_RECORDS")
	if s == "" {
		return 1000, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > maxRecordsLimit {
		return 0, fmt.Errorf("invalid NEO_MAX_RECORDS: must be between 1 and %d", maxRecordsLimit)
	}
	return n, nil
}

// ValidateMaxRecords applies the NEO_MAX_RECORDS bounds to a value from another
// source, such as a CLI flag.
func ValidateMaxRecords(n int) error {
	if n <= 0 || n > maxRecordsLimit {
		return fmt.Errorf("max records must be between 1 and %d", maxRecordsLimit)
	}
	return nil
}
