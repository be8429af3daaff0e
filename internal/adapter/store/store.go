// Package store persists normalized NEO records with gorm. It owns the
// asteroids and close_approach tables read by the query catalog, plus the
// ingestion_runs report table.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/couchcryptid/neo-data-etl/internal/config"
	"github.com/couchcryptid/neo-data-etl/internal/observability"
)

// Table names. The query catalog depends on these and on the column lists in
// schemaStatements.
const (
	TableAsteroids     = "asteroids"
	TableCloseApproach = "close_approach"
	TableRuns          = "ingestion_runs"
)

// schemaStatements create the two record tables when absent. Existing tables
// are left untouched. There are no keys: re-ingestion appends duplicates.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS asteroids (
		id BIGINT,
		name TEXT,
		absolute_magnitude_h DOUBLE,
		estimated_diameter_min_km DOUBLE,
		estimated_diameter_max_km DOUBLE,
		is_potentially_hazardous_asteroid BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS close_approach (
		neo_reference_id BIGINT,
		close_approach_date TEXT,
		relative_velocity_kmph DOUBLE,
		astronomical DOUBLE,
		miss_distance_km DOUBLE,
		miss_distance_lunar DOUBLE,
		orbiting_body TEXT
	)`,
}

// Store is an open handle on the relational store. Callers own its lifetime:
// open it for one ingestion run or query session and Close it afterwards.
type Store struct {
	db      *gorm.DB
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Open connects to the store. driver is config.DriverSQLite (dsn is a file
// path) or config.DriverMySQL (dsn is a go-sql-driver DSN; add parseTime=true
// to read ingestion_runs timestamps).
func Open(ctx context.Context, driver, dsn string, metrics *observability.Metrics, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	case config.DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get generic db handle: %w", err)
	}
	if driver == config.DriverSQLite {
		// One writer at a time; avoids "database is locked" between the
		// ingestion writer and concurrent query readers in the same process.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	logger.Debug("store opened", "driver", driver)
	return &Store{db: db, metrics: metrics, logger: logger}, nil
}

// EnsureSchema creates the record tables if they do not exist and migrates
// the run report table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for _, stmt := range schemaStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	if err := db.AutoMigrate(&IngestionRun{}); err != nil {
		return fmt.Errorf("migrate %s: %w", TableRuns, err)
	}
	return nil
}

// DB returns the underlying gorm handle for read-only query execution.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Dialect returns the gorm dialector name ("sqlite" or "mysql").
func (s *Store) Dialect() string {
	return s.db.Dialector.Name()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get generic db handle: %w", err)
	}
	return sqlDB.Close()
}
