package store

import (
	"context"
	"fmt"

	"github.com/couchcryptid/neo-data-etl/internal/domain"
)

// SaveRun stores the report of a finished ingestion run.
func (s *Store) SaveRun(ctx context.Context, summary domain.RunSummary) error {
	run := newIngestionRun(summary)
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("save run %s: %w", summary.RunID, err)
	}
	return nil
}

// RecentRuns returns up to limit run reports, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]IngestionRun, error) {
	var runs []IngestionRun
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
