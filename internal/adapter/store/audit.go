package store

import (
	"context"
	"fmt"
)

// AuditReport summarizes row counts and cross-table consistency. Ingestion
// does not deduplicate and writes the two tables in separate passes, so none
// of these counts are guaranteed to be zero.
type AuditReport struct {
	Asteroids              int64 `json:"asteroids"`
	Approaches             int64 `json:"approaches"`
	DuplicateObjectIDs     int64 `json:"duplicate_object_ids"`
	OrphanApproaches       int64 `json:"orphan_approaches"`
	ObjectsWithoutApproach int64 `json:"objects_without_approach"`
}

const (
	duplicateIDsSQL = `SELECT COUNT(*) FROM (
		SELECT id FROM asteroids GROUP BY id HAVING COUNT(*) > 1
	) dup`
	orphanApproachesSQL = `SELECT COUNT(*) FROM close_approach c
		LEFT JOIN asteroids a ON a.id = c.neo_reference_id
		WHERE a.id IS NULL`
	objectsWithoutApproachSQL = `SELECT COUNT(*) FROM asteroids a
		LEFT JOIN close_approach c ON c.neo_reference_id = a.id
		WHERE c.neo_reference_id IS NULL`
)

// CountRows returns the number of rows in one of the record tables.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	switch table {
	case TableAsteroids, TableCloseApproach, TableRuns:
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	if err := s.db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Audit computes an AuditReport over the record tables.
func (s *Store) Audit(ctx context.Context) (AuditReport, error) {
	var (
		r   AuditReport
		err error
	)
	if r.Asteroids, err = s.CountRows(ctx, TableAsteroids); err != nil {
		return r, err
	}
	if r.Approaches, err = s.CountRows(ctx, TableCloseApproach); err != nil {
		return r, err
	}

	checks := []struct {
		name string
		sql  string
		dst  *int64
	}{
		{"duplicate object ids", duplicateIDsSQL, &r.DuplicateObjectIDs},
		{"orphan approaches", orphanApproachesSQL, &r.OrphanApproaches},
		{"objects without approach", objectsWithoutApproachSQL, &r.ObjectsWithoutApproach},
	}
	db := s.db.WithContext(ctx)
	for _, c := range checks {
		if err := db.Raw(c.sql).Scan(c.dst).Error; err != nil {
			return r, fmt.Errorf("audit %s: %w", c.name, err)
		}
	}
	return r, nil
}
