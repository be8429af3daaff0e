package store

import (
	"context"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/neo-data-etl/internal/domain"
)

// Write inserts one asteroids row per record, then one close_approach row per
// record, in two separate passes. Every insert is its own statement: a failed
// row is logged and skipped and earlier rows stay committed. It implements
// pipeline.Loader.
//
// Write returns early with ctx.Err() if the context is cancelled between rows.
func (s *Store) Write(ctx context.Context, records []domain.Record) (domain.WriteReport, error) {
	var report domain.WriteReport

	// Row failures are logged below with record context; keep gorm quiet.
	db := s.db.WithContext(ctx).Session(&gorm.Session{Logger: s.db.Logger.LogMode(gormlogger.Silent)})

	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := newAsteroidRow(records[i].Object)
		if err := db.Create(&row).Error; err != nil {
			report.AsteroidFailures++
			s.metrics.RowWriteErrors.WithLabelValues(TableAsteroids).Inc()
			s.logger.Warn("insert failed, skipping row",
				"table", TableAsteroids,
				"id", row.ID,
				"error", err,
			)
			continue
		}
		report.Asteroids++
		s.metrics.RowsWritten.WithLabelValues(TableAsteroids).Inc()
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := newApproachRow(records[i].Approach)
		if err := db.Create(&row).Error; err != nil {
			report.ApproachFailures++
			s.metrics.RowWriteErrors.WithLabelValues(TableCloseApproach).Inc()
			s.logger.Warn("insert failed, skipping row",
				"table", TableCloseApproach,
				"neo_reference_id", row.NeoReferenceID,
				"date", row.CloseApproachDate,
				"error", err,
			)
			continue
		}
		report.Approaches++
		s.metrics.RowsWritten.WithLabelValues(TableCloseApproach).Inc()
	}

	return report, nil
}
