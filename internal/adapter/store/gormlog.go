package store

import (
	"fmt"
	"log/slog"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries gorm reports as slow.
const slowQueryThreshold = 200 * time.Millisecond

// slogWriter adapts slog to gorm's logger.Writer.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}

func newGormLogger(logger *slog.Logger) gormlogger.Interface {
	return gormlogger.New(slogWriter{logger: logger}, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
