package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// maxLoggedSQL caps statements in log entries; row inserts carry whole
// encoded rows
const maxLoggedSQL = 512

// GormLogger routes gorm output to a module logger. Statements go to TRACE,
// slow statements and failures to WARN. gorm's own level is ignored except
// for Silent, which gorm uses for internal sessions.
type GormLogger struct {
	log    Logger
	slow   time.Duration
	silent bool
}

// NewGormLogger returns a gorm logger writing to log. Statements slower
// than slow are reported; zero disables the check.
func NewGormLogger(log Logger, slow time.Duration) *GormLogger {
	if log == nil {
		log = Global().Module("sql")
	}
	return &GormLogger{log: log, slow: slow}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.silent = level == gormlogger.Silent
	return &c
}

func (g *GormLogger) Info(_ context.Context, format string, args ...any) {
	if !g.silent {
		g.log.Debug(fmt.Sprintf(format, args...))
	}
}

func (g *GormLogger) Warn(_ context.Context, format string, args ...any) {
	if !g.silent {
		g.log.Warn(fmt.Sprintf(format, args...))
	}
}

func (g *GormLogger) Error(_ context.Context, format string, args ...any) {
	if !g.silent {
		g.log.Error(fmt.Sprintf(format, args...))
	}
}

func (g *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.silent {
		return
	}
	elapsed := time.Since(begin)
	stmt, rows := fc()
	if len(stmt) > maxLoggedSQL {
		stmt = stmt[:maxLoggedSQL] + "..."
	}
	fields := []Field{String("sql", stmt), Int64("rows", rows), Duration("elapsed", elapsed)}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		g.log.Warn("sql statement failed", append(fields, Error(err))...)
		return
	}
	if g.slow > 0 && elapsed > g.slow {
		g.log.Warn("slow sql statement", append(fields, Duration("threshold", g.slow))...)
		return
	}
	g.log.Trace("sql statement", fields...)
}
