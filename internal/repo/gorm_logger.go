package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger sends GORM's output to the global zerolog logger. Failed and
// slow queries are logged with their SQL, always without bound values.
type gormLogger struct {
	level logger.LogLevel
	slow  time.Duration
}

func newGormLogger(slow time.Duration) gormLogger {
	return gormLogger{level: logger.Warn, slow: slow}
}

func (l gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	l.level = level
	return l
}

func (l gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.event(ctx, log.Info()).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.event(ctx, log.Warn()).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.event(ctx, log.Error()).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	var ev *zerolog.Event
	msg := "db query"
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		ev, msg = log.Error().Err(err), "db query failed"
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		ev, msg = log.Warn().Dur("threshold", l.slow), "slow db query"
	case l.level >= logger.Info:
		ev = log.Debug()
	default:
		return
	}
	sql, rows := fc()
	l.event(ctx, ev).
		Str("sql", sql).
		Int64("rows", rows).
		Dur("elapsed", elapsed).
		Msg(msg)
}

// ParamsFilter drops bound values so logged SQL keeps its placeholders.
func (l gormLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func (l gormLogger) event(ctx context.Context, ev *zerolog.Event) *zerolog.Event {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev = ev.Str("trace_id", sc.TraceID().String())
	}
	return ev
}
