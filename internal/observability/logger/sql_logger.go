package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// SQLLogger adapts zap to gorm's logger interface. Statements are logged
// without bound values.
type SQLLogger struct {
	log      *zap.Logger
	level    gormlogger.LogLevel
	slow     time.Duration
	skipMiss bool
}

// NewSQLLogger logs at warn level and flags statements slower than 200ms.
// A nil base resolves to the global logger on every call.
func NewSQLLogger(base *zap.Logger) *SQLLogger {
	if base != nil {
		base = base.Named("db")
	}
	return &SQLLogger{log: base, level: gormlogger.Warn, slow: 200 * time.Millisecond}
}

// SlowAfter returns a copy that flags statements slower than d. Zero
// disables slow query entries.
func (l *SQLLogger) SlowAfter(d time.Duration) *SQLLogger {
	out := *l
	out.slow = d
	return &out
}

// SkipNotFound returns a copy that does not report gorm.ErrRecordNotFound.
func (l *SQLLogger) SkipNotFound() *SQLLogger {
	out := *l
	out.skipMiss = true
	return &out
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	out := *l
	out.level = level
	return &out
}

func (l *SQLLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, args)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, args)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, args)
}

func (l *SQLLogger) message(ctx context.Context, need gormlogger.LogLevel, lvl zapcore.Level, msg string, args []interface{}) {
	if l.level < need {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger(ctx).Log(lvl, msg)
}

func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	took := time.Since(begin)
	var lvl zapcore.Level
	switch {
	case err != nil && l.level >= gormlogger.Error && !(l.skipMiss && errors.Is(err, gormlogger.ErrRecordNotFound)):
		lvl = zapcore.ErrorLevel
	case l.slow > 0 && took > l.slow && l.level >= gormlogger.Warn:
		lvl = zapcore.WarnLevel
	case l.level >= gormlogger.Info:
		lvl = zapcore.DebugLevel
	default:
		return
	}

	ce := l.logger(ctx).Check(lvl, "db.query")
	if ce == nil {
		return
	}
	stmt, rows := fc()
	verb, table := describeSQL(stmt)
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(stmt)),
		zap.String("operation", verb),
		zap.Int64("duration_ms", took.Milliseconds()),
	}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if lvl == zapcore.ErrorLevel {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// ParamsFilter drops bound values so credentials and emails stay out of logs.
func (l *SQLLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *SQLLogger) logger(ctx context.Context) *zap.Logger {
	if l.log == nil {
		return FromContext(ctx)
	}
	return WithContext(ctx, l.log)
}

// describeSQL returns the statement verb and, when it can be found, the
// table it works on. Leading CTEs are skipped.
func describeSQL(stmt string) (verb string, table string) {
	words := strings.Fields(stmt)
	verb = "UNKNOWN"
	at := -1
	for i, w := range words {
		w = strings.ToUpper(strings.Trim(w, "();"))
		if w == "SELECT" || w == "INSERT" || w == "UPDATE" || w == "DELETE" || w == "CREATE" || w == "ALTER" {
			verb, at = w, i
			break
		}
	}
	if at < 0 {
		return verb, ""
	}

	after := ""
	switch verb {
	case "SELECT", "DELETE":
		after = "FROM"
	case "INSERT":
		after = "INTO"
	case "CREATE", "ALTER":
		after = "TABLE"
	case "UPDATE":
		return verb, tableName(words, at+1)
	}
	for i := at + 1; i < len(words); i++ {
		if strings.EqualFold(words[i], after) {
			return verb, tableName(words, i+1)
		}
	}
	return verb, ""
}

func tableName(words []string, i int) string {
	if i+2 < len(words) && strings.EqualFold(words[i], "IF") {
		i += 2
		if strings.EqualFold(words[i], "EXISTS") {
			i++
		}
	}
	if i >= len(words) {
		return ""
	}
	return strings.Trim(words[i], "`\"();")
}

var _ gormlogger.Interface = (*SQLLogger)(nil)
