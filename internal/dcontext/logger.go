package dcontext

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

var goVersion = runtime.Version()

// Logger is the leveled, field-aware logger carried by gateway contexts.
type Logger interface {
	logrus.FieldLogger
}

type loggerKey struct{}

// WithLogger returns a context carrying logger. Loggers other than a
// *logrus.Entry are ignored by GetLogger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger of ctx with the values of keys added as
// fields. Keys missing from ctx are skipped. Without a logger in ctx, the
// standard logrus logger is used, tagged with the instance id when ctx has
// one.
func GetLogger(ctx context.Context, keys ...any) Logger {
	return entry(ctx, keys...)
}

// GetLoggerWithField is GetLogger plus one explicit field. ctx is not
// modified.
func GetLoggerWithField(ctx context.Context, key, value any, keys ...any) Logger {
	return entry(ctx, keys...).WithField(fmt.Sprint(key), value)
}

// GetLoggerWithFields is GetLogger plus explicit fields. ctx is not modified.
func GetLoggerWithFields(ctx context.Context, fields map[any]any, keys ...any) Logger {
	extra := make(logrus.Fields, len(fields))
	for k, v := range fields {
		extra[fmt.Sprint(k)] = v
	}
	return entry(ctx, keys...).WithFields(extra)
}

func entry(ctx context.Context, keys ...any) *logrus.Entry {
	logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry)
	if !ok {
		logger = logrus.WithField("go.version", goVersion)
		if id := ctx.Value("instance.id"); id != nil {
			logger = logger.WithField("instance.id", id)
		}
	}

	fields := make(logrus.Fields, len(keys))
	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			fields[fmt.Sprint(key)] = v
		}
	}
	return logger.WithFields(fields)
}
