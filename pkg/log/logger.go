package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// Output formats accepted by Setup.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ErrAttrKey is the attribute key an error value is logged under.
const ErrAttrKey = "error"

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewSlogLogger(slog.Default())
)

// GetLogger returns the process-wide logger installed by Setup.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Setup builds a logger writing to w, installs it as the process-wide
// logger and routes library warnings (errors.Warn) through it.
//
// The json format uses log/slog with the level and message keys renamed to
// "severity" and "message", and the stack trace of cockroachdb/errors
// values extracted by ErrFmtHandler. The console format uses zerolog's
// ConsoleWriter.
func Setup(level, format string, w io.Writer) (Logger, error) {
	lvl, ok := ParseLevel(level)
	if !ok {
		return nil, errors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}

	var logger Logger
	switch format {
	case FormatJSON, "":
		opts := slog.HandlerOptions{
			AddSource: true,
			Level:     slog.Level(lvl),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr.Key = "severity"
				case slog.MessageKey:
					attr.Key = "message"
				}
				return attr
			},
		}
		sl := slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(w, &opts)))
		slog.SetDefault(sl)
		logger = NewSlogLogger(sl)
	case FormatConsole:
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
			Level(toZerologLevel(lvl)).
			With().Timestamp().Logger()
		logger = NewZerologLogger(zl)
	default:
		return nil, errors.NewValidationError("log.format", "must be json or console", format)
	}

	SetLogger(logger)
	errors.SetZerologWarnFunc(func(w error) {
		logger.Warn(w.Error(), ErrAttrKey, w, ErrorTypeKey, fmt.Sprintf("%T", w))
	})
	return logger, nil
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// ---------------------------------------------------------------------------
// slog backend

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger to Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, slogArgs(fields)...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, slogArgs(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, slogArgs(fields)...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, slogArgs(fields)...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(slogArgs(fields)...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// slogArgs turns a leading bare error into an "error" attribute.
func slogArgs(fields []any) []any {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			out := make([]any, 0, len(fields))
			out = append(out, ErrAttr(err))
			return append(out, fields[1:]...)
		}
	}
	return fields
}

// ---------------------------------------------------------------------------
// zerolog backend

type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger to Logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

func (z *zerologLogger) Debug(msg string, fields ...any) { z.emit(z.l.Debug(), msg, fields) }
func (z *zerologLogger) Info(msg string, fields ...any)  { z.emit(z.l.Info(), msg, fields) }
func (z *zerologLogger) Warn(msg string, fields ...any)  { z.emit(z.l.Warn(), msg, fields) }
func (z *zerologLogger) Error(msg string, fields ...any) { z.emit(z.l.Error(), msg, fields) }

func (z *zerologLogger) With(fields ...any) Logger {
	_, rest := leadingError(fields)
	return &zerologLogger{l: z.l.With().Fields(rest).Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return z.l.GetLevel() <= toZerologLevel(level)
}

func (z *zerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	err, rest := leadingError(fields)
	if err != nil {
		e = e.Err(err)
	}
	for i := 0; i+1 < len(rest); i += 2 {
		key := fmt.Sprintf("%v", rest[i])
		switch v := rest[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
		case error:
			e = e.AnErr(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

func leadingError(fields []any) (error, []any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			return err, fields[1:]
		}
	}
	return nil, fields
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
