package logx

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// Logger is a value-type structured logger. A Logger obtained from a
// Service follows every Service.Apply; the zero value discards everything.
type Logger struct {
	svc    *Service
	fixed  *zerolog.Logger
	fields []Field
}

func Nop() Logger {
	zl := zerolog.Nop()
	return Logger{fixed: &zl}
}

// NewConsole returns a standalone stderr logger for one-shot commands
// that never start a Service.
func NewConsole(level string) Logger {
	setGlobals()
	zl := zerolog.New(consoleWriter(os.Stderr)).Level(ParseLevel(level, LevelInfo)).With().Timestamp().Logger()
	return Logger{fixed: &zl}
}

// FromZerolog wraps zl as-is.
func FromZerolog(zl zerolog.Logger) Logger { return Logger{fixed: &zl} }

func (l Logger) IsZero() bool { return l.svc == nil && l.fixed == nil && len(l.fields) == 0 }

func (l Logger) target() *zerolog.Logger {
	switch {
	case l.svc != nil:
		return l.svc.root.Load()
	case l.fixed != nil:
		return l.fixed
	default:
		return nil
	}
}

func (l Logger) Enabled(level Level) bool {
	zl := l.target()
	return zl != nil && level >= zl.GetLevel()
}

// With returns a child logger carrying fields on every event.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	child := l
	child.fields = make([]Field, 0, len(l.fields)+len(fields))
	child.fields = append(append(child.fields, l.fields...), fields...)
	return child
}

func (l Logger) Trace(msg string, fields ...Field) { l.emit(LevelTrace, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields) }

// callerDepth skips runtime.Caller, emit and the level method.
const callerDepth = 3

func (l Logger) emit(level Level, msg string, fields []Field) {
	zl := l.target()
	if zl == nil {
		return
	}
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	if _, file, line, ok := runtime.Caller(callerDepth - 1); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, group := range [2][]Field{l.fields, fields} {
		for _, f := range group {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}
