package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field decorates one log event. Later fields with the same key win.
type Field func(e *zerolog.Event)

func String(k, v string) Field          { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field         { return func(e *zerolog.Event) { e.Int(k, v) } }
func Uint64(k string, v uint64) Field   { return func(e *zerolog.Event) { e.Uint64(k, v) } }
func Bool(k string, v bool) Field       { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Float64(k string, v float64) Field { return func(e *zerolog.Event) { e.Float64(k, v) } }
func Time(k string, v time.Time) Field  { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field         { return func(e *zerolog.Event) { e.Interface(k, v) } }

// Duration logs d in its String form ("1.5s") rather than zerolog's
// numeric default, which reads badly in the console writer.
func Duration(k string, d time.Duration) Field {
	return func(e *zerolog.Event) { e.Str(k, d.String()) }
}

// Err is a no-op for nil errors.
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.AnErr(zerolog.ErrorFieldName, err)
		}
	}
}
