package assess

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEndpointUnavailable means the provider could not find a reachable target.
	ErrEndpointUnavailable = errors.New("no reachable measurement endpoint")
	// ErrMeasurement means a latency or throughput measurement failed mid-run.
	ErrMeasurement = errors.New("measurement failed")
)

// Kind classifies a failed run.
type Kind int

const (
	KindUnknown Kind = iota
	KindEndpointUnavailable
	KindMeasurement
)

func (k Kind) String() string {
	switch k {
	case KindEndpointUnavailable:
		return "endpoint_unavailable"
	case KindMeasurement:
		return "measurement_error"
	default:
		return "unknown"
	}
}

// Op names the operation that failed.
type Op string

const (
	OpAssessment Op = "assessment"
	OpSnapshot   Op = "snapshot"
)

// Error is the single terminal failure of an assessment or snapshot.
// Err carries the provider's original message.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the underlying failure message without the op prefix.
func (e *Error) Message() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// KindOf reports the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// stepError tags a provider failure with its sentinel while keeping the
// provider's text as the message.
type stepError struct {
	sentinel error
	step     string
	cause    error
}

func (e *stepError) Error() string { return e.step + ": " + e.cause.Error() }

func (e *stepError) Unwrap() []error { return []error{e.sentinel, e.cause} }

func endpointFailure(step string, err error) error {
	return &stepError{sentinel: ErrEndpointUnavailable, step: step, cause: err}
}

func measurementFailure(step string, err error) error {
	return &stepError{sentinel: ErrMeasurement, step: step, cause: err}
}

// validLatency rejects readings no aggregate can use.
func validLatency(ms float64) bool {
	return !math.IsNaN(ms) && !math.IsInf(ms, 0) && ms >= 0
}

func fail(op Op, err error) *Error {
	kind := KindMeasurement
	// A cancelled or expired run is a measurement failure even when the
	// provider was still selecting an endpoint.
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindMeasurement
	case errors.Is(err, ErrEndpointUnavailable):
		kind = KindEndpointUnavailable
	case errors.Is(err, ErrMeasurement):
		kind = KindMeasurement
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
