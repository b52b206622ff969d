package geometry

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedType   = errors.New("unsupported geometry type")
	ErrInsufficientDims  = errors.New("insufficient dimensionality")
	ErrMalformedWKT      = errors.New("malformed WKT")
	ErrMalformedGeoJSON  = errors.New("malformed GeoJSON")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Error is returned for any input that cannot be normalized. It is always
// surfaced to callers of Normalize and of the spatial filter.
type Error struct {
	Input  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "geometry: "
	if e.Err != nil {
		msg += e.Err.Error()
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
	} else {
		msg += e.Reason
	}
	if e.Input != "" {
		msg += " (input " + e.Input + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(sentinel error, input any, format string, args ...any) *Error {
	return &Error{
		Input:  describe(input),
		Reason: fmt.Sprintf(format, args...),
		Err:    sentinel,
	}
}

// short, log-safe description of the rejected input
func describe(v any) string {
	if v == nil {
		return "<nil>"
	}
	s := fmt.Sprintf("%T", v)
	if str, ok := v.(string); ok {
		if len(str) > 48 {
			str = str[:48] + "..."
		}
		s += " " + fmt.Sprintf("%q", str)
	}
	return s
}
