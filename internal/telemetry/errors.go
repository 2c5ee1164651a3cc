package telemetry

import "errors"

var (
	// ErrUpstream wraps failures of the telemetry store.
	ErrUpstream = errors.New("telemetry store failure")
	// ErrInvalidQuery is returned for an empty inverter id or an inverted interval.
	ErrInvalidQuery = errors.New("invalid telemetry query")
	// ErrMalformedRecord is returned when a stored document cannot be decoded.
	ErrMalformedRecord = errors.New("malformed telemetry record")
)
