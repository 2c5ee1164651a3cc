package weather

import "errors"

var (
	// ErrUpstream wraps any provider failure.
	ErrUpstream = errors.New("weather provider failure")
	// ErrMalformedPayload is returned when a provider response cannot be decoded.
	ErrMalformedPayload = errors.New("malformed weather payload")
	// ErrNoProviders is returned when the service has nothing to fetch from.
	ErrNoProviders = errors.New("no weather providers configured")
	// ErrNoCoordinates is returned when a location has no coordinates and cannot be geocoded.
	ErrNoCoordinates = errors.New("location has no coordinates")
)
