package telemetry

import (
	"context"
	"fmt"
	"time"
)

// Query selects the readings of one inverter on the closed interval [From, To].
type Query struct {
	InverterID string
	From       time.Time
	To         time.Time
}

// Validate checks the query bounds.
func (q Query) Validate() error {
	if q.InverterID == "" {
		return fmt.Errorf("%w: inverter id is required", ErrInvalidQuery)
	}
	if q.To.Before(q.From) {
		return fmt.Errorf("%w: to %s is before from %s", ErrInvalidQuery, q.To, q.From)
	}
	return nil
}

// Contains reports whether t lies inside the query interval.
func (q Query) Contains(t time.Time) bool {
	return !t.Before(q.From) && !t.After(q.To)
}

// Source is a telemetry store that can answer range queries.
type Source interface {
	Query(ctx context.Context, q Query) ([]Record, error)
}
