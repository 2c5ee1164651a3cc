// Package store holds the telemetry backends (ClickHouse, PostgreSQL, in-memory
// export) and the redis forecast cache.
package store

import (
	"context"

	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
)

// Store is a telemetry source that also accepts readings.
type Store interface {
	telemetry.Source
	Insert(ctx context.Context, records []telemetry.Record) error
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*ClickHouseStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
