package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
)

// MemoryStore is a concurrency-safe in-memory telemetry source. It is used
// for tests and for running the pipeline against a document export.
type MemoryStore struct {
	mu sync.RWMutex

	// key: inverter id, value: readings ordered by date
	data map[string][]telemetry.Record

	// maxHistory caps the readings kept per inverter (0 = unlimited)
	maxHistory int
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string][]telemetry.Record),
		maxHistory: maxHistory,
	}
}

// Save appends readings and enforces retention by count.
func (s *MemoryStore) Save(records ...telemetry.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]struct{})
	for _, r := range records {
		s.data[r.InverterID] = append(s.data[r.InverterID], r)
		touched[r.InverterID] = struct{}{}
	}

	for id := range touched {
		history := s.data[id]
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Date.Before(history[j].Date)
		})
		if s.maxHistory > 0 && len(history) > s.maxHistory {
			history = history[len(history)-s.maxHistory:]
		}
		s.data[id] = history
	}
}

// Insert is Save behind the Writer interface.
func (s *MemoryStore) Insert(ctx context.Context, records []telemetry.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Save(records...)
	return nil
}

// Query returns the readings of q.InverterID between From and To (inclusive).
// An inverter with no readings yields an empty result.
func (s *MemoryStore) Query(ctx context.Context, q telemetry.Query) ([]telemetry.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", telemetry.ErrUpstream, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []telemetry.Record
	for _, r := range s.data[q.InverterID] {
		if q.Contains(r.Date) {
			result = append(result, r)
		}
	}
	return result, nil
}

// ReadExport decodes a JSON array of reading documents (a collection export).
// Documents without an inverter id are attributed to defaultInverter.
func ReadExport(r io.Reader, defaultInverter string) ([]telemetry.Record, error) {
	var records []telemetry.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", telemetry.ErrMalformedRecord, err)
	}
	for i := range records {
		if records[i].InverterID == "" {
			records[i].InverterID = defaultInverter
		}
	}
	return records, nil
}

// Load reads an export into the store.
func (s *MemoryStore) Load(r io.Reader, defaultInverter string) (int, error) {
	records, err := ReadExport(r, defaultInverter)
	if err != nil {
		return 0, err
	}
	s.Save(records...)
	return len(records), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// LoadFile is Load on a file path.
func (s *MemoryStore) LoadFile(path, defaultInverter string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.Load(f, defaultInverter)
}
