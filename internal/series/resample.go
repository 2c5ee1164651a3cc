package series

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
)

// GridSpec is a fixed bucket width used for resampling.
type GridSpec struct {
	width time.Duration
}

// FiveMinuteGrid is the cadence of the feature table.
var FiveMinuteGrid = GridSpec{width: 5 * time.Minute}

// NewGrid returns a grid with the given bucket width.
func NewGrid(width time.Duration) (GridSpec, error) {
	if width <= 0 {
		return GridSpec{}, fmt.Errorf("%w: %s", ErrInvalidGrid, width)
	}
	return GridSpec{width: width}, nil
}

// Width returns the bucket width.
func (g GridSpec) Width() time.Duration {
	return g.width
}

var epoch = time.Unix(0, 0).UTC()

// Bucket returns the start of the bucket containing t. Buckets are aligned
// to multiples of the width counted from the Unix epoch, so for widths that
// divide a day every UTC midnight is a bucket boundary.
func (g GridSpec) Bucket(t time.Time) time.Time {
	t = t.Round(0)
	r := t.Sub(epoch) % g.width
	if r < 0 {
		r += g.width
	}
	return t.Add(-r)
}

// Resample rebuckets s onto g. Each channel of an output row is the mean of
// the present input values in that bucket. Buckets between the first and last
// observed bucket that received no rows are kept as all-null rows.
func Resample(s *Series, g GridSpec) (*Series, error) {
	if g.width <= 0 {
		return nil, ErrInvalidGrid
	}
	out := New(s.columns...)
	if s.Len() == 0 {
		return out, nil
	}

	type bucket struct {
		sums [][]float64
	}
	buckets := make(map[int64]*bucket)
	var first, last time.Time

	for i, p := range s.points {
		start := g.Bucket(p.Time)
		key := start.UnixNano()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{sums: make([][]float64, len(s.columns))}
			buckets[key] = b
		}
		for j, v := range p.Values {
			if v.Valid {
				b.sums[j] = append(b.sums[j], v.V)
			}
		}
		if i == 0 || start.Before(first) {
			first = start
		}
		if i == 0 || start.After(last) {
			last = start
		}
	}

	for t := first; !t.After(last); t = t.Add(g.width) {
		row := make([]Value, len(s.columns))
		if b, ok := buckets[t.UnixNano()]; ok {
			for j, vals := range b.sums {
				if len(vals) == 0 {
					continue
				}
				mean, err := stats.Mean(vals)
				if err != nil {
					continue
				}
				row[j] = Some(mean)
			}
		}
		if err := out.Set(t, row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}
