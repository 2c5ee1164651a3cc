// Package series holds the typed time-indexed tables that flow through the
// feature pipeline, together with the resampling, interpolation, join and
// smoothing stages that operate on them.
//
// Every stage takes a *Series and returns a new one; inputs are never mutated.
package series

import (
	"fmt"
	"sort"
	"time"
)

// Point is one row of a Series. Values are ordered like the series columns.
type Point struct {
	Time   time.Time
	Values []Value
}

// Series is a table indexed by timestamp with a fixed set of channels.
type Series struct {
	columns []Channel
	colPos  map[Channel]int
	points  []Point
	rowPos  map[int64]int
}

// New creates an empty series with the given columns.
func New(columns ...Channel) *Series {
	s := &Series{
		columns: append([]Channel(nil), columns...),
		colPos:  make(map[Channel]int, len(columns)),
		rowPos:  make(map[int64]int),
	}
	for i, c := range columns {
		s.colPos[c] = i
	}
	return s
}

// Columns returns a copy of the column list.
func (s *Series) Columns() []Channel {
	return append([]Channel(nil), s.columns...)
}

// Has reports whether c is one of the series columns.
func (s *Series) Has(c Channel) bool {
	_, ok := s.colPos[c]
	return ok
}

// Len returns the number of rows.
func (s *Series) Len() int {
	return len(s.points)
}

// Set writes a row. A row already present at t is overwritten in place.
func (s *Series) Set(t time.Time, values ...Value) error {
	if len(values) != len(s.columns) {
		return fmt.Errorf("%w: got %d, want %d", ErrColumnMismatch, len(values), len(s.columns))
	}
	row := append([]Value(nil), values...)
	key := t.UnixNano()
	if i, ok := s.rowPos[key]; ok {
		s.points[i].Values = row
		return nil
	}
	s.rowPos[key] = len(s.points)
	s.points = append(s.points, Point{Time: t, Values: row})
	return nil
}

// Time returns the timestamp of row i.
func (s *Series) Time(i int) time.Time {
	return s.points[i].Time
}

// Value returns the cell at row i for channel c. Unknown channels read as null.
func (s *Series) Value(i int, c Channel) Value {
	j, ok := s.colPos[c]
	if !ok {
		return Null()
	}
	return s.points[i].Values[j]
}

// Row returns a copy of row i.
func (s *Series) Row(i int) Point {
	p := s.points[i]
	return Point{Time: p.Time, Values: append([]Value(nil), p.Values...)}
}

// Lookup returns the row index for t.
func (s *Series) Lookup(t time.Time) (int, bool) {
	i, ok := s.rowPos[t.UnixNano()]
	return i, ok
}

// Index returns the row timestamps in order.
func (s *Series) Index() []time.Time {
	idx := make([]time.Time, len(s.points))
	for i, p := range s.points {
		idx[i] = p.Time
	}
	return idx
}

// Column returns a copy of one channel's cells.
func (s *Series) Column(c Channel) ([]Value, error) {
	j, ok := s.colPos[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
	}
	out := make([]Value, len(s.points))
	for i, p := range s.points {
		out[i] = p.Values[j]
	}
	return out, nil
}

// Clone returns a deep copy.
func (s *Series) Clone() *Series {
	out := New(s.columns...)
	out.points = make([]Point, len(s.points))
	for i := range s.points {
		out.points[i] = s.Row(i)
		out.rowPos[s.points[i].Time.UnixNano()] = i
	}
	return out
}

// Sorted returns a copy ordered by timestamp.
func (s *Series) Sorted() *Series {
	out := s.Clone()
	sort.SliceStable(out.points, func(i, j int) bool {
		return out.points[i].Time.Before(out.points[j].Time)
	})
	for i, p := range out.points {
		out.rowPos[p.Time.UnixNano()] = i
	}
	return out
}

// Project returns a copy restricted to cols, in that order. Channels the
// series does not carry are added as null columns.
func (s *Series) Project(cols ...Channel) *Series {
	out := New(cols...)
	for _, p := range s.points {
		row := make([]Value, len(cols))
		for k, c := range cols {
			if j, ok := s.colPos[c]; ok {
				row[k] = p.Values[j]
			}
		}
		out.rowPos[p.Time.UnixNano()] = len(out.points)
		out.points = append(out.points, Point{Time: p.Time, Values: row})
	}
	return out
}

// Clip returns the rows with from <= t <= to.
func (s *Series) Clip(from, to time.Time) *Series {
	out := New(s.columns...)
	for i, p := range s.points {
		if p.Time.Before(from) || p.Time.After(to) {
			continue
		}
		out.rowPos[p.Time.UnixNano()] = len(out.points)
		out.points = append(out.points, s.Row(i))
	}
	return out
}

// NullCount returns the number of absent cells.
func (s *Series) NullCount() int {
	n := 0
	for _, p := range s.points {
		for _, v := range p.Values {
			if !v.Valid {
				n++
			}
		}
	}
	return n
}

// Equal reports whether both series have the same columns, index and cells.
func (s *Series) Equal(o *Series) bool {
	if len(s.columns) != len(o.columns) || len(s.points) != len(o.points) {
		return false
	}
	for i := range s.columns {
		if s.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range s.points {
		if !s.points[i].Time.Equal(o.points[i].Time) {
			return false
		}
		for j := range s.points[i].Values {
			if s.points[i].Values[j] != o.points[i].Values[j] {
				return false
			}
		}
	}
	return true
}

// withColumn returns a copy where column c is replaced by vals.
func (s *Series) withColumn(c Channel, vals []Value) *Series {
	out := s.Clone()
	j := s.colPos[c]
	for i := range out.points {
		out.points[i].Values[j] = vals[i]
	}
	return out
}
