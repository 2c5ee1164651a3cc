package telemetry

import (
	"fmt"
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// NormalizedTable is the sink name used when persisting normalized readings.
const NormalizedTable = "inverterdatas"

// Options controls optional side effects of NormalizeWith.
type Options struct {
	Persist bool
	Sink    series.Writer
}

// Normalize flattens raw readings into a series of the telemetry channels.
// The AC voltages of all present line blocks are summed into ac_voltage and
// any missing value is read as 0. Rows keep the input order; a repeated
// timestamp overwrites the earlier row.
func Normalize(records []Record) *series.Series {
	s := series.New(series.TelemetryChannels...)
	for _, r := range records {
		var ac float64
		for n := 1; n <= MaxLines; n++ {
			if l, ok := r.Line(n); ok {
				ac += series.Ptr(l.ACVoltage).Or(0)
			}
		}
		// Set only fails on a column count mismatch.
		_ = s.Set(r.Date.Truncate(time.Second),
			series.Some(series.Ptr(r.TotalActivePower).Or(0)),
			series.Some(series.Ptr(r.Temperature).Or(0)),
			series.Some(ac),
			series.Some(series.Ptr(r.DCVoltage).Or(0)),
		)
	}
	return s
}

// NormalizeWith normalizes records and, when opts.Persist is set, writes the
// table to opts.Sink.
func NormalizeWith(records []Record, opts Options) (*series.Series, error) {
	s := Normalize(records)
	if !opts.Persist || s.Len() == 0 {
		return s, nil
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("persist requested without a sink")
	}
	if err := opts.Sink.WriteSeries(NormalizedTable, s); err != nil {
		return nil, fmt.Errorf("persist normalized telemetry: %w", err)
	}
	return s, nil
}
