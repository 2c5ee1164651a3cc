package store

import (
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/telemetry"
)

// inverterRow is the flattened column layout shared by the SQL stores.
type inverterRow struct {
	Date             time.Time
	InverterID       string
	TotalActivePower *float64
	Temperature      *float64
	DCVoltage        *float64
	ACVoltage        [telemetry.MaxLines]*float64
	HasLine          [telemetry.MaxLines]bool
}

func rowFromRecord(r telemetry.Record) inverterRow {
	row := inverterRow{
		Date:             r.Date.UTC(),
		InverterID:       r.InverterID,
		TotalActivePower: r.TotalActivePower,
		Temperature:      r.Temperature,
		DCVoltage:        r.DCVoltage,
	}
	for n := 1; n <= telemetry.MaxLines; n++ {
		if l, ok := r.Line(n); ok {
			row.HasLine[n-1] = true
			row.ACVoltage[n-1] = l.ACVoltage
		}
	}
	return row
}

func (row inverterRow) record() telemetry.Record {
	r := telemetry.Record{
		Date:             row.Date,
		InverterID:       row.InverterID,
		TotalActivePower: row.TotalActivePower,
		Temperature:      row.Temperature,
		DCVoltage:        row.DCVoltage,
	}
	for n := 1; n <= telemetry.MaxLines; n++ {
		if row.HasLine[n-1] {
			r.SetLine(n, telemetry.LineData{ACVoltage: row.ACVoltage[n-1]})
		}
	}
	return r
}
