package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxLines is the number of per-phase line blocks summed into ac_voltage (L1..L3).
const MaxLines = 3

// LineData is one per-phase block of an inverter reading.
type LineData struct {
	ACVoltage *float64 `json:"acVoltage,omitempty"`
}

// Record is one raw inverter reading as stored upstream.
// Any field may be missing; missing values are nil.
type Record struct {
	Date             time.Time
	InverterID       string
	TotalActivePower *float64
	Temperature      *float64
	DCVoltage        *float64
	Lines            [MaxLines]*LineData

	// ExtraLines counts line blocks above MaxLines seen while decoding.
	// They are not part of the record.
	ExtraLines int
}

// LineKey returns the document key of line n (1-based), e.g. "L1Data".
func LineKey(n int) string {
	return "L" + strconv.Itoa(n) + "Data"
}

// Line returns line block n (1-based) and whether the record carries it.
func (r Record) Line(n int) (LineData, bool) {
	if n < 1 || n > MaxLines || r.Lines[n-1] == nil {
		return LineData{}, false
	}
	return *r.Lines[n-1], true
}

// SetLine attaches line block n (1-based). Out of range indices are ignored.
func (r *Record) SetLine(n int, l LineData) {
	if n < 1 || n > MaxLines {
		return
	}
	r.Lines[n-1] = &l
}

type recordDoc struct {
	Date             json.RawMessage `json:"date"`
	Inverter         json.RawMessage `json:"inverter,omitempty"`
	TotalActivePower *float64        `json:"totalActivePower"`
	Temperature      *float64        `json:"temperature"`
	DCVoltage        *float64        `json:"dcVoltage"`
}

// UnmarshalJSON decodes a document export of an inverter reading. Both plain
// values and extended JSON ({"$date": ...}, {"$oid": ...}) are accepted.
func (r *Record) UnmarshalJSON(b []byte) error {
	var doc recordDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	date, err := decodeDate(doc.Date)
	if err != nil {
		return fmt.Errorf("%w: date: %v", ErrMalformedRecord, err)
	}
	inverter, err := decodeID(doc.Inverter)
	if err != nil {
		return fmt.Errorf("%w: inverter: %v", ErrMalformedRecord, err)
	}

	*r = Record{
		Date:             date,
		InverterID:       inverter,
		TotalActivePower: doc.TotalActivePower,
		Temperature:      doc.Temperature,
		DCVoltage:        doc.DCVoltage,
	}
	for n := 1; n <= MaxLines; n++ {
		block, ok := raw[LineKey(n)]
		if !ok || bytes.Equal(block, []byte("null")) {
			continue
		}
		var l LineData
		if err := json.Unmarshal(block, &l); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedRecord, LineKey(n), err)
		}
		r.SetLine(n, l)
	}
	for key, block := range raw {
		if n, ok := lineIndex(key); ok && n > MaxLines && !bytes.Equal(block, []byte("null")) {
			r.ExtraLines++
		}
	}
	return nil
}

// lineIndex parses a line block key such as "L4Data".
func lineIndex(key string) (int, bool) {
	if !strings.HasPrefix(key, "L") || !strings.HasSuffix(key, "Data") {
		return 0, false
	}
	n, err := strconv.Atoi(key[1 : len(key)-len("Data")])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// DroppedLines sums ExtraLines over records.
func DroppedLines(records []Record) int {
	total := 0
	for _, r := range records {
		total += r.ExtraLines
	}
	return total
}

// MarshalJSON encodes the record in the same document shape UnmarshalJSON reads.
func (r Record) MarshalJSON() ([]byte, error) {
	doc := map[string]any{
		"date":             r.Date.UTC().Format(time.RFC3339Nano),
		"totalActivePower": r.TotalActivePower,
		"temperature":      r.Temperature,
		"dcVoltage":        r.DCVoltage,
	}
	if r.InverterID != "" {
		doc["inverter"] = r.InverterID
	}
	for n := 1; n <= MaxLines; n++ {
		if l, ok := r.Line(n); ok {
			doc[LineKey(n)] = l
		}
	}
	return json.Marshal(doc)
}

func decodeDate(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, errors.New("missing")
	}
	var ext struct {
		Date json.RawMessage `json:"$date"`
	}
	if raw[0] == '{' {
		if err := json.Unmarshal(raw, &ext); err != nil {
			return time.Time{}, err
		}
		raw = ext.Date
		if len(raw) > 0 && raw[0] == '{' {
			var long struct {
				NumberLong string `json:"$numberLong"`
			}
			if err := json.Unmarshal(raw, &long); err != nil {
				return time.Time{}, err
			}
			raw = json.RawMessage(long.NumberLong)
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '{' {
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(raw, &oid); err != nil {
			return "", err
		}
		return oid.OID, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}
