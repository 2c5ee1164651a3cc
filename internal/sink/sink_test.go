package sink

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

var t0 = time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC)

func sample(t *testing.T) *series.Series {
	t.Helper()
	s := series.New(series.ActivePower, series.ACVoltage)
	rows := [][]series.Value{
		{series.Some(0.1), series.Some(220.5)},
		{series.Null(), series.Some(1e-9)},
		{series.Some(-3), series.Null()},
	}
	for i, vals := range rows {
		if err := s.Set(t0.Add(time.Duration(i)*5*time.Minute), vals...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	return s
}

func TestCSVWriterIsLossless(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)
	s := sample(t)

	if err := w.WriteSeries("features", s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(w.Path("features"))
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	defer f.Close()

	back, err := ReadCSV(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(s) {
		t.Fatalf("round trip changed the table")
	}
}

func TestWriteCSVLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "date,active_power,ac_voltage" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "2024-08-25T00:00:00Z,0.1,220.5" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if lines[2] != "2024-08-25T00:05:00Z,,1e-09" {
		t.Fatalf("unexpected null rendering %q", lines[2])
	}
}

func TestReadCSVRejectsUnknownColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,bogus\n2024-08-25T00:00:00Z,1\n"))
	if err == nil {
		t.Fatalf("expected an error for an unknown column")
	}
}

func TestPreviewLimitsRows(t *testing.T) {
	var buf bytes.Buffer
	Preview(&buf, sample(t), 1)

	out := buf.String()
	if !strings.Contains(out, "active_power") {
		t.Fatalf("expected header in preview, got:\n%s", out)
	}
	if !strings.Contains(out, "220.5") {
		t.Fatalf("expected first row in preview, got:\n%s", out)
	}
	if strings.Contains(out, "1e-09") {
		t.Fatalf("expected preview to stop after one row, got:\n%s", out)
	}
}

func TestFeatureMessage(t *testing.T) {
	msg := NewFeatureMessage("run-1", "inv-1", sample(t))

	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := string(b)
	if !strings.Contains(got, `"columns":["active_power","ac_voltage"]`) {
		t.Fatalf("unexpected columns in %s", got)
	}
	if !strings.Contains(got, `"values":[null,1e-9]`) {
		t.Fatalf("expected null cell in %s", got)
	}
}

func TestFormatTopic(t *testing.T) {
	if got := FormatTopic(DefaultFeatureTopic, "673f"); got != "pv/673f/features" {
		t.Fatalf("unexpected topic %q", got)
	}
}
