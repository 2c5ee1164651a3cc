// Package sink renders series to the outside world: delimited files, console
// previews and MQTT.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// DateColumn is the header of the timestamp column.
const DateColumn = "date"

// CSVWriter writes each series to <Dir>/<name>.csv.
type CSVWriter struct {
	Dir string
}

// NewCSVWriter returns a writer rooted at dir. The directory is created on first write.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{Dir: dir}
}

var _ series.Writer = (*CSVWriter)(nil)

// Path returns the file a series called name is written to.
func (w *CSVWriter) Path(name string) string {
	return filepath.Join(w.Dir, name+".csv")
}

// WriteSeries writes s as a table keyed by timestamp. An existing file is replaced.
func (w *CSVWriter) WriteSeries(name string, s *series.Series) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := w.Path(name)
	tmp, err := os.CreateTemp(w.Dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, s); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteCSV renders s with a header row of date plus column names.
func WriteCSV(out io.Writer, s *series.Series) error {
	cw := csv.NewWriter(out)

	cols := s.Columns()
	header := make([]string, 0, len(cols)+1)
	header = append(header, DateColumn)
	for _, c := range cols {
		header = append(header, c.String())
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(cols)+1)
	for i := 0; i < s.Len(); i++ {
		record[0] = s.Time(i).UTC().Format(time.RFC3339Nano)
		for j, c := range cols {
			record[j+1] = FormatValue(s.Value(i, c))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(in io.Reader) (*series.Series, error) {
	rows, err := csv.NewReader(in).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] != DateColumn {
		return nil, fmt.Errorf("missing %q header", DateColumn)
	}

	cols, err := series.ParseChannels(rows[0][1:])
	if err != nil {
		return nil, err
	}
	s := series.New(cols...)
	for n, row := range rows[1:] {
		t, err := time.Parse(time.RFC3339Nano, row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		vals := make([]series.Value, len(cols))
		for j := range cols {
			if row[j+1] == "" {
				vals[j] = series.Null()
				continue
			}
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", n+1, cols[j], err)
			}
			vals[j] = series.Some(v)
		}
		if err := s.Set(t, vals...); err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
	}
	return s, nil
}

// FormatValue renders a cell with the shortest representation that parses
// back to the same float. Nulls are empty.
func FormatValue(v series.Value) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.V, 'g', -1, 64)
}
