package sink

import (
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/i474232898/pv-feature-pipeline/internal/series"
)

// Preview prints the first n rows of s as a console table. n <= 0 prints every row.
func Preview(w io.Writer, s *series.Series, n int) {
	cols := s.Columns()
	header := make([]string, 0, len(cols)+1)
	header = append(header, DateColumn)
	for _, c := range cols {
		header = append(header, c.String())
	}

	rows := s.Len()
	if n > 0 && n < rows {
		rows = n
	}
	data := make([][]string, 0, rows)
	for i := 0; i < rows; i++ {
		row := make([]string, 0, len(cols)+1)
		row = append(row, s.Time(i).UTC().Format(time.RFC3339))
		for _, c := range cols {
			row = append(row, FormatValue(s.Value(i, c)))
		}
		data = append(data, row)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeaderLine(true)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(header)
	table.SetBorder(false)
	table.AppendBulk(data)
	table.Render()
}
