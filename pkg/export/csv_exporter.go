package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Column describes one table column. Width is a relative share used by the
// PDF renderer; zero means an equal split. Align is "L", "C", or "R".
type Column struct {
	Name  string
	Width float64
	Align string
}

// Table is an ordered tabular document. Rows are positional and must match
// the column count. Footer, when present, is rendered as a summary row.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     [][]string
	Footer   []string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	if t.Footer != nil && len(t.Footer) != len(t.Columns) {
		return fmt.Errorf("footer has %d cells, want %d", len(t.Footer), len(t.Columns))
	}
	return nil
}

// CSVExporter renders tables into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes. Title and subtitle are omitted; CSV
// consumers want the header row first.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	header := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col.Name
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	if table.Footer != nil {
		if err := writer.Write(table.Footer); err != nil {
			return nil, fmt.Errorf("write csv footer: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
