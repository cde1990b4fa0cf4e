package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:    "Attendance Report 5A",
		Subtitle: "2026-03-01 to 2026-03-31",
		Columns: []Column{
			{Name: "Roll Number", Align: "C"},
			{Name: "Student", Width: 2},
			{Name: "Percentage", Align: "R"},
		},
		Rows: [][]string{
			{"17", "Asha Rao", "95.00%"},
			{"18", "Vikram Nair", "88.50%"},
		},
		Footer: []string{"", "Class total", "91.75%"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleTable())
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(payload), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, "Roll Number,Student,Percentage", string(lines[0]))
	assert.Equal(t, "17,Asha Rao,95.00%", string(lines[1]))
	assert.Equal(t, ",Class total,91.75%", string(lines[3]))
}

func TestCSVExporterRejectsRaggedRow(t *testing.T) {
	table := sampleTable()
	table.Rows = append(table.Rows, []string{"19"})

	_, err := NewCSVExporter().Render(table)
	assert.Error(t, err)
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestColumnWidthsScaleToTableWidth(t *testing.T) {
	widths := columnWidths(sampleTable().Columns)
	require.Len(t, widths, 3)

	var total float64
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, pdfTableWidth, total, 0.01)
	assert.InDelta(t, widths[0]*2, widths[1], 0.01)
}
