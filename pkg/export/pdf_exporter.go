package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders tables into a simple A4 portrait document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

const pdfTableWidth = 190.0

// Render creates a PDF with the table's title, subtitle, header row, body,
// and summary footer. Column widths are scaled from their relative shares.
func (e *PDFExporter) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if table.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, table.Title, "", 1, "C", false, 0, "")
	}
	if table.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, table.Subtitle, "", 1, "C", false, 0, "")
	}
	if table.Title != "" || table.Subtitle != "" {
		pdf.Ln(4)
	}

	widths := columnWidths(table.Columns)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, col := range table.Columns {
		pdf.CellFormat(widths[i], 8, col.Name, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range table.Rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, cellAlign(table.Columns[i]), false, 0, "")
		}
		pdf.Ln(-1)
	}

	if table.Footer != nil {
		pdf.SetFont("Arial", "B", 9)
		for i, cell := range table.Footer {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, cellAlign(table.Columns[i]), false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column) []float64 {
	var total float64
	for _, col := range columns {
		if col.Width > 0 {
			total += col.Width
		} else {
			total += 1
		}
	}
	widths := make([]float64, len(columns))
	for i, col := range columns {
		share := col.Width
		if share <= 0 {
			share = 1
		}
		widths[i] = pdfTableWidth * share / total
	}
	return widths
}

func cellAlign(col Column) string {
	switch col.Align {
	case "L", "C", "R":
		return col.Align
	default:
		return "L"
	}
}
