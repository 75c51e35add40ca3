package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidthPortrait  = 190.0
	pageWidthLandscape = 277.0
	bottomMargin       = 15.0
)

// PDFOptions controls page layout.
type PDFOptions struct {
	Title     string
	Subtitle  string
	Landscape bool
	// Footer lines are printed after the table, e.g. signature fields.
	Footer []string
}

// PDFExporter renders datasets into a tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title block and the table body.
func (e *PDFExporter) Render(data Dataset, opts PDFOptions) ([]byte, error) {
	if err := data.validate("pdf"); err != nil {
		return nil, err
	}
	orientation, usable := "P", pageWidthPortrait
	if opts.Landscape {
		orientation, usable = "L", pageWidthLandscape
	}

	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, bottomMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if opts.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(opts.Title)), "", 1, "C", false, 0, "")
	}
	if opts.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(opts.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	widths := columnWidths(data.Columns, usable)
	header := func() {
		pdf.SetFont("Arial", "B", 10)
		for i, title := range data.titles() {
			pdf.CellFormat(widths[i], 8, tr(title), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	for _, row := range data.Rows {
		if pdf.GetY()+7 > pageHeight-bottomMargin {
			pdf.AddPage()
			header()
		}
		for i, value := range data.record(row) {
			pdf.CellFormat(widths[i], 7, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(opts.Footer) > 0 {
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 10)
		for _, line := range opts.Footer {
			pdf.CellFormat(0, 7, tr(line), "", 1, "L", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column, usable float64) []float64 {
	total := 0.0
	for _, col := range columns {
		if col.Width > 0 {
			total += col.Width
		} else {
			total++
		}
	}
	widths := make([]float64, len(columns))
	for i, col := range columns {
		weight := col.Width
		if weight <= 0 {
			weight = 1
		}
		widths[i] = usable * weight / total
	}
	return widths
}
