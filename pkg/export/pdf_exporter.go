package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			value := row[header]
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Certificate holds the content of a no-due certificate.
type Certificate struct {
	Institution string
	Title       string
	BodyLines   []string
	Table       Dataset
	IssuedAt    string
	Reference   string
}

// RenderCertificate creates a no-due certificate PDF: a heading, free-form
// body lines, an optional checkpoint table and an issue footer.
func (e *PDFExporter) RenderCertificate(cert Certificate) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	if cert.Institution != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 12, strings.ToUpper(cert.Institution), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 10, strings.ToUpper(cert.Title), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	for _, line := range cert.BodyLines {
		pdf.MultiCell(0, 7, line, "", "L", false)
		pdf.Ln(1)
	}

	if len(cert.Table.Headers) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		colWidth := 180.0 / float64(len(cert.Table.Headers))
		for _, header := range cert.Table.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, row := range cert.Table.Rows {
			for _, header := range cert.Table.Headers {
				pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	if cert.IssuedAt != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Issued at: %s", cert.IssuedAt), "", 1, "L", false, 0, "")
	}
	if cert.Reference != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Reference: %s", cert.Reference), "", 1, "L", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
