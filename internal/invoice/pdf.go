package invoice

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/ledgerlane/invoicer/internal/platform/money"
)

// PDF renders invoices with gofpdf, entirely in process.
type PDF struct {
	// Issuer is printed in the document header.
	Issuer string
}

// NewPDF constructs a renderer for issuer.
func NewPDF(issuer string) *PDF {
	if issuer == "" {
		issuer = "Invoicer"
	}
	return &PDF{Issuer: issuer}
}

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PDFFilename names the download for an invoice.
func PDFFilename(inv Invoice) string {
	name := filenameUnsafe.ReplaceAllString(inv.InvoiceNumber, "-")
	if name == "" {
		name = inv.ID
	}
	return "invoice-" + name + ".pdf"
}

// Render lays out a single A4 page with header, parties, lines and totals.
func (p *PDF) Render(inv Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.SetAuthor(p.Issuer, true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(120, 10, tr(p.Issuer), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(60, 10, "INVOICE", "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	meta := [][2]string{
		{"Invoice number", inv.InvoiceNumber},
		{"Invoice date", inv.InvoiceDate.String()},
		{"Due date", inv.DueDate.String()},
		{"Status", string(inv.Status)},
	}
	for _, row := range meta {
		pdf.CellFormat(120, 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, tr(row[1]), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 6, "Bill to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{inv.CustomerName, inv.CustomerEmail, inv.CustomerAddress} {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	pdf.Ln(6)

	widths := []float64{90, 25, 30, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 238, 242)
	for i, head := range []string{"Description", "Qty", "Price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, head, "B", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		pdf.CellFormat(widths[0], 7, tr(truncate(item.Description, 60)), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, item.Quantity.String(), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money.Format(item.Price), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money.Format(LineTotal(item)), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	amount, due := Totals(inv)
	totals := [][2]string{
		{"Total", money.Format(amount)},
		{"Paid", money.Format(inv.PaidAmount)},
		{"Balance due", money.Format(due)},
	}
	for i, row := range totals {
		style := ""
		if i == len(totals)-1 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(widths[0]+widths[1], 7, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, row[0], "T", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, row[1], "T", 1, "R", false, 0, "")
	}

	if strings.TrimSpace(inv.Notes) != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice pdf %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
