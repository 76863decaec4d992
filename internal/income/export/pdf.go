package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/platform/money"
)

// HTMLRenderer converts an HTML document into PDF bytes.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFExporter prints the income report through an HTML to PDF service.
type PDFExporter struct {
	renderer HTMLRenderer
}

// NewPDFExporter wires the exporter to renderer.
func NewPDFExporter(renderer HTMLRenderer) *PDFExporter {
	return &PDFExporter{renderer: renderer}
}

// Payload is the content of an income PDF.
type Payload struct {
	Title  string
	Report income.Report
	Chart  template.HTML
}

var documentTemplate = template.Must(template.New("income").Funcs(template.FuncMap{
	"money": money.Format,
	"fill":  income.Fill,
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><style>
body{font-family:sans-serif;margin:24px;color:#1e293b}
h1{font-size:20px}
table{width:100%;border-collapse:collapse;margin-top:16px}
th,td{border:1px solid #ddd;padding:6px;text-align:right}
th:first-child,td:first-child{text-align:left}
th{background:#f5f5f5}
</style></head><body>
<h1>{{.Title}}</h1>
<p>{{.Report.Start}} to {{.Report.End}}</p>
{{with .Chart}}<div>{{.}}</div>{{end}}
<table>
<thead><tr><th>Month</th><th>Income</th></tr></thead>
<tbody>
{{range fill .Report}}<tr><td>{{.Label}}</td><td>{{money .TotalIncome}}</td></tr>
{{end}}</tbody>
<tfoot><tr><th>Total</th><th>{{money .Report.TotalIncomeInRange}}</th></tr></tfoot>
</table>
</body></html>`))

// BuildHTML renders the standalone document sent to the PDF service.
func BuildHTML(payload Payload) (string, error) {
	if payload.Title == "" {
		payload.Title = "Income report"
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("income html: %w", err)
	}
	return buf.String(), nil
}

// Render builds the document and converts it to PDF.
func (p *PDFExporter) Render(ctx context.Context, payload Payload) ([]byte, error) {
	if p == nil || p.renderer == nil {
		return nil, fmt.Errorf("pdf exporter not initialised")
	}
	html, err := BuildHTML(payload)
	if err != nil {
		return nil, err
	}
	return p.renderer.RenderHTML(ctx, html)
}
