package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/invoice"
)

func sampleReport(t *testing.T) income.Report {
	t.Helper()
	rng, err := income.NewRange(invoice.NewDate(2024, 6, 3), invoice.NewDate(2024, 8, 9))
	require.NoError(t, err)
	return income.Summarize([]income.MonthlyIncome{
		{Year: 2024, MonthIndex: 6, TotalIncome: decimal.RequireFromString("150")},
	}, rng)
}

func TestWriteIncomeCSVFillsEmptyMonths(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteIncomeCSV(buf, sampleReport(t)))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Year", "Month", "Label", "Total Income"},
		{"2024", "6", "Jun 2024", "0.00"},
		{"2024", "7", "Jul 2024", "150.00"},
		{"2024", "8", "Aug 2024", "0.00"},
		{"", "", "Total", "150.00"},
	}, records)
}

type fakeRenderer struct {
	html string
}

func (f *fakeRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-fake"), nil
}

func TestPDFExporterRender(t *testing.T) {
	renderer := &fakeRenderer{}
	doc, err := NewPDFExporter(renderer).Render(context.Background(), Payload{
		Report: sampleReport(t),
		Chart:  "<svg></svg>",
	})
	require.NoError(t, err)
	require.Equal(t, "%PDF-fake", string(doc))
	require.Contains(t, renderer.html, "Income report")
	require.Contains(t, renderer.html, "<svg></svg>")
	require.Contains(t, renderer.html, "150.00")
	require.True(t, strings.Contains(renderer.html, "2024-06-01 to 2024-08-31"))
}

func TestPDFExporterRequiresRenderer(t *testing.T) {
	var exporter *PDFExporter
	_, err := exporter.Render(context.Background(), Payload{})
	require.Error(t, err)
}
