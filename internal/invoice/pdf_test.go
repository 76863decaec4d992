package invoice

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPDFRender(t *testing.T) {
	inv := Invoice{
		ID:            "abc",
		InvoiceNumber: "INV/2024 07",
		CustomerName:  "Acme Corp",
		CustomerEmail: "billing@acme.test",
		InvoiceDate:   NewDate(2024, 7, 5),
		DueDate:       NewDate(2024, 8, 5),
		Items:         []Item{{Description: "Consulting", Quantity: dec("2"), Price: dec("150")}},
		PaidAmount:    dec("50"),
		Notes:         "Thank you for your business.",
		Status:        StatusPending,
	}
	doc, err := NewPDF("").Render(inv)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	require.Equal(t, "invoice-INV-2024-07.pdf", PDFFilename(inv))
}
