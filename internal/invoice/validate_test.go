package invoice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

func validInput() Input {
	return Input{
		InvoiceNumber: "INV-100",
		CustomerName:  "Acme Corp",
		CustomerEmail: "billing@acme.test",
		InvoiceDate:   "2024-07-05",
		DueDate:       "2024-08-05",
		Items:         []ItemInput{{Description: "Consulting", Quantity: dec("2"), Price: dec("150")}},
		PaidAmount:    dec("0"),
		Status:        StatusPending,
	}
}

func TestValidateAcceptsValidInput(t *testing.T) {
	require.NoError(t, Validate(validInput()))
}

func TestValidateReportsEveryViolation(t *testing.T) {
	in := Input{
		CustomerEmail: "not-an-email",
		InvoiceDate:   "yesterday",
		DueDate:       "2024-13-40",
		PaidAmount:    dec("-1"),
		Status:        "Archived",
	}
	err := Validate(in)
	require.Error(t, err)
	require.True(t, errors.Is(err, httpx.ErrValidation))

	verrs, ok := AsValidation(err)
	require.True(t, ok)
	require.Len(t, verrs, 8)
	fields := verrs.Map()
	for _, field := range []string{"invoiceNumber", "customerName", "customerEmail", "invoiceDate", "dueDate", "items", "paidAmount", "status"} {
		require.Contains(t, fields, field)
	}
}

func TestValidateCountsMixedViolations(t *testing.T) {
	in := validInput()
	in.CustomerEmail = "billing-at-acme"
	in.DueDate = "2024-07-04"
	in.Items = []ItemInput{
		{Description: "Consulting", Quantity: dec("1"), Price: dec("10")},
		{Description: "", Quantity: dec("0"), Price: dec("0")},
	}
	verrs, ok := AsValidation(Validate(in))
	require.True(t, ok)
	require.Len(t, verrs, 5)
	require.Equal(t, map[string]string{
		"customerEmail":        "must be a valid email address",
		"dueDate":              "must be on or after the invoice date",
		"items[1].description": "is required",
		"items[1].quantity":    "must be at least 1",
		"items[1].price":       "must be at least 0.01",
	}, verrs.Map())
}

func TestValidateTreatsWhitespaceAsMissing(t *testing.T) {
	in := validInput()
	in.InvoiceNumber = "   "
	in.CustomerName = "\t"
	in.Items[0].Description = "  "
	verrs, ok := AsValidation(Validate(in))
	require.True(t, ok)
	require.Len(t, verrs, 3)
	for _, field := range []string{"invoiceNumber", "customerName", "items[0].description"} {
		require.Equal(t, "is required", verrs.Map()[field])
	}
	require.Equal(t, "  ", in.Items[0].Description)
}

func TestValidateItemRules(t *testing.T) {
	in := validInput()
	in.Items = []ItemInput{
		{Description: "", Quantity: dec("0"), Price: dec("0")},
	}
	verrs, ok := AsValidation(Validate(in))
	require.True(t, ok)
	fields := verrs.Map()
	require.Equal(t, "is required", fields["items[0].description"])
	require.Equal(t, "must be at least 1", fields["items[0].quantity"])
	require.Equal(t, "must be at least 0.01", fields["items[0].price"])
}

func TestValidateDueDateNotBeforeInvoiceDate(t *testing.T) {
	in := validInput()
	in.DueDate = "2024-07-04"
	verrs, ok := AsValidation(Validate(in))
	require.True(t, ok)
	require.Len(t, verrs, 1)
	require.Equal(t, "dueDate", verrs[0].Field)

	in.DueDate = in.InvoiceDate
	require.NoError(t, Validate(in))
}

func TestValidationErrorsFieldDetails(t *testing.T) {
	verrs := ValidationErrors{{Field: "status", Message: "is required"}}
	details := verrs.FieldDetails()
	require.Equal(t, []httpx.FieldDetail{{Field: "status", Message: "is required"}}, details)
	require.Equal(t, 400, httpx.StatusFor(verrs))
}
