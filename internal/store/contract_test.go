package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

func day(t *testing.T, value string) invoice.Date {
	t.Helper()
	d, err := invoice.ParseDate(value)
	require.NoError(t, err)
	return d
}

func sample(t *testing.T, number, customer, invoiceDate, dueDate string, status invoice.Status, paid string) invoice.Invoice {
	t.Helper()
	return invoice.Invoice{
		InvoiceNumber: number,
		CustomerName:  customer,
		InvoiceDate:   day(t, invoiceDate),
		DueDate:       day(t, dueDate),
		Items: []invoice.Item{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("150.00")},
		},
		PaidAmount: decimal.RequireFromString(paid),
		Status:     status,
	}
}

// runContract exercises behaviour every backend must share.
func runContract(t *testing.T, open func(t *testing.T) Backend) {
	t.Run("create and get", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		created, err := repo.Create(ctx, sample(t, "INV-1", "Acme Corp", "2024-07-05", "2024-08-05", invoice.StatusPending, "0"))
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.False(t, created.CreatedAt.IsZero())

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "INV-1", got.InvoiceNumber)
		require.Equal(t, "2024-07-05", got.InvoiceDate.String())
		require.Len(t, got.Items, 1)
		require.True(t, got.Items[0].Price.Equal(decimal.RequireFromString("150")))
		require.True(t, invoice.TotalAmount(got.Items).Equal(decimal.NewFromInt(300)))
	})

	t.Run("duplicate number conflicts", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		_, err := repo.Create(ctx, sample(t, "INV-1", "Acme", "2024-07-05", "2024-08-05", invoice.StatusPending, "0"))
		require.NoError(t, err)
		_, err = repo.Create(ctx, sample(t, "INV-1", "Other", "2024-07-06", "2024-08-06", invoice.StatusPending, "0"))
		require.True(t, errors.Is(err, httpx.ErrDuplicate), "got %v", err)
	})

	t.Run("missing invoice is not found", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		_, err := repo.Get(ctx, "does-not-exist")
		require.True(t, errors.Is(err, httpx.ErrNotFound), "got %v", err)
		_, err = repo.UpdateStatus(ctx, "does-not-exist", invoice.StatusHold)
		require.True(t, errors.Is(err, httpx.ErrNotFound), "got %v", err)
	})

	t.Run("list filters and order", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		for _, inv := range []invoice.Invoice{
			sample(t, "INV-1", "Acme Corp", "2024-07-01", "2024-07-10", invoice.StatusPending, "0"),
			sample(t, "INV-2", "ACME Labs", "2024-07-03", "2024-07-15", invoice.StatusHold, "0"),
			sample(t, "INV-3", "Globex", "2024-07-02", "2024-07-15", invoice.StatusPending, "0"),
		} {
			_, err := repo.Create(ctx, inv)
			require.NoError(t, err)
		}

		all, err := repo.List(ctx, invoice.Filter{})
		require.NoError(t, err)
		require.Equal(t, []string{"INV-2", "INV-3", "INV-1"}, numbers(all))

		byName, err := repo.List(ctx, invoice.Filter{CustomerName: "acme"})
		require.NoError(t, err)
		require.Equal(t, []string{"INV-2", "INV-1"}, numbers(byName))

		byStatus, err := repo.List(ctx, invoice.Filter{Status: invoice.StatusPending})
		require.NoError(t, err)
		require.Equal(t, []string{"INV-3", "INV-1"}, numbers(byStatus))

		// The end of the due range is inclusive of the whole day.
		byDue, err := repo.List(ctx, invoice.Filter{DueFrom: day(t, "2024-07-11"), DueTo: day(t, "2024-07-15")})
		require.NoError(t, err)
		require.Equal(t, []string{"INV-2", "INV-3"}, numbers(byDue))
	})

	t.Run("update and status", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		first, err := repo.Create(ctx, sample(t, "INV-1", "Acme", "2024-07-05", "2024-08-05", invoice.StatusPending, "0"))
		require.NoError(t, err)
		_, err = repo.Create(ctx, sample(t, "INV-2", "Acme", "2024-07-05", "2024-08-05", invoice.StatusPending, "0"))
		require.NoError(t, err)

		next := *first
		next.CustomerName = "Acme Renamed"
		next.PaidAmount = decimal.RequireFromString("12.50")
		updated, err := repo.Update(ctx, next)
		require.NoError(t, err)
		require.Equal(t, "Acme Renamed", updated.CustomerName)
		require.True(t, updated.PaidAmount.Equal(decimal.RequireFromString("12.5")))

		next.InvoiceNumber = "INV-2"
		_, err = repo.Update(ctx, next)
		require.True(t, errors.Is(err, httpx.ErrDuplicate), "got %v", err)

		moved, err := repo.UpdateStatus(ctx, first.ID, invoice.StatusCompleted)
		require.NoError(t, err)
		require.Equal(t, invoice.StatusCompleted, moved.Status)
		require.Equal(t, "Acme Renamed", moved.CustomerName)
	})

	t.Run("income by month", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		for _, inv := range []invoice.Invoice{
			sample(t, "INV-A", "A", "2024-07-05", "2024-07-30", invoice.StatusCompleted, "100"),
			sample(t, "INV-B", "B", "2024-07-20", "2024-07-30", invoice.StatusCompleted, "50"),
			sample(t, "INV-C", "C", "2024-07-21", "2024-07-30", invoice.StatusPending, "999"),
		} {
			_, err := repo.Create(ctx, inv)
			require.NoError(t, err)
		}
		rng, err := income.NewRange(day(t, "2024-07-01"), day(t, "2024-07-31"))
		require.NoError(t, err)
		months, err := repo.IncomeByMonth(ctx, rng)
		require.NoError(t, err)
		rep := income.Summarize(months, rng)
		require.Len(t, rep.MonthlyData, 1)
		require.Equal(t, 2024, rep.MonthlyData[0].Year)
		require.Equal(t, 6, rep.MonthlyData[0].MonthIndex)
		require.True(t, rep.MonthlyData[0].TotalIncome.Equal(decimal.NewFromInt(150)))
		require.True(t, rep.TotalIncomeInRange.Equal(decimal.NewFromInt(150)))
	})
}

func numbers(invoices []invoice.Invoice) []string {
	out := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, inv.InvoiceNumber)
	}
	return out
}
