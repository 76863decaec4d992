package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/invoice"
)

func inv(id string, status invoice.Status, invoiceDate, dueDate invoice.Date) invoice.Invoice {
	return invoice.Invoice{ID: id, InvoiceNumber: id, Status: status, InvoiceDate: invoiceDate, DueDate: dueDate}
}

func ids(invoices []invoice.Invoice) []string {
	out := make([]string, 0, len(invoices))
	for _, i := range invoices {
		out = append(out, i.ID)
	}
	return out
}

func TestBucketsDisplayOrder(t *testing.T) {
	require.Equal(t, []Bucket{"Due Today", "Pending", "In Process", "Hold", "Completed", "Cancelled"}, Buckets())
	require.False(t, BucketDueToday.Droppable())
	require.True(t, Bucket("Hold").Droppable())
}

func TestGroupOverlaysDueToday(t *testing.T) {
	today := invoice.NewDate(2024, 7, 15)
	invoices := []invoice.Invoice{
		inv("a", invoice.StatusPending, invoice.NewDate(2024, 7, 1), today),
		inv("b", invoice.StatusCompleted, invoice.NewDate(2024, 7, 2), today),
		inv("c", invoice.StatusPending, invoice.NewDate(2024, 7, 3), invoice.NewDate(2024, 7, 16)),
	}
	columns := Group(invoices, today)
	require.Len(t, columns, 6)
	require.Equal(t, BucketDueToday, columns[0].Bucket)
	require.Equal(t, []string{"b", "a"}, ids(columns[0].Invoices))
	require.Equal(t, []string{"c"}, ids(columns[1].Invoices))
	for _, col := range columns[2:] {
		require.NotNil(t, col.Invoices)
		require.Empty(t, col.Invoices)
	}
	// the overlay never rewrites the stored status
	require.Equal(t, invoice.StatusCompleted, columns[0].Invoices[0].Status)
}

func TestGroupOrdersNewestFirstWithMissingDatesLast(t *testing.T) {
	invoices := []invoice.Invoice{
		inv("old", invoice.StatusHold, invoice.NewDate(2023, 1, 1), invoice.Date{}),
		inv("none", invoice.StatusHold, invoice.Date{}, invoice.Date{}),
		inv("new-b", invoice.StatusHold, invoice.NewDate(2024, 5, 1), invoice.Date{}),
		inv("new-a", invoice.StatusHold, invoice.NewDate(2024, 5, 1), invoice.Date{}),
	}
	columns := Group(invoices, invoice.NewDate(2024, 7, 15))
	require.Equal(t, []string{"new-a", "new-b", "old", "none"}, ids(columns[3].Invoices))
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("in-process")
	require.NoError(t, err)
	require.Equal(t, Bucket(invoice.StatusInProcess), b)

	b, err = ParseBucket("due today")
	require.NoError(t, err)
	require.Equal(t, BucketDueToday, b)

	_, err = ParseBucket("Archived")
	require.Error(t, err)
}

func TestTodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	now := time.Date(2024, 7, 15, 20, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-07-16", Today(now, loc).String())
	require.Equal(t, "2024-07-15", Today(now, time.UTC).String())
}

func TestLatestDiscardsStaleTickets(t *testing.T) {
	var latest Latest
	first := latest.Begin()
	second := latest.Begin()
	require.False(t, latest.Current(first))
	require.True(t, latest.Current(second))
}
