package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/store"
)

func TestSeedIsIdempotent(t *testing.T) {
	svc := invoice.NewService(store.NewMemory(), nil, nil, nil)
	today := invoice.NewDate(2024, 6, 14)

	out := new(bytes.Buffer)
	require.NoError(t, Seed(context.Background(), svc, today, out))
	require.Contains(t, out.String(), "seeded 9 invoice(s)")

	out.Reset()
	require.NoError(t, Seed(context.Background(), svc, today, out))
	require.Contains(t, out.String(), "skip DEMO-0001: already exists")
	require.Contains(t, out.String(), "seeded 0 invoice(s)")

	invoices, err := svc.ListInvoices(context.Background(), invoice.Filter{})
	require.NoError(t, err)
	require.Len(t, invoices, len(demoInvoices))

	seen := map[invoice.Status]bool{}
	for _, inv := range invoices {
		seen[inv.Status] = true
	}
	for _, status := range invoice.Statuses() {
		require.True(t, seen[status], "no demo invoice is %s", status)
	}

	due, err := svc.DueOn(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, due, 2, "two open demo invoices fall due today")
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "seed", "board", "jobs"} {
		require.True(t, names[want], "missing %s command", want)
	}
}

func TestMigrateRejectsUnknownDirection(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"migrate", "sideways"})

	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unknown migration direction"))
}
