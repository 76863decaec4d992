package invoice_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []invoice.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event invoice.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type countingInvalidator struct{ bumps int }

func (c *countingInvalidator) Bump(context.Context) error {
	c.bumps++
	return nil
}

func newService(t *testing.T) (*invoice.Service, *recordingPublisher, *countingInvalidator) {
	t.Helper()
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	return invoice.NewService(store.NewMemory(), pub, inv, nil), pub, inv
}

func input(number string) invoice.Input {
	return invoice.Input{
		InvoiceNumber: number,
		CustomerName:  "Acme Corp",
		InvoiceDate:   "2024-07-05",
		DueDate:       "2024-08-05",
		Items: []invoice.ItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(2), Price: decimal.RequireFromString("150")},
		},
		PaidAmount: decimal.Zero,
	}
}

func TestCreateInvoiceDefaultsToPending(t *testing.T) {
	svc, pub, inv := newService(t)
	created, err := svc.CreateInvoice(context.Background(), input("INV-1"))
	require.NoError(t, err)
	require.Equal(t, invoice.StatusPending, created.Status)
	require.Equal(t, 1, inv.bumps)
	require.Len(t, pub.events, 1)
	require.Equal(t, invoice.EventCreated, pub.events[0].Type)
}

func TestCreateInvoiceRejectsInvalidAndDuplicate(t *testing.T) {
	svc, pub, _ := newService(t)
	ctx := context.Background()

	bad := input("")
	bad.DueDate = "2024-07-01"
	_, err := svc.CreateInvoice(ctx, bad)
	require.Equal(t, 400, httpx.StatusFor(err))
	verrs, ok := invoice.AsValidation(err)
	require.True(t, ok)
	require.Contains(t, verrs.Map(), "invoiceNumber")
	require.Contains(t, verrs.Map(), "dueDate")

	_, err = svc.CreateInvoice(ctx, input("INV-1"))
	require.NoError(t, err)
	_, err = svc.CreateInvoice(ctx, input("INV-1"))
	require.True(t, errors.Is(err, httpx.ErrDuplicate))
	require.Equal(t, 409, httpx.StatusFor(err))
	require.Len(t, pub.events, 1)
}

func TestPublisherFailureDoesNotFailWrite(t *testing.T) {
	svc, pub, _ := newService(t)
	pub.err = errors.New("broker down")
	_, err := svc.CreateInvoice(context.Background(), input("INV-1"))
	require.NoError(t, err)
}

func TestUpdateInvoiceMergesPatch(t *testing.T) {
	svc, pub, _ := newService(t)
	ctx := context.Background()
	created, err := svc.CreateInvoice(ctx, input("INV-1"))
	require.NoError(t, err)

	paid := decimal.RequireFromString("100")
	name := "Acme Holdings"
	updated, err := svc.UpdateInvoice(ctx, created.ID, invoice.Patch{CustomerName: &name, PaidAmount: &paid})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, "INV-1", updated.InvoiceNumber)
	require.Equal(t, "Acme Holdings", updated.CustomerName)
	require.True(t, invoice.TotalDue(*updated).Equal(decimal.NewFromInt(200)))
	require.Equal(t, invoice.EventUpdated, pub.events[len(pub.events)-1].Type)

	early := "2024-01-01"
	_, err = svc.UpdateInvoice(ctx, created.ID, invoice.Patch{DueDate: &early})
	verrs, ok := invoice.AsValidation(err)
	require.True(t, ok)
	require.Equal(t, "dueDate", verrs[0].Field)

	_, err = svc.UpdateInvoice(ctx, "missing", invoice.Patch{CustomerName: &name})
	require.Equal(t, 404, httpx.StatusFor(err))
}

func TestUpdateInvoiceStatusAllowsAnyTransition(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	created, err := svc.CreateInvoice(ctx, input("INV-1"))
	require.NoError(t, err)

	for _, status := range []invoice.Status{invoice.StatusCancelled, invoice.StatusPending, invoice.StatusCompleted, invoice.StatusHold} {
		updated, err := svc.UpdateInvoiceStatus(ctx, created.ID, status)
		require.NoError(t, err)
		require.Equal(t, status, updated.Status)
	}

	_, err = svc.UpdateInvoiceStatus(ctx, created.ID, "Archived")
	require.Equal(t, 400, httpx.StatusFor(err))
}

func TestListInvoicesRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.ListInvoices(context.Background(), invoice.Filter{Status: "Lost"})
	require.Equal(t, 400, httpx.StatusFor(err))
}

func TestDueOnExcludesClosedInvoices(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	open, err := svc.CreateInvoice(ctx, input("INV-1"))
	require.NoError(t, err)
	done, err := svc.CreateInvoice(ctx, input("INV-2"))
	require.NoError(t, err)
	_, err = svc.UpdateInvoiceStatus(ctx, done.ID, invoice.StatusCompleted)
	require.NoError(t, err)

	due, err := svc.DueOn(ctx, invoice.NewDate(2024, 8, 5))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, open.ID, due[0].ID)
}

func TestCreateInvoiceRejectsBlankText(t *testing.T) {
	repo := store.NewMemory()
	svc := invoice.NewService(repo, nil, nil, nil)
	ctx := context.Background()

	blank := input("   ")
	blank.CustomerName = "\t"
	blank.Items[0].Description = "  "
	_, err := svc.CreateInvoice(ctx, blank)
	verrs, ok := invoice.AsValidation(err)
	require.True(t, ok)
	require.Len(t, verrs, 3)
	fields := verrs.Map()
	require.Equal(t, "is required", fields["invoiceNumber"])
	require.Equal(t, "is required", fields["customerName"])
	require.Equal(t, "is required", fields["items[0].description"])

	// A second blank submission must fail validation, not collide on the number.
	_, err = svc.CreateInvoice(ctx, blank)
	require.Equal(t, 400, httpx.StatusFor(err))

	all, err := repo.List(ctx, invoice.Filter{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestCreateInvoiceTrimsText(t *testing.T) {
	svc, _, _ := newService(t)
	in := input("  INV-9 ")
	in.CustomerName = " Acme Corp\n"
	in.Items[0].Description = " Consulting "
	created, err := svc.CreateInvoice(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "INV-9", created.InvoiceNumber)
	require.Equal(t, "Acme Corp", created.CustomerName)
	require.Equal(t, "Consulting", created.Items[0].Description)
	require.Equal(t, " Consulting ", in.Items[0].Description, "caller's items are left untouched")
}

func TestUpdateInvoiceRejectsBlankPatch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	created, err := svc.CreateInvoice(ctx, input("INV-1"))
	require.NoError(t, err)

	blank := "  "
	_, err = svc.UpdateInvoice(ctx, created.ID, invoice.Patch{CustomerName: &blank})
	verrs, ok := invoice.AsValidation(err)
	require.True(t, ok)
	require.Len(t, verrs, 1)
	require.Equal(t, "customerName", verrs[0].Field)

	stored, err := svc.GetInvoice(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", stored.CustomerName)
}

// plainRepository hides Memory.Modify so the service falls back to a
// separate read and write.
type plainRepository struct {
	invoice.Repository
}

func TestUpdateInvoiceWithoutModifier(t *testing.T) {
	pub := &recordingPublisher{}
	svc := invoice.NewService(plainRepository{store.NewMemory()}, pub, nil, nil)
	ctx := context.Background()
	created, err := svc.CreateInvoice(ctx, input("INV-1"))
	require.NoError(t, err)

	status := invoice.StatusHold
	updated, err := svc.UpdateInvoice(ctx, created.ID, invoice.Patch{Status: &status})
	require.NoError(t, err)
	require.Equal(t, invoice.StatusHold, updated.Status)
	last := pub.events[len(pub.events)-1]
	require.Equal(t, invoice.EventUpdated, last.Type)
	require.Equal(t, invoice.StatusPending, last.PreviousStatus)

	early := "2024-01-01"
	_, err = svc.UpdateInvoice(ctx, created.ID, invoice.Patch{DueDate: &early})
	require.Equal(t, 400, httpx.StatusFor(err))

	name := "Acme"
	_, err = svc.UpdateInvoice(ctx, "missing", invoice.Patch{CustomerName: &name})
	require.Equal(t, 404, httpx.StatusFor(err))
}
