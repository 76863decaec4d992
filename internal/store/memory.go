package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

// Memory keeps invoices in process memory. It backs demos and tests.
type Memory struct {
	mu       sync.RWMutex
	invoices map[string]invoice.Invoice
	clock    func() time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{invoices: make(map[string]invoice.Invoice), clock: time.Now}
}

// WithClock overrides the timestamp source.
func (m *Memory) WithClock(clock func() time.Time) *Memory {
	m.clock = clock
	return m
}

// Create stores a new invoice, rejecting duplicate invoice numbers.
func (m *Memory) Create(ctx context.Context, inv invoice.Invoice) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numberTakenLocked(inv.InvoiceNumber, "") {
		return nil, fmt.Errorf("%w: invoice number already exists", httpx.ErrDuplicate)
	}
	now := m.clock().UTC()
	inv = inv.Clone()
	inv.ID = uuid.NewString()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	m.invoices[inv.ID] = inv
	out := inv.Clone()
	return &out, nil
}

// Get returns the invoice with id.
func (m *Memory) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %w", httpx.ErrNotFound)
	}
	out := inv.Clone()
	return &out, nil
}

// List filters and orders invoices by invoice date, newest first.
func (m *Memory) List(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]invoice.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		if matches(inv, filter) {
			out = append(out, inv.Clone())
		}
	}
	sortByInvoiceDate(out)
	return out, nil
}

// Update replaces the mutable fields of an existing invoice.
func (m *Memory) Update(ctx context.Context, inv invoice.Invoice) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(inv)
}

// Modify applies change to the current invoice and stores the result while
// holding the write lock.
func (m *Memory) Modify(ctx context.Context, id string, change func(invoice.Invoice) (invoice.Invoice, error)) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %w", httpx.ErrNotFound)
	}
	next, err := change(current.Clone())
	if err != nil {
		return nil, err
	}
	next.ID = id
	return m.updateLocked(next)
}

func (m *Memory) updateLocked(inv invoice.Invoice) (*invoice.Invoice, error) {
	current, ok := m.invoices[inv.ID]
	if !ok {
		return nil, fmt.Errorf("invoice %w", httpx.ErrNotFound)
	}
	if m.numberTakenLocked(inv.InvoiceNumber, inv.ID) {
		return nil, fmt.Errorf("%w: invoice number already exists", httpx.ErrDuplicate)
	}
	inv = inv.Clone()
	inv.CreatedAt = current.CreatedAt
	inv.UpdatedAt = m.clock().UTC()
	m.invoices[inv.ID] = inv
	out := inv.Clone()
	return &out, nil
}

// UpdateStatus changes only the status of an invoice.
func (m *Memory) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %w", httpx.ErrNotFound)
	}
	inv.Status = status
	inv.UpdatedAt = m.clock().UTC()
	m.invoices[id] = inv
	out := inv.Clone()
	return &out, nil
}

// IncomeByMonth aggregates completed invoices in memory.
func (m *Memory) IncomeByMonth(ctx context.Context, r income.Range) ([]income.MonthlyIncome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]invoice.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		all = append(all, inv)
	}
	return income.Months(all, r), nil
}

func (m *Memory) numberTakenLocked(number, exceptID string) bool {
	for id, inv := range m.invoices {
		if id != exceptID && inv.InvoiceNumber == number {
			return true
		}
	}
	return false
}

func matches(inv invoice.Invoice, filter invoice.Filter) bool {
	if filter.CustomerName != "" && !strings.Contains(strings.ToLower(inv.CustomerName), strings.ToLower(filter.CustomerName)) {
		return false
	}
	if filter.Status != "" && inv.Status != filter.Status {
		return false
	}
	if filter.DueFrom.Valid() && inv.DueDate.Time.Before(filter.DueFrom.Time) {
		return false
	}
	if filter.DueTo.Valid() && inv.DueDate.Time.After(filter.DueTo.EndOfDay()) {
		return false
	}
	return true
}

func sortByInvoiceDate(invoices []invoice.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		if !a.InvoiceDate.Equal(b.InvoiceDate) {
			return a.InvoiceDate.Time.After(b.InvoiceDate.Time)
		}
		return a.InvoiceNumber < b.InvoiceNumber
	})
}

var (
	_ invoice.Repository = (*Memory)(nil)
	_ income.Source      = (*Memory)(nil)
)
