package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

var (
	// ErrNotDroppable rejects moves into the Due Today overlay.
	ErrNotDroppable = fmt.Errorf("board: %q is not a drop target: %w", BucketDueToday, httpx.ErrValidation)
	// ErrUnknownInvoice is returned for ids the board does not hold.
	ErrUnknownInvoice = fmt.Errorf("board: unknown invoice: %w", httpx.ErrNotFound)
	// ErrMovePending rejects a second move while one is still in flight.
	ErrMovePending = errors.New("board: a move for this invoice is still pending")
)

// Move outcomes reported to the Observer.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeNoop       = "noop"
	OutcomeRejected   = "rejected"
)

// StatusWriter persists a status-only change.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Invoice, error)
}

// Observer receives one outcome per ApplyMove call.
type Observer interface {
	ObserveMove(outcome string)
}

// MoveError reports a move that failed to persist and was rolled back.
type MoveError struct {
	ID   string
	From invoice.Status
	To   invoice.Status
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("board: move %s from %s to %s rolled back: %v", e.ID, e.From, e.To, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

type move struct {
	seq  uint64
	id   string
	from invoice.Status
	to   invoice.Status
	done bool
}

// Engine holds the client-side board state. Moves are applied optimistically
// and undone if the write fails. It is safe for concurrent use.
type Engine struct {
	writer   StatusWriter
	observer Observer

	mu       sync.Mutex
	invoices []invoice.Invoice
	// base is the state before the oldest journalled move; failed moves are
	// rolled back by rebuilding from it.
	base    []invoice.Invoice
	journal []*move
	pending map[string]*move
	seq     uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports move outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine builds an empty board writing through writer.
func NewEngine(writer StatusWriter, opts ...Option) *Engine {
	e := &Engine{writer: writer, pending: make(map[string]*move)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the board contents with a fresh listing. Moves still in
// flight are re-applied so their optimistic state is not lost.
func (e *Engine) Load(invoices []invoice.Invoice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fresh := cloneAll(invoices)
	if len(e.journal) == 0 {
		e.invoices = fresh
		return
	}
	e.base = fresh
	e.rebuild()
}

// Invoices returns a copy of the board in its current order.
func (e *Engine) Invoices() []invoice.Invoice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.invoices)
}

// Columns groups the current state for display.
func (e *Engine) Columns(today invoice.Date) []Column {
	return Group(e.Invoices(), today)
}

// Pending reports whether id has a move in flight.
func (e *Engine) Pending(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[id]
	return ok
}

// ApplyMove moves invoice id into bucket to. The board changes immediately;
// the status write happens afterwards and a failure restores the board as it
// was before this move, keeping unrelated moves. Moving to the current
// status does nothing.
func (e *Engine) ApplyMove(ctx context.Context, id string, to Bucket) (invoice.Invoice, error) {
	m, current, err := e.begin(id, to)
	if err != nil {
		e.observe(OutcomeRejected)
		return invoice.Invoice{}, err
	}
	if m == nil {
		e.observe(OutcomeNoop)
		return current, nil
	}

	saved, writeErr := e.writer.UpdateStatus(ctx, m.id, m.to)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, m.id)
	if writeErr != nil {
		e.drop(m)
		e.observe(OutcomeRolledBack)
		return invoice.Invoice{}, &MoveError{ID: m.id, From: m.from, To: m.to, Err: writeErr}
	}
	m.done = true
	e.trim()
	e.observe(OutcomeCommitted)
	if moved, ok := find(e.invoices, m.id); ok {
		return moved.Clone(), nil
	}
	// A reload dropped the invoice while the write was in flight.
	if saved != nil {
		return saved.Clone(), nil
	}
	return invoice.Invoice{ID: m.id, Status: m.to}, nil
}

// begin validates the move and applies it optimistically. A nil move with a
// nil error means the move is a no-op.
func (e *Engine) begin(id string, to Bucket) (*move, invoice.Invoice, error) {
	if to == BucketDueToday {
		return nil, invoice.Invoice{}, ErrNotDroppable
	}
	status, ok := to.Status()
	if !ok {
		return nil, invoice.Invoice{}, invoice.ValidationErrors{{Field: "status", Message: fmt.Sprintf("%q is not a board column", string(to))}}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	inv, ok := find(e.invoices, id)
	if !ok {
		return nil, invoice.Invoice{}, ErrUnknownInvoice
	}
	if _, busy := e.pending[id]; busy {
		return nil, invoice.Invoice{}, ErrMovePending
	}
	if inv.Status == status {
		return nil, inv.Clone(), nil
	}

	if len(e.journal) == 0 {
		e.base = cloneAll(e.invoices)
	}
	e.seq++
	m := &move{seq: e.seq, id: id, from: inv.Status, to: status}
	e.journal = append(e.journal, m)
	e.pending[id] = m
	e.invoices = apply(e.invoices, m)
	return m, invoice.Invoice{}, nil
}

// drop removes a failed move and rebuilds the board without it.
func (e *Engine) drop(failed *move) {
	kept := e.journal[:0]
	for _, m := range e.journal {
		if m != failed {
			kept = append(kept, m)
		}
	}
	e.journal = kept
	e.rebuild()
	e.trim()
}

// rebuild replays the journal on top of base.
func (e *Engine) rebuild() {
	state := cloneAll(e.base)
	for _, m := range e.journal {
		state = apply(state, m)
	}
	e.invoices = state
}

// trim folds committed moves at the head of the journal into base.
func (e *Engine) trim() {
	for len(e.journal) > 0 && e.journal[0].done {
		e.base = apply(e.base, e.journal[0])
		e.journal = e.journal[1:]
	}
	if len(e.journal) == 0 {
		e.base = nil
	}
}

func (e *Engine) observe(outcome string) {
	if e.observer != nil {
		e.observer.ObserveMove(outcome)
	}
}

// apply removes the invoice, sets the new status and appends it at the end.
func apply(state []invoice.Invoice, m *move) []invoice.Invoice {
	out := make([]invoice.Invoice, 0, len(state))
	var moved *invoice.Invoice
	for i := range state {
		if state[i].ID == m.id {
			inv := state[i].Clone()
			moved = &inv
			continue
		}
		out = append(out, state[i])
	}
	if moved == nil {
		return out
	}
	moved.Status = m.to
	return append(out, *moved)
}

func find(state []invoice.Invoice, id string) (invoice.Invoice, bool) {
	for _, inv := range state {
		if inv.ID == id {
			return inv, true
		}
	}
	return invoice.Invoice{}, false
}

func cloneAll(in []invoice.Invoice) []invoice.Invoice {
	out := make([]invoice.Invoice, len(in))
	for i, inv := range in {
		out[i] = inv.Clone()
	}
	return out
}
