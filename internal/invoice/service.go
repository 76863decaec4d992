package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Repository defines persistence operations for invoices.
type Repository interface {
	Create(ctx context.Context, inv Invoice) (*Invoice, error)
	Get(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, filter Filter) ([]Invoice, error)
	Update(ctx context.Context, inv Invoice) (*Invoice, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Invoice, error)
}

// Modifier is implemented by repositories that can read, change and write an
// invoice without another writer slipping in between.
type Modifier interface {
	Modify(ctx context.Context, id string, change func(current Invoice) (Invoice, error)) (*Invoice, error)
}

// Event types published after successful writes.
const (
	EventCreated       = "invoice.created"
	EventUpdated       = "invoice.updated"
	EventStatusChanged = "invoice.status_changed"
)

// Event describes a committed invoice change.
type Event struct {
	Type           string    `json:"type"`
	Invoice        Invoice   `json:"invoice"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Publisher distributes invoice events to other systems.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Invalidator drops derived data (such as cached income reports) after writes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service wraps invoice business rules.
type Service struct {
	repo        Repository
	publisher   Publisher
	invalidator Invalidator
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService constructs a Service. Publisher and invalidator may be nil.
func NewService(repo Repository, publisher Publisher, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
		clock:       time.Now,
	}
}

// CreateInvoice validates and stores a new invoice. Status defaults to Pending.
func (s *Service) CreateInvoice(ctx context.Context, in Input) (*Invoice, error) {
	if strings.TrimSpace(string(in.Status)) == "" {
		in.Status = StatusPending
	}
	in = in.normalize()
	if err := Validate(in); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, in.build())
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.afterWrite(ctx, Event{Type: EventCreated, Invoice: *created})
	return created, nil
}

// GetInvoice loads a single invoice.
func (s *Service) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return inv, nil
}

// ListInvoices returns invoices matching filter, newest invoice date first.
func (s *Service) ListInvoices(ctx context.Context, filter Filter) ([]Invoice, error) {
	filter.CustomerName = strings.TrimSpace(filter.CustomerName)
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, statusError(filter.Status)
	}
	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// UpdateInvoice merges a partial payload into the stored invoice, validates
// the result and persists it. Repositories implementing Modifier run the read
// and the write atomically.
func (s *Service) UpdateInvoice(ctx context.Context, id string, patch Patch) (*Invoice, error) {
	var previous Status
	change := func(current Invoice) (Invoice, error) {
		previous = current.Status
		merged := patch.Apply(InputFromInvoice(current)).normalize()
		if err := Validate(merged); err != nil {
			return Invoice{}, err
		}
		next := merged.build()
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		return next, nil
	}

	var (
		updated *Invoice
		err     error
	)
	if modifier, ok := s.repo.(Modifier); ok {
		updated, err = modifier.Modify(ctx, id, change)
	} else {
		updated, err = s.readModifyWrite(ctx, id, change)
	}
	if err != nil {
		if verrs, ok := AsValidation(err); ok {
			return nil, verrs
		}
		return nil, fmt.Errorf("update invoice %s: %w", id, err)
	}
	s.afterWrite(ctx, Event{Type: EventUpdated, Invoice: *updated, PreviousStatus: previous})
	return updated, nil
}

func (s *Service) readModifyWrite(ctx context.Context, id string, change func(Invoice) (Invoice, error)) (*Invoice, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := change(*current)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, next)
}

// UpdateInvoiceStatus performs a status-only write. Any status may follow any other.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, id string, status Status) (*Invoice, error) {
	if !status.Valid() {
		return nil, statusError(status)
	}
	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update invoice %s status: %w", id, err)
	}
	s.afterWrite(ctx, Event{Type: EventStatusChanged, Invoice: *updated})
	return updated, nil
}

// DueOn lists open invoices (not Completed or Cancelled) due on day.
func (s *Service) DueOn(ctx context.Context, day Date) ([]Invoice, error) {
	invoices, err := s.repo.List(ctx, Filter{DueFrom: day, DueTo: day})
	if err != nil {
		return nil, fmt.Errorf("list invoices due %s: %w", day, err)
	}
	open := invoices[:0]
	for _, inv := range invoices {
		if inv.Status == StatusCompleted || inv.Status == StatusCancelled {
			continue
		}
		open = append(open, inv)
	}
	return open, nil
}

func (s *Service) afterWrite(ctx context.Context, event Event) {
	event.OccurredAt = s.clock().UTC()
	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx); err != nil {
			s.logger.Warn("invalidate income cache", slog.String("invoice_id", event.Invoice.ID), slog.Any("error", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish invoice event", slog.String("type", event.Type), slog.String("invoice_id", event.Invoice.ID), slog.Any("error", err))
		}
	}
}
