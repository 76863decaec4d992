package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/view"
)

// Store is what the board needs from the invoice service.
type Store interface {
	StatusWriter
	ListInvoices(ctx context.Context, filter invoice.Filter) ([]invoice.Invoice, error)
}

// ServiceStore adapts *invoice.Service to Store.
type ServiceStore struct {
	*invoice.Service
}

// UpdateStatus forwards to UpdateInvoiceStatus.
func (s ServiceStore) UpdateStatus(ctx context.Context, id string, status invoice.Status) (*invoice.Invoice, error) {
	return s.UpdateInvoiceStatus(ctx, id, status)
}

// Handler serves the board page and its JSON view.
type Handler struct {
	logger    *slog.Logger
	store     Store
	templates *view.Engine
	csrf      *shared.CSRFManager
	location  *time.Location
	observer  Observer
	clock     func() time.Time
}

// NewHandler builds Handler instance. observer may be nil.
func NewHandler(logger *slog.Logger, store Store, templates *view.Engine, csrf *shared.CSRFManager, location *time.Location, observer Observer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.Local
	}
	return &Handler{
		logger:    logger,
		store:     store,
		templates: templates,
		csrf:      csrf,
		location:  location,
		observer:  observer,
		clock:     time.Now,
	}
}

// MountRoutes registers the HTML board under /board.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showBoard)
	r.Post("/moves", h.move)
}

// MountAPI registers GET /api/board.
func (h *Handler) MountAPI(r chi.Router) {
	r.Get("/", h.columnsJSON)
}

// ColumnView is the JSON shape of a column.
type ColumnView struct {
	Bucket    Bucket         `json:"bucket"`
	Slug      string         `json:"slug"`
	Droppable bool           `json:"droppable"`
	Invoices  []invoice.View `json:"invoices"`
}

// BoardResponse is returned by GET /api/board.
type BoardResponse struct {
	Today   invoice.Date `json:"today"`
	Columns []ColumnView `json:"columns"`
}

func (h *Handler) load(ctx context.Context) (BoardResponse, error) {
	invoices, err := h.store.ListInvoices(ctx, invoice.Filter{})
	if err != nil {
		return BoardResponse{}, err
	}
	today := Today(h.clock(), h.location)
	return BoardResponse{Today: today, Columns: views(Group(invoices, today))}, nil
}

func views(columns []Column) []ColumnView {
	out := make([]ColumnView, 0, len(columns))
	for _, col := range columns {
		cv := ColumnView{
			Bucket:    col.Bucket,
			Slug:      col.Bucket.Slug(),
			Droppable: col.Bucket.Droppable(),
			Invoices:  make([]invoice.View, 0, len(col.Invoices)),
		}
		for _, inv := range col.Invoices {
			cv.Invoices = append(cv.Invoices, invoice.NewView(inv))
		}
		out = append(out, cv)
	}
	return out
}

func (h *Handler) showBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.load(r.Context())
	status := http.StatusOK
	data := map[string]any{"Board": board, "Statuses": invoice.Statuses()}
	if err != nil {
		h.logger.Error("load board", slog.Any("error", err))
		status = httpx.StatusFor(err)
		data["Error"] = shared.UserSafeMessage(err)
	}
	viewData := view.Page(r, h.csrf, "Board", data)
	if err := h.templates.RenderStatus(w, status, "pages/board.html", viewData); err != nil {
		h.logger.Error("render board", slog.Any("error", err))
	}
}

func (h *Handler) columnsJSON(w http.ResponseWriter, r *http.Request) {
	board, err := h.load(r.Context())
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("load board", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, board)
}

// move is the form fallback for browsers without drag and drop. It runs the
// same engine the terminal board uses, against a fresh listing.
func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	id := r.PostFormValue("id")
	to, err := ParseBucket(r.PostFormValue("to"))
	if err != nil {
		h.flash(w, r, "error", "Choose a board column to move the invoice to")
		return
	}
	invoices, err := h.store.ListInvoices(r.Context(), invoice.Filter{})
	if err != nil {
		h.logger.Error("load board", slog.Any("error", err))
		h.flash(w, r, "error", shared.UserSafeMessage(err))
		return
	}
	engine := NewEngine(h.store, WithObserver(h.observer))
	engine.Load(invoices)
	moved, err := engine.ApplyMove(r.Context(), id, to)
	switch {
	case err == nil:
		h.flash(w, r, "success", fmt.Sprintf("Invoice %s is now %s", moved.InvoiceNumber, moved.Status))
	case errors.Is(err, ErrNotDroppable):
		h.flash(w, r, "error", "Invoices cannot be dropped on Due Today")
	case errors.Is(err, ErrUnknownInvoice):
		h.flash(w, r, "error", "That invoice is no longer on the board")
	default:
		h.logger.Warn("board move", slog.String("id", id), slog.String("to", string(to)), slog.Any("error", err))
		h.flash(w, r, "error", "The move was undone: "+shared.UserSafeMessage(err))
	}
}

func (h *Handler) flash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, "/board", http.StatusSeeOther)
}
