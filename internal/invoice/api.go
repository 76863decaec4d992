package invoice

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ledgerlane/invoicer/internal/platform/httpx"
)

// API exposes invoices as JSON under /api/invoices.
type API struct {
	logger  *slog.Logger
	service *Service
	pdf     PDFRenderer
}

// NewAPI builds the JSON handler.
func NewAPI(logger *slog.Logger, service *Service, pdf PDFRenderer) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{logger: logger, service: service, pdf: pdf}
}

// MountRoutes registers the JSON routes.
func (a *API) MountRoutes(r chi.Router) {
	r.Get("/", a.list)
	r.Post("/", a.create)
	r.Get("/{id}", a.get)
	r.Patch("/{id}", a.update)
	r.Patch("/{id}/status", a.updateStatus)
	r.Get("/{id}/pdf", a.downloadPDF)
}

// View is the wire representation of an invoice, with derived totals.
type View struct {
	Invoice
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalDue    decimal.Decimal `json:"totalDue"`
}

// NewView attaches totals to inv.
func NewView(inv Invoice) View {
	amount, due := Totals(inv)
	return View{Invoice: inv, TotalAmount: amount, TotalDue: due}
}

// ListResponse wraps a listing.
type ListResponse struct {
	Invoices []View `json:"invoices"`
}

// StatusUpdate is the body of a status-only change.
type StatusUpdate struct {
	ID     string `json:"id,omitempty"`
	Status Status `json:"status"`
}

func (a *API) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, errs := parseFilter(filterForm{
		CustomerName: q.Get("customerName"),
		Status:       q.Get("status"),
		DueFrom:      q.Get("dueFrom"),
		DueTo:        q.Get("dueTo"),
	})
	if len(errs) > 0 {
		httpx.RespondError(w, errs.validation())
		return
	}
	invoices, err := a.service.ListInvoices(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	views := make([]View, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, NewView(inv))
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Invoices: views})
}

func (a *API) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	created, err := a.service.CreateInvoice(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/invoices/"+created.ID)
	httpx.JSON(w, http.StatusCreated, NewView(*created))
}

func (a *API) get(w http.ResponseWriter, r *http.Request) {
	inv, err := a.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(*inv))
}

func (a *API) update(w http.ResponseWriter, r *http.Request) {
	var patch Patch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	updated, err := a.service.UpdateInvoice(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(*updated))
}

func (a *API) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body StatusUpdate
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if body.ID != "" && body.ID != id {
		httpx.RespondError(w, ValidationErrors{{Field: "id", Message: "does not match the URL"}})
		return
	}
	status := body.Status
	if parsed, err := ParseStatus(string(body.Status)); err == nil {
		status = parsed
	}
	updated, err := a.service.UpdateInvoiceStatus(r.Context(), id, status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewView(*updated))
}

func (a *API) downloadPDF(w http.ResponseWriter, r *http.Request) {
	inv, err := a.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	doc, err := a.pdf.Render(*inv)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", PDFFilename(*inv)))
	_, _ = w.Write(doc)
}

// validation orders form errors by field so responses are stable.
func (e formErrors) validation() ValidationErrors {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	out := make(ValidationErrors, 0, len(fields))
	for _, field := range fields {
		out = append(out, FieldError{Field: field, Message: e[field]})
	}
	return out
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		a.logger.Error("invoice api", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
