package invoice

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/view"
)

var timeNow = time.Now

// PDFRenderer produces a printable invoice document.
type PDFRenderer interface {
	Render(inv Invoice) ([]byte, error)
}

// Handler serves the invoice pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	pdf       PDFRenderer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, pdf PDFRenderer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, pdf: pdf}
}

// MountRoutes registers invoice pages under /invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listInvoices)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.createInvoice)
	r.Get("/{id}", h.showInvoice)
	r.Get("/{id}/edit", h.showEditForm)
	r.Post("/{id}", h.updateInvoice)
	r.Post("/{id}/status", h.updateStatus)
	r.Get("/{id}/pdf", h.downloadPDF)
}

type formErrors map[string]string

type filterForm struct {
	CustomerName string
	Status       string
	DueFrom      string
	DueTo        string
}

type itemForm struct {
	Description string
	Quantity    string
	Price       string
	Color       string
}

type invoiceForm struct {
	InvoiceNumber   string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	InvoiceDate     string
	DueDate         string
	Notes           string
	PaidAmount      string
	Status          string
	Items           []itemForm
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	form := filterForm{
		CustomerName: strings.TrimSpace(q.Get("customerName")),
		Status:       q.Get("status"),
		DueFrom:      q.Get("dueFrom"),
		DueTo:        q.Get("dueTo"),
	}
	filter, errs := parseFilter(form)
	data := map[string]any{"Filter": form, "Errors": errs, "Statuses": Statuses()}
	if len(errs) > 0 {
		h.render(w, r, "pages/invoices_list.html", "Invoices", data, http.StatusBadRequest)
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		data["Errors"] = formErrors{"general": shared.UserSafeMessage(err)}
		h.render(w, r, "pages/invoices_list.html", "Invoices", data, httpx.StatusFor(err))
		return
	}
	views := make([]View, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, NewView(inv))
	}
	data["Invoices"] = views
	h.render(w, r, "pages/invoices_list.html", "Invoices", data, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	today := DateOf(timeNow()).String()
	form := invoiceForm{
		InvoiceDate: today,
		DueDate:     today,
		PaidAmount:  "0",
		Status:      string(StatusPending),
		Items:       []itemForm{{Quantity: "1"}},
	}
	h.renderForm(w, r, form, formErrors{}, "", http.StatusOK)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := readInvoiceForm(r.PostForm)
	in, parseErrs := form.input()
	if len(parseErrs) > 0 {
		h.renderForm(w, r, form, mergeErrors(parseErrs, Validate(in)), "", http.StatusBadRequest)
		return
	}

	created, err := h.service.CreateInvoice(r.Context(), in)
	if err != nil {
		h.logger.Warn("create invoice", slog.Any("error", err))
		h.renderForm(w, r, form, errorsFor(err), "", httpx.StatusFor(err))
		return
	}
	h.redirectWithFlash(w, r, "/invoices/"+created.ID, "success", "Invoice "+created.InvoiceNumber+" created")
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/invoice_detail.html", "Invoice "+inv.InvoiceNumber, map[string]any{
		"Invoice":  NewView(*inv),
		"Statuses": Statuses(),
	}, http.StatusOK)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, formFromInvoice(*inv), formErrors{}, inv.ID, http.StatusOK)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := readInvoiceForm(r.PostForm)
	in, parseErrs := form.input()
	if len(parseErrs) > 0 {
		h.renderForm(w, r, form, mergeErrors(parseErrs, Validate(in)), id, http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateInvoice(r.Context(), id, in.patch())
	if err != nil {
		h.logger.Warn("update invoice", slog.String("id", id), slog.Any("error", err))
		h.renderForm(w, r, form, errorsFor(err), id, httpx.StatusFor(err))
		return
	}
	h.redirectWithFlash(w, r, "/invoices/"+updated.ID, "success", "Invoice "+updated.InvoiceNumber+" saved")
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := ParseStatus(r.PostFormValue("status"))
	if err != nil {
		h.redirectWithFlash(w, r, "/invoices/"+id, "error", "Choose one of "+statusList())
		return
	}
	updated, err := h.service.UpdateInvoiceStatus(r.Context(), id, status)
	if err != nil {
		h.logger.Warn("update invoice status", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/invoices/"+id, "error", shared.UserSafeMessage(err))
		return
	}
	back := "/invoices/" + updated.ID
	if ref := r.PostFormValue("return"); strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		back = ref
	}
	h.redirectWithFlash(w, r, back, "success", fmt.Sprintf("Invoice %s moved to %s", updated.InvoiceNumber, updated.Status))
}

func (h *Handler) downloadPDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	doc, err := h.pdf.Render(*inv)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.String("id", inv.ID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", PDFFilename(*inv)))
	_, _ = w.Write(doc)
}

func (h *Handler) loadInvoice(w http.ResponseWriter, r *http.Request) (*Invoice, bool) {
	id := chi.URLParam(r, "id")
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		status := httpx.StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("get invoice", slog.String("id", id), slog.Any("error", err))
		}
		h.render(w, r, "pages/error.html", http.StatusText(status), map[string]any{
			"Message": shared.UserSafeMessage(err),
		}, status)
		return nil, false
	}
	return inv, true
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, form invoiceForm, errs formErrors, id string, status int) {
	title := "New invoice"
	action := "/invoices"
	if id != "" {
		title = "Edit invoice"
		action = "/invoices/" + id
	}
	if len(form.Items) == 0 {
		form.Items = []itemForm{{Quantity: "1"}}
	}
	h.render(w, r, "pages/invoice_form.html", title, map[string]any{
		"Form":     form,
		"Errors":   errs,
		"Action":   action,
		"ID":       id,
		"Statuses": Statuses(),
	}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	viewData := view.Page(r, h.csrf, title, data)
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func parseFilter(form filterForm) (Filter, formErrors) {
	errs := formErrors{}
	filter := Filter{CustomerName: form.CustomerName}
	if form.Status != "" {
		status, err := ParseStatus(form.Status)
		if err != nil {
			errs["status"] = "must be one of " + statusList()
		}
		filter.Status = status
	}
	if form.DueFrom != "" {
		d, err := ParseDate(form.DueFrom)
		if err != nil {
			errs["dueFrom"] = "must be a valid date (YYYY-MM-DD)"
		}
		filter.DueFrom = d
	}
	if form.DueTo != "" {
		d, err := ParseDate(form.DueTo)
		if err != nil {
			errs["dueTo"] = "must be a valid date (YYYY-MM-DD)"
		}
		filter.DueTo = d
	}
	return filter, errs
}

func readInvoiceForm(values url.Values) invoiceForm {
	form := invoiceForm{
		InvoiceNumber:   values.Get("invoiceNumber"),
		CustomerName:    values.Get("customerName"),
		CustomerEmail:   values.Get("customerEmail"),
		CustomerAddress: values.Get("customerAddress"),
		InvoiceDate:     values.Get("invoiceDate"),
		DueDate:         values.Get("dueDate"),
		Notes:           values.Get("notes"),
		PaidAmount:      values.Get("paidAmount"),
		Status:          values.Get("status"),
	}
	descriptions := values["itemDescription"]
	quantities := values["itemQuantity"]
	prices := values["itemPrice"]
	colors := values["itemColor"]
	for i := range descriptions {
		item := itemForm{
			Description: descriptions[i],
			Quantity:    at(quantities, i),
			Price:       at(prices, i),
			Color:       at(colors, i),
		}
		// Rows left completely empty are the spare row of the form.
		if strings.TrimSpace(item.Description+item.Quantity+item.Price) == "" {
			continue
		}
		form.Items = append(form.Items, item)
	}
	return form
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// input converts the raw form. Unparseable numbers are reported and left at zero.
func (f invoiceForm) input() (Input, formErrors) {
	errs := formErrors{}
	in := Input{
		InvoiceNumber:   f.InvoiceNumber,
		CustomerName:    f.CustomerName,
		CustomerEmail:   f.CustomerEmail,
		CustomerAddress: f.CustomerAddress,
		InvoiceDate:     f.InvoiceDate,
		DueDate:         f.DueDate,
		Notes:           f.Notes,
		PaidAmount:      parseAmount(f.PaidAmount, "paidAmount", errs),
	}
	if f.Status != "" {
		if status, err := ParseStatus(f.Status); err == nil {
			in.Status = status
		} else {
			in.Status = Status(f.Status)
		}
	}
	for i, item := range f.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		in.Items = append(in.Items, ItemInput{
			Description: item.Description,
			Quantity:    parseAmount(item.Quantity, prefix+"quantity", errs),
			Price:       parseAmount(item.Price, prefix+"price", errs),
			Color:       item.Color,
		})
	}
	return in, errs
}

// patch turns a complete form submission into a patch touching every field.
func (in Input) patch() Patch {
	items := in.Items
	return Patch{
		InvoiceNumber:   &in.InvoiceNumber,
		CustomerName:    &in.CustomerName,
		CustomerEmail:   &in.CustomerEmail,
		CustomerAddress: &in.CustomerAddress,
		InvoiceDate:     &in.InvoiceDate,
		DueDate:         &in.DueDate,
		Items:           &items,
		Notes:           &in.Notes,
		PaidAmount:      &in.PaidAmount,
		Status:          &in.Status,
	}
}

func parseAmount(raw, field string, errs formErrors) decimal.Decimal {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		errs[field] = "must be a number"
		return decimal.Zero
	}
	return d
}

func formFromInvoice(inv Invoice) invoiceForm {
	form := invoiceForm{
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerName:    inv.CustomerName,
		CustomerEmail:   inv.CustomerEmail,
		CustomerAddress: inv.CustomerAddress,
		InvoiceDate:     inv.InvoiceDate.String(),
		DueDate:         inv.DueDate.String(),
		Notes:           inv.Notes,
		PaidAmount:      inv.PaidAmount.StringFixed(2),
		Status:          string(inv.Status),
	}
	for _, item := range inv.Items {
		form.Items = append(form.Items, itemForm{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			Price:       item.Price.StringFixed(2),
			Color:       item.Color,
		})
	}
	return form
}

// errorsFor maps a service error onto form messages.
func errorsFor(err error) formErrors {
	if verrs, ok := AsValidation(err); ok {
		return formErrors(verrs.Map())
	}
	if errors.Is(err, httpx.ErrDuplicate) {
		return formErrors{"invoiceNumber": "is already used by another invoice"}
	}
	return formErrors{"general": shared.UserSafeMessage(err)}
}

// mergeErrors keeps parse errors ahead of rule violations on the same field.
func mergeErrors(parseErrs formErrors, validationErr error) formErrors {
	out := formErrors{}
	if verrs, ok := AsValidation(validationErr); ok {
		for field, msg := range verrs.Map() {
			out[field] = msg
		}
	}
	for field, msg := range parseErrs {
		out[field] = msg
	}
	return out
}
