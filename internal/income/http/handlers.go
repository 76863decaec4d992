// Package incomehttp serves the income report page, its exports and JSON API.
package incomehttp

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerlane/invoicer/internal/income"
	"github.com/ledgerlane/invoicer/internal/income/export"
	"github.com/ledgerlane/invoicer/internal/income/svg"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/platform/money"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/view"
)

const (
	defaultWindowMonths = 12
	requestTimeout      = 5 * time.Second
	monthLayout         = "2006-01"
)

// IncomeService is the report contract used by the handler.
type IncomeService interface {
	GetIncomeReport(ctx context.Context, r income.Range) (income.Report, error)
}

// PDFService renders report payloads to PDF bytes.
type PDFService interface {
	Render(ctx context.Context, payload export.Payload) ([]byte, error)
}

// Handler coordinates HTTP requests for income reports.
type Handler struct {
	logger    *slog.Logger
	service   IncomeService
	templates *view.Engine
	csrf      *shared.CSRFManager
	pdf       PDFService
	location  *time.Location
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the income HTTP handler. pdf may be nil, which
// disables the PDF export.
func NewHandler(logger *slog.Logger, service IncomeService, templates *view.Engine, csrf *shared.CSRFManager, pdf PDFService, location *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.Local
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		pdf:       pdf,
		location:  location,
		now:       time.Now,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type rangeForm struct {
	Start      string
	End        string
	StartMonth string
	EndMonth   string
}

type pageData struct {
	Form     rangeForm
	Errors   map[string]string
	Report   *income.Report
	Previous *income.Report
	Months   []income.MonthlyIncome
	Chart    template.HTML
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	rng, form, err := h.parseRange(r)
	data := pageData{Form: form, Errors: map[string]string{}}
	if err != nil {
		data.Errors = errorMap(err)
		h.render(w, r, data, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var current, previous income.Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep, err := h.service.GetIncomeReport(gctx, rng)
		current = rep
		return err
	})
	g.Go(func() error {
		rep, err := h.service.GetIncomeReport(gctx, previousYear(rng))
		previous = rep
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load income report", slog.String("range", rng.Key()), slog.Any("error", err))
		data.Errors = map[string]string{"general": shared.UserSafeMessage(err)}
		h.render(w, r, data, httpx.StatusFor(err))
		return
	}

	chart, err := h.chart(current)
	if err != nil {
		h.logger.Warn("render income chart", slog.Any("error", err))
	}
	data.Report = &current
	data.Previous = &previous
	data.Months = income.Fill(current)
	data.Chart = chart
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) handleAPI(w http.ResponseWriter, r *http.Request) {
	rng, _, err := h.parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	rep, err := h.service.GetIncomeReport(ctx, rng)
	if err != nil {
		h.fail(w, "load income report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rep)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	rng, _, err := h.parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	rep, err := h.service.GetIncomeReport(ctx, rng)
	if err != nil {
		h.fail(w, "load income report", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteIncomeCSV(buf, rep); err != nil {
		h.fail(w, "write income csv", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename(rng, "csv")))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "pdf export is not configured")
		return
	}
	rng, _, err := h.parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*requestTimeout)
	defer cancel()
	rep, err := h.service.GetIncomeReport(ctx, rng)
	if err != nil {
		h.fail(w, "load income report", err)
		return
	}
	chart, err := h.chart(rep)
	if err != nil {
		h.logger.Warn("render income chart", slog.Any("error", err))
	}
	doc, err := h.pdf.Render(ctx, export.Payload{Report: rep, Chart: chart})
	if err != nil {
		h.logger.Error("render income pdf", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "the pdf renderer failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename(rng, "pdf")))
	if _, err := w.Write(doc); err != nil {
		h.logger.Warn("stream pdf", slog.Any("error", err))
	}
}

// parseRange reads start and end as YYYY-MM or YYYY-MM-DD. When both are
// absent the trailing twelve months are used.
func (h *Handler) parseRange(r *http.Request) (income.Range, rangeForm, error) {
	q := r.URL.Query()
	form := rangeForm{Start: strings.TrimSpace(q.Get("start")), End: strings.TrimSpace(q.Get("end"))}
	if form.Start == "" && form.End == "" {
		today := invoice.DateOf(h.now().In(h.location))
		rng := income.TrailingMonths(today, defaultWindowMonths)
		return rng, formFor(rng), nil
	}
	start, startErr := parseMonth(form.Start)
	end, endErr := parseMonth(form.End)
	form.StartMonth, form.EndMonth = monthOf(start, form.Start), monthOf(end, form.End)
	var verrs invoice.ValidationErrors
	if startErr != nil {
		verrs = append(verrs, invoice.FieldError{Field: "start", Message: "must be a month (YYYY-MM) or date (YYYY-MM-DD)"})
	}
	if endErr != nil {
		verrs = append(verrs, invoice.FieldError{Field: "end", Message: "must be a month (YYYY-MM) or date (YYYY-MM-DD)"})
	}
	if len(verrs) > 0 {
		return income.Range{}, form, verrs
	}
	rng, err := income.NewRange(start, end)
	if err != nil {
		return income.Range{}, form, err
	}
	return rng, formFor(rng), nil
}

func parseMonth(value string) (invoice.Date, error) {
	if t, err := time.Parse(monthLayout, value); err == nil {
		return invoice.DateOf(t), nil
	}
	return invoice.ParseDate(value)
}

func monthOf(d invoice.Date, raw string) string {
	if d.Valid() {
		return d.Format(monthLayout)
	}
	return raw
}

func formFor(rng income.Range) rangeForm {
	return rangeForm{
		Start:      rng.Start.String(),
		End:        rng.End.String(),
		StartMonth: rng.Start.Format(monthLayout),
		EndMonth:   rng.End.Format(monthLayout),
	}
}

func previousYear(rng income.Range) income.Range {
	return income.Range{
		Start: invoice.DateOf(rng.Start.AddDate(-1, 0, 0)),
		End:   invoice.DateOf(rng.End.AddDate(-1, 0, 0)),
	}
}

func (h *Handler) chart(rep income.Report) (template.HTML, error) {
	months := income.Fill(rep)
	if len(months) == 0 {
		return "", nil
	}
	values := make([]float64, len(months))
	labels := make([]string, len(months))
	for i, m := range months {
		values[i] = m.TotalIncome.InexactFloat64()
		labels[i] = m.Label()
	}
	return svg.Bars(svg.DefaultWidth, svg.DefaultHeight, values, labels, svg.BarOpts{
		Title:       "Monthly income",
		Description: "Paid amount of completed invoices per invoice month",
		ValueLabel: func(v float64) string {
			return money.Format(decimal.NewFromFloat(v))
		},
	})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data pageData, status int) {
	viewData := view.Page(r, h.csrf, "Income", data)
	if err := h.templates.RenderStatus(w, status, "pages/income.html", viewData); err != nil {
		h.logger.Error("render income page", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func errorMap(err error) map[string]string {
	if verrs, ok := invoice.AsValidation(err); ok {
		return verrs.Map()
	}
	return map[string]string{"general": shared.UserSafeMessage(err)}
}

func filename(rng income.Range, ext string) string {
	return fmt.Sprintf("income-%s-to-%s.%s", rng.Start.Format(monthLayout), rng.End.Format(monthLayout), ext)
}
