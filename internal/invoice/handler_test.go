package invoice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/store"
	"github.com/ledgerlane/invoicer/internal/view"
)

type httpFixture struct {
	router  http.Handler
	service *invoice.Service
	session *shared.Session
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "invoicer_session", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	templates, err := view.NewEngine()
	require.NoError(t, err)
	svc := invoice.NewService(store.NewMemory(), nil, nil, nil)
	pdf := invoice.NewPDF("Invoicer Ltd")
	csrf := shared.NewCSRFManager("test-secret")

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/invoices", invoice.NewHandler(nil, svc, templates, csrf, pdf).MountRoutes)
	r.Route("/api/invoices", invoice.NewAPI(nil, svc, pdf).MountRoutes)
	return &httpFixture{router: r, service: svc, session: sess}
}

func (f *httpFixture) do(t *testing.T, method, target, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *httpFixture) seed(t *testing.T, number string) *invoice.Invoice {
	t.Helper()
	created, err := f.service.CreateInvoice(context.Background(), input(number))
	require.NoError(t, err)
	return created
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	return out
}

func TestAPICreateAndGet(t *testing.T) {
	f := newHTTPFixture(t)

	body := `{"invoiceNumber":"INV-100","customerName":"Acme Corp","invoiceDate":"2024-07-05","dueDate":"2024-08-05",
		"items":[{"description":"Consulting","quantity":"2","price":"150.50"}],"paidAmount":"100"}`
	res := f.do(t, http.MethodPost, "/api/invoices/", body, "application/json")
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())

	created := decodeBody(t, res)
	assert.Equal(t, "Pending", created["status"])
	assert.Equal(t, "301", created["totalAmount"])
	assert.Equal(t, "201", created["totalDue"])
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/invoices/"+id, res.Header().Get("Location"))

	res = f.do(t, http.MethodGet, "/api/invoices/"+id, "", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "INV-100", decodeBody(t, res)["invoiceNumber"])
}

func TestAPICreateReportsEveryViolation(t *testing.T) {
	f := newHTTPFixture(t)

	body := `{"invoiceNumber":"","customerName":"","invoiceDate":"2024-07-05","dueDate":"2024-07-01","items":[]}`
	res := f.do(t, http.MethodPost, "/api/invoices/", body, "application/json")
	require.Equal(t, http.StatusBadRequest, res.Code)

	var problem struct {
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &problem))
	fields := make([]string, 0, len(problem.Errors))
	for _, fe := range problem.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"invoiceNumber", "customerName", "dueDate", "items"}, fields)
}

func TestAPIDuplicateNumberConflicts(t *testing.T) {
	f := newHTTPFixture(t)
	f.seed(t, "INV-1")

	body := `{"invoiceNumber":"INV-1","customerName":"Other","invoiceDate":"2024-07-05","dueDate":"2024-07-05",
		"items":[{"description":"Work","quantity":"1","price":"10"}]}`
	res := f.do(t, http.MethodPost, "/api/invoices/", body, "application/json")
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestAPIListFilters(t *testing.T) {
	f := newHTTPFixture(t)
	f.seed(t, "INV-1")
	hold := f.seed(t, "INV-2")
	_, err := f.service.UpdateInvoiceStatus(context.Background(), hold.ID, invoice.StatusHold)
	require.NoError(t, err)

	res := f.do(t, http.MethodGet, "/api/invoices/?status=hold", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	var list struct {
		Invoices []map[string]any `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &list))
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, "INV-2", list.Invoices[0]["invoiceNumber"])

	res = f.do(t, http.MethodGet, "/api/invoices/?status=Lost&dueFrom=yesterday", "", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
	body := res.Body.String()
	assert.Less(t, strings.Index(body, `"field":"dueFrom"`), strings.Index(body, `"field":"status"`))
}

func TestAPIPatchKeepsUntouchedFields(t *testing.T) {
	f := newHTTPFixture(t)
	inv := f.seed(t, "INV-1")

	res := f.do(t, http.MethodPatch, "/api/invoices/"+inv.ID, `{"notes":"Net 30"}`, "application/json")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	got := decodeBody(t, res)
	assert.Equal(t, "Net 30", got["notes"])
	assert.Equal(t, "Acme Corp", got["customerName"])

	res = f.do(t, http.MethodPatch, "/api/invoices/missing", `{"notes":"x"}`, "application/json")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAPIStatusUpdate(t *testing.T) {
	f := newHTTPFixture(t)
	inv := f.seed(t, "INV-1")

	res := f.do(t, http.MethodPatch, "/api/invoices/"+inv.ID+"/status", `{"status":"in-process"}`, "application/json")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "In Process", decodeBody(t, res)["status"])

	res = f.do(t, http.MethodPatch, "/api/invoices/"+inv.ID+"/status", `{"id":"other","status":"Hold"}`, "application/json")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodPatch, "/api/invoices/"+inv.ID+"/status", `{"status":"Lost"}`, "application/json")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	stored, err := f.service.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusInProcess, stored.Status)
}

func TestAPIDownloadPDF(t *testing.T) {
	f := newHTTPFixture(t)
	inv := f.seed(t, "INV-7")

	res := f.do(t, http.MethodGet, "/api/invoices/"+inv.ID+"/pdf", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "application/pdf", res.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(res.Body.String(), "%PDF"))
}

func itemForm(values url.Values) url.Values {
	values.Add("itemDescription", "Consulting")
	values.Add("itemQuantity", "2")
	values.Add("itemPrice", "150")
	values.Add("itemColor", "")
	values.Add("itemDescription", "")
	values.Add("itemQuantity", "")
	values.Add("itemPrice", "")
	values.Add("itemColor", "")
	return values
}

func TestPageCreateRedirectsWithFlash(t *testing.T) {
	f := newHTTPFixture(t)

	form := itemForm(url.Values{
		"invoiceNumber": {"INV-9"},
		"customerName":  {"Acme Corp"},
		"invoiceDate":   {"2024-07-05"},
		"dueDate":       {"2024-07-20"},
		"paidAmount":    {"0"},
		"status":        {"Pending"},
	})
	res := f.do(t, http.MethodPost, "/invoices/", form.Encode(), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusSeeOther, res.Code, res.Body.String())
	assert.True(t, strings.HasPrefix(res.Header().Get("Location"), "/invoices/"))

	flash := f.session.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)

	list, err := f.service.ListInvoices(context.Background(), invoice.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)
}

func TestPageCreateRerendersEveryError(t *testing.T) {
	f := newHTTPFixture(t)

	form := url.Values{
		"invoiceNumber":   {""},
		"customerName":    {"Acme Corp"},
		"invoiceDate":     {"2024-07-05"},
		"dueDate":         {"2024-07-01"},
		"itemDescription": {"Consulting"},
		"itemQuantity":    {"two"},
		"itemPrice":       {"150"},
	}
	res := f.do(t, http.MethodPost, "/invoices/", form.Encode(), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusBadRequest, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "is required")
	assert.Contains(t, body, "must be on or after the invoice date")
	assert.Contains(t, body, "must be a number")
	assert.Contains(t, body, `value="Acme Corp"`)
}

func TestPageListAndNotFound(t *testing.T) {
	f := newHTTPFixture(t)
	f.seed(t, "INV-1")

	res := f.do(t, http.MethodGet, "/invoices/?customerName=acme", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/html; charset=utf-8", res.Header().Get("Content-Type"))
	assert.Contains(t, res.Body.String(), "INV-1")

	res = f.do(t, http.MethodGet, "/invoices/?dueTo=31-12-2024", "", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodGet, "/invoices/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "The invoice could not be found.")
}

func TestPageStatusFormHonoursReturn(t *testing.T) {
	f := newHTTPFixture(t)
	inv := f.seed(t, "INV-1")

	form := url.Values{"status": {"completed"}, "return": {"/board"}}
	res := f.do(t, http.MethodPost, "/invoices/"+inv.ID+"/status", form.Encode(), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/board", res.Header().Get("Location"))

	stored, err := f.service.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusCompleted, stored.Status)
}
