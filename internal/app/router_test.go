package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlane/invoicer/internal/apiclient"
	"github.com/ledgerlane/invoicer/internal/app"
	"github.com/ledgerlane/invoicer/internal/auth"
	"github.com/ledgerlane/invoicer/internal/board"
	"github.com/ledgerlane/invoicer/internal/income"
	incomehttp "github.com/ledgerlane/invoicer/internal/income/http"
	"github.com/ledgerlane/invoicer/internal/invoice"
	"github.com/ledgerlane/invoicer/internal/platform/httpx"
	"github.com/ledgerlane/invoicer/internal/shared"
	"github.com/ledgerlane/invoicer/internal/store"
	"github.com/ledgerlane/invoicer/internal/view"
	"github.com/ledgerlane/invoicer/jobs"
	_ "github.com/ledgerlane/invoicer/testing"
)

type stack struct {
	server  *httptest.Server
	service *invoice.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &app.Config{AppEnv: "test", RateLimitPerMin: 1000, AppRequestTimeout: 5 * time.Second}
	sessions := shared.NewSessionManager(redisClient, "invoicer_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	backend := store.NewMemory()
	incomeService := income.NewService(backend, income.NewCache(redisClient, time.Minute))
	service := invoice.NewService(backend, nil, incomeService, nil)
	users, err := auth.NewDemoRepository("demo@invoicer.local", "demo12345")
	require.NoError(t, err)
	pdf := invoice.NewPDF("Invoicer")

	router := app.NewRouter(app.RouterParams{
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessions,
		CSRFManager:    csrf,
		AuthHandler:    auth.NewHandler(nil, auth.NewService(users), templates, sessions, csrf),
		InvoiceHandler: invoice.NewHandler(nil, service, templates, csrf, pdf),
		InvoiceAPI:     invoice.NewAPI(nil, service, pdf),
		BoardHandler:   board.NewHandler(nil, board.ServiceStore{Service: service}, templates, csrf, time.UTC, nil),
		IncomeHandler:  incomehttp.NewHandler(nil, incomeService, templates, csrf, nil, time.UTC),
		JobHandler:     jobs.NewHandler(nil, nil),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &stack{server: server, service: service}
}

func (s *stack) seed(t *testing.T, number string) *invoice.Invoice {
	t.Helper()
	created, err := s.service.CreateInvoice(context.Background(), invoice.Input{
		InvoiceNumber: number,
		CustomerName:  "Acme Corp",
		InvoiceDate:   "2024-05-01",
		DueDate:       "2030-01-01",
		Items:         []invoice.ItemInput{{Description: "Work", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)
	return created
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func TestPublicRoutes(t *testing.T) {
	s := newStack(t)
	client := &http.Client{CheckRedirect: noRedirect}

	res, err := client.Get(s.server.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = client.Get(s.server.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/welcome", res.Header.Get("Location"))

	res, err = client.Get(s.server.URL + "/jobs/health")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = client.Get(s.server.URL + "/static/css/app.css")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "public, max-age=3600", res.Header.Get("Cache-Control"))

	res, err = client.Get(s.server.URL + "/api/nowhere")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newStack(t)
	client := &http.Client{CheckRedirect: noRedirect}

	res, err := client.Get(s.server.URL + "/api/invoices")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = client.Get(s.server.URL + "/board")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.True(t, strings.HasPrefix(res.Header.Get("Location"), "/auth/login"))
}

func TestAPIWritesNeedCSRFToken(t *testing.T) {
	s := newStack(t)
	created := s.seed(t, "INV-1")

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	res, err := client.Get(s.server.URL + "/api/session")
	require.NoError(t, err)
	var sess struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&sess))
	res.Body.Close()

	login := func(token string) int {
		req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/session", strings.NewReader(`{"email":"demo@invoicer.local","password":"demo12345"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(shared.CSRFHeader, token)
		}
		res, err := client.Do(req)
		require.NoError(t, err)
		res.Body.Close()
		return res.StatusCode
	}
	require.Equal(t, http.StatusForbidden, login(""))
	require.Equal(t, http.StatusOK, login(sess.CSRFToken))

	req, err := http.NewRequest(http.MethodPatch, s.server.URL+"/api/invoices/"+created.ID+"/status", strings.NewReader(`{"status":"Hold"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err = client.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	stored, err := s.service.GetInvoice(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusPending, stored.Status)
}

func TestSignedInClientMovesInvoice(t *testing.T) {
	s := newStack(t)
	created := s.seed(t, "INV-1")

	api, err := apiclient.New(s.server.URL, nil)
	require.NoError(t, err)
	require.NoError(t, api.Login(context.Background(), "demo@invoicer.local", "demo12345"))

	listed, err := api.ListInvoices(context.Background(), invoice.Filter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	moved, err := api.UpdateStatus(context.Background(), created.ID, invoice.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusCompleted, moved.Status)

	_, err = api.UpdateStatus(context.Background(), "missing", invoice.StatusHold)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	stored, err := s.service.GetInvoice(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, invoice.StatusCompleted, stored.Status)
}
