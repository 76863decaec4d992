package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/invoices")

	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `invoicer_http_requests_total{code="503",route="/api/invoices"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `invoicer_http_request_duration_seconds_bucket{route="/api/invoices"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
	if !strings.Contains(body, `invoicer_store_errors_total{code="503"} 1`) {
		t.Fatalf("expected store error counter, got: %s", body)
	}
}

func TestObserveMove(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveMove("committed")
	metrics.ObserveMove("rolled_back")
	metrics.ObserveMove("committed")

	body := scrape(t, metrics)
	if !strings.Contains(body, `invoicer_board_moves_total{outcome="committed"} 2`) {
		t.Fatalf("expected committed moves, got: %s", body)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveMove("committed")
}
