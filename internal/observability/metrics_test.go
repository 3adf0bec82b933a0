package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesRuntimeMetrics(t *testing.T) {
	body := scrape(t, NewMetrics())
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected body to contain go_goroutines, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "storekeep_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "storekeep_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestTransactionRecorded(t *testing.T) {
	metrics := NewMetrics()
	metrics.TransactionRecorded("sale", "recorded")
	metrics.TransactionRecorded("sale", "recorded")
	metrics.TransactionRecorded("purchase", "rejected")

	body := scrape(t, metrics)
	if !strings.Contains(body, "storekeep_transactions_recorded_total{kind=\"sale\",outcome=\"recorded\"} 2") {
		t.Fatalf("expected sale counter, got: %s", body)
	}
	if !strings.Contains(body, "storekeep_transactions_recorded_total{kind=\"purchase\",outcome=\"rejected\"} 1") {
		t.Fatalf("expected purchase counter, got: %s", body)
	}

	var nilMetrics *Metrics
	nilMetrics.TransactionRecorded("sale", "failed")
}
