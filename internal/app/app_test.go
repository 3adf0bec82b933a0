package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekeep/storekeep/internal/observability"
	"github.com/storekeep/storekeep/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("REPORT_CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.AppAddr)
	assert.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
	assert.Equal(t, 168*time.Hour, cfg.RequestKeyRetention)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.DBAutoMigrate)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-1")
	t.Setenv("REQUEST_KEY_RETENTION", "5m")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_PER_MINUTE")
	assert.Contains(t, err.Error(), "REQUEST_KEY_RETENTION")

	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"}).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"}).Warn("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

func TestActorMiddleware(t *testing.T) {
	var seen string
	h := actorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "  cashier-2 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "cashier-2", seen)

	seen = "unset"
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, shared.ActorFromContext(context.Background()), seen)
}

func TestRouterHealthAndFallbacks(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{
		Config:  &Config{RateLimitPerMinute: 0},
		Metrics: metrics,
		Health: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"up"}}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `storekeep_http_requests_total{code="200",route="/healthz"} 1`))
}

func TestRouterHealthDegraded(t *testing.T) {
	router := NewRouter(RouterParams{
		Health: map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"down"}}`, rec.Body.String())
}

func TestRouterRateLimit(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 2}})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
