package app

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spendboard/spendboard/internal/observability"
	"github.com/spendboard/spendboard/internal/reports"
	reportshttp "github.com/spendboard/spendboard/internal/reports/http"
)

func newTestRouter(t *testing.T, cfg *Config, health func(*http.Request) error) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	reportMetrics, err := reports.NewMetrics(metrics.Registerer())
	require.NoError(t, err)
	svc := reports.NewService(reports.NewRedisStore(client, 0), logger, cfg.ExchangePolicy(), reportMetrics)

	return NewRouter(RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportshttp.NewHandler(logger, svc, 0),
		Metrics:       metrics,
		Health:        health,
	})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, &Config{}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rr.Header().Get("X-Ratelimit-Limit"))
}

func TestHealthzReportsDegradedCache(t *testing.T) {
	router := newTestRouter(t, &Config{}, func(*http.Request) error { return errors.New("redis unreachable") })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"degraded","cache":"redis unreachable"}`, rr.Body.String())
}

func TestRouterMountsReportsAndMetrics(t *testing.T) {
	router := newTestRouter(t, &Config{}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/periods", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"periods":[]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.True(t, strings.Contains(body, `spendboard_http_requests_total{code="200",route="/periods/"}`) ||
		strings.Contains(body, `spendboard_http_requests_total{code="200",route="/periods"}`), body)
}

func TestRouterProblemResponses(t *testing.T) {
	router := newTestRouter(t, &Config{}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/periods", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRateLimitReturnsProblem(t *testing.T) {
	router := newTestRouter(t, &Config{RateLimitPerMinute: 2}, nil)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.7:4321"
		router.ServeHTTP(last, req)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.Contains(t, last.Body.String(), "rate limit exceeded")
}
