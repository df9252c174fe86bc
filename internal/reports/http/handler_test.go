package reportshttp

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spendboard/spendboard/internal/fx"
	"github.com/spendboard/spendboard/internal/platform/httpx"
	"github.com/spendboard/spendboard/internal/reports"
)

const ledgerCSV = "Team,Category,Amount,Currency\n" +
	"A,X,100,USD\n" +
	"A,Y,50,GBP\n"

func newTestRouter(t *testing.T, maxUpload int64) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics, err := reports.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	svc := reports.NewService(reports.NewRedisStore(client, 0), logger, fx.DefaultPolicy(), metrics)

	router := chi.NewRouter()
	NewHandler(logger, svc, maxUpload).MountRoutes(router)
	return router, mr
}

func uploadRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	return problem
}

func TestProcessReturnsSummaries(t *testing.T) {
	router, mr := newTestRouter(t, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "October 2025.csv", []byte(ledgerCSV), nil))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotEmpty(t, rr.Header().Get("X-Run-ID"))
	require.Equal(t, "october_2025", rr.Header().Get("X-Period"))

	var body struct {
		TeamSummary     []map[string]any `json:"teamSummary"`
		CategorySummary []map[string]any `json:"categorySummary"`
		RawTransactions []map[string]any `json:"rawTransactions"`
		ExchangeRate    float64          `json:"exchangeRate"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.TeamSummary, 4)
	require.Equal(t, "GRAND TOTAL", body.TeamSummary[3]["Team"])
	require.Equal(t, 164.5, body.TeamSummary[3]["Total USD"])
	require.Len(t, body.RawTransactions, 2)
	require.Equal(t, 1.29, body.ExchangeRate)
	require.True(t, mr.Exists("month:october_2025"))
}

func TestProcessAppliesFormOverrides(t *testing.T) {
	router, mr := newTestRouter(t, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "upload.csv", []byte(ledgerCSV), map[string]string{
		"period":        "Q4 Forecast",
		"exchange_rate": "1.5",
	}))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "q4_forecast", rr.Header().Get("X-Period"))
	require.Equal(t, "1.5", mr.HGet("month:q4_forecast", "exchange_rate"))
}

func TestProcessRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		detail string
	}{
		{
			name: "unsupported extension",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "ledger.txt", []byte(ledgerCSV), nil)
			},
			detail: "invalid file type",
		},
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "", nil, map[string]string{"period": "oct"})
			},
			detail: "no file uploaded",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/process", strings.NewReader("{}"))
			},
			detail: "multipart",
		},
		{
			name: "missing columns",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "bad.csv", []byte("Team,Amount\nA,1\n"), nil)
			},
			detail: "missing required columns",
		},
		{
			name: "corrupt workbook",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "bad.xlsx", []byte("PK\x03\x04 not really a zip"), nil)
			},
			detail: "validation failed",
		},
		{
			name: "negative rate",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "oct.csv", []byte(ledgerCSV), map[string]string{"exchange_rate": "-1"})
			},
			detail: "exchange_rate",
		},
		{
			name: "non numeric rate",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "oct.csv", []byte(ledgerCSV), map[string]string{"exchange_rate": "abc"})
			},
			detail: "ExchangeRate failed numeric",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, mr := newTestRouter(t, 0)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, tc.req(t))

			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			require.Contains(t, decodeProblem(t, rr).Detail, tc.detail)
			require.Empty(t, mr.Keys())
		})
	}
}

func TestProcessRejectsOversizedUpload(t *testing.T) {
	router, _ := newTestRouter(t, 512)

	big := []byte(ledgerCSV + strings.Repeat("A,X,1,USD\n", 200))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "big.csv", big, nil))

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
}

func TestShowPeriod(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "October 2025.csv", []byte(ledgerCSV), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	processed := rr.Body.String()

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/periods/october_2025", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, processed, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/periods/march_2020", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "Not Found", decodeProblem(t, rr).Title)
}

func TestListAndClearPeriods(t *testing.T) {
	router, mr := newTestRouter(t, 0)

	for _, name := range []string{"october_2025.csv", "september_2025.csv"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, name, []byte(ledgerCSV), nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/periods", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"periods":["October 2025","September 2025"]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/periods", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, mr.Keys())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/periods", nil))
	require.JSONEq(t, `{"periods":[]}`, rr.Body.String())
}
