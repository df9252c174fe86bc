package reports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/spendboard/spendboard/internal/aggregation"
	"github.com/spendboard/spendboard/internal/fx"
)

type stubStore struct {
	saveErr   error
	loadErr   error
	listErr   error
	saved     map[string]*aggregation.Result
	loadCalls int
}

func (s *stubStore) Save(ctx context.Context, period string, result *aggregation.Result) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.saved == nil {
		s.saved = map[string]*aggregation.Result{}
	}
	s.saved[period] = result
	return nil
}

func (s *stubStore) Load(ctx context.Context, period string) (*aggregation.Result, bool, error) {
	s.loadCalls++
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	res, ok := s.saved[period]
	return res, ok, nil
}

func (s *stubStore) Periods(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]string, 0, len(s.saved))
	for p := range s.saved {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubStore) Clear(ctx context.Context) error {
	s.saved = nil
	return nil
}

func newTestService(t *testing.T, store Store) (*Service, *Metrics) {
	t.Helper()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, logger, fx.DefaultPolicy(), metrics), metrics
}

func TestServiceProcessPersistsUnderDerivedPeriod(t *testing.T) {
	store, _ := newTestStore(t, 0)
	svc, metrics := newTestService(t, store)
	ctx := context.Background()

	out, err := svc.Process(ctx, ProcessInput{Filename: "October_2025.csv", Data: []byte(sampleLedger)})
	require.NoError(t, err)
	require.Equal(t, "october_2025", out.Period)
	require.True(t, out.Persisted)
	require.NotEmpty(t, out.RunID)

	res, err := svc.Report(ctx, "October 2025")
	require.NoError(t, err)
	require.Len(t, res.RawTransactions, 3)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))

	require.Equal(t, []string{"October 2025"}, svc.Periods(ctx))
}

func TestServiceProcessExplicitPeriodAndRate(t *testing.T) {
	store := &stubStore{}
	svc, _ := newTestService(t, store)
	rate := decimal.RequireFromString("1.5")

	out, err := svc.Process(context.Background(), ProcessInput{
		Filename:     "upload.csv",
		Period:       "Q4 2025",
		Data:         []byte("Team,Category,Amount,Currency\nA,X,10,GBP\n"),
		RateOverride: &rate,
	})
	require.NoError(t, err)
	require.Equal(t, "q4_2025", out.Period)
	require.Equal(t, 1.5, out.Result.ExchangeRate)
	require.Contains(t, store.saved, "q4_2025")
}

func TestServiceProcessSurvivesCacheWriteFailure(t *testing.T) {
	store := &stubStore{saveErr: errors.New("connection refused")}
	svc, metrics := newTestService(t, store)

	out, err := svc.Process(context.Background(), ProcessInput{Filename: "nov.csv", Data: []byte(sampleLedger)})
	require.NoError(t, err)
	require.False(t, out.Persisted)
	require.NotNil(t, out.Result)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheErrors.WithLabelValues("save")))
}

func TestServiceProcessReturnsInputErrors(t *testing.T) {
	store := &stubStore{}
	svc, _ := newTestService(t, store)

	_, err := svc.Process(context.Background(), ProcessInput{Filename: "bad.csv", Data: []byte("Team,Amount\nA,1\n")})
	var malformed *aggregation.MalformedInputError
	require.ErrorAs(t, err, &malformed)
	require.Empty(t, store.saved)
}

func TestServiceReportNotFound(t *testing.T) {
	svc, metrics := newTestService(t, &stubStore{})

	_, err := svc.Report(context.Background(), "march_2020")
	require.ErrorIs(t, err, ErrPeriodNotFound)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))

	_, err = svc.Report(context.Background(), "  ")
	require.ErrorIs(t, err, ErrPeriodNotFound)
}

func TestServiceReportTreatsCacheFailureAsMiss(t *testing.T) {
	store := &stubStore{loadErr: errors.New("i/o timeout")}
	svc, metrics := newTestService(t, store)

	_, err := svc.Report(context.Background(), "october_2025")
	require.ErrorIs(t, err, ErrPeriodNotFound)
	require.Equal(t, 1, store.loadCalls)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheErrors.WithLabelValues("load")))
}

func TestServiceReportHonoursCancelledContext(t *testing.T) {
	svc, _ := newTestService(t, &stubStore{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := svc.Report(ctx, "october_2025")
	require.Error(t, err)
}

func TestServicePeriodsDegradesToEmptyList(t *testing.T) {
	svc, _ := newTestService(t, &stubStore{listErr: errors.New("down")})
	require.Equal(t, []string{}, svc.Periods(context.Background()))
}

func TestServiceWithoutStore(t *testing.T) {
	svc := NewService(nil, nil, fx.DefaultPolicy(), nil)
	out, err := svc.Process(context.Background(), ProcessInput{Filename: "dec.csv", Data: []byte(sampleLedger)})
	require.NoError(t, err)
	require.False(t, out.Persisted)

	_, err = svc.Report(context.Background(), "dec")
	require.ErrorIs(t, err, ErrPeriodNotFound)
	require.Empty(t, svc.Periods(context.Background()))
	require.NoError(t, svc.Clear(context.Background()))
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	first.recordHit()
	second.recordHit()
	require.Equal(t, 2.0, testutil.ToFloat64(first.cacheHits))
}
