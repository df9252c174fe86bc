package reports

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/spendboard/spendboard/internal/aggregation"
	"github.com/spendboard/spendboard/internal/fx"
)

// ErrPeriodNotFound signals that no result is cached for the requested period.
var ErrPeriodNotFound = errors.New("reports: period not found")

// ProcessInput carries one uploaded spreadsheet.
type ProcessInput struct {
	Filename string
	// Period overrides the key derived from Filename.
	Period       string
	Data         []byte
	RateOverride *decimal.Decimal
}

// Processed is the outcome of Service.Process.
type Processed struct {
	RunID     string
	Period    string
	Persisted bool
	Result    *aggregation.Result
}

// Service coordinates aggregation runs with the period cache. A nil store disables persistence.
type Service struct {
	store   Store
	logger  *slog.Logger
	policy  fx.Policy
	metrics *Metrics
	loads   singleflight.Group
}

// NewService wires a Store with logging and metrics. metrics may be nil.
func NewService(store Store, logger *slog.Logger, policy fx.Policy, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, policy: policy, metrics: metrics}
}

// Process aggregates one upload and caches the result under its period. Cache
// write failures are logged and do not fail the run.
func (s *Service) Process(ctx context.Context, in ProcessInput) (*Processed, error) {
	runID := uuid.NewString()
	logger := s.logger.With(slog.String("run_id", runID), slog.String("file", in.Filename))

	start := time.Now()
	result, err := aggregation.Aggregate(in.Data, aggregation.Options{
		Filename:     in.Filename,
		RateOverride: in.RateOverride,
		Policy:       s.policy,
	})
	if err != nil {
		s.metrics.observeRun("error", time.Since(start), 0, 0)
		logger.Warn("aggregate upload", slog.Any("error", err))
		return nil, err
	}
	s.metrics.observeRun("ok", time.Since(start), result.Stats.Dropped, result.Stats.DefaultedAmounts)

	period := NormalizePeriod(in.Period)
	if period == "" {
		period = PeriodFromFilename(in.Filename)
	}
	logger.Info("aggregated upload",
		slog.String("period", period),
		slog.Int("rows", result.Stats.Rows),
		slog.Int("transactions", len(result.RawTransactions)),
		slog.Int("dropped", result.Stats.Dropped),
		slog.Int("defaulted_amounts", result.Stats.DefaultedAmounts),
		slog.Int("unparsed_dates", result.Stats.UnparsedDates),
		slog.String("exchange_rate", result.Rate.String()),
	)

	out := &Processed{RunID: runID, Period: period, Result: result}
	if s.store == nil || period == "" {
		return out, nil
	}
	if err := s.store.Save(ctx, period, result); err != nil {
		s.metrics.recordCacheError("save")
		logger.Warn("cache save", slog.String("period", period), slog.Any("error", err))
		return out, nil
	}
	s.loads.Forget(period)
	out.Persisted = true
	return out, nil
}

// Report returns the cached result for period. Cache read failures count as a miss.
func (s *Service) Report(ctx context.Context, period string) (*aggregation.Result, error) {
	period = NormalizePeriod(period)
	if s.store == nil || period == "" {
		s.metrics.recordMiss()
		return nil, ErrPeriodNotFound
	}
	value, err, _ := s.singleflightLoad(ctx, period, func(ctx context.Context) (interface{}, error) {
		result, found, err := s.store.Load(ctx, period)
		if err != nil {
			s.metrics.recordCacheError("load")
			s.logger.Warn("cache load", slog.String("period", period), slog.Any("error", err))
			return nil, nil
		}
		if !found {
			return nil, nil
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	result, _ := value.(*aggregation.Result)
	if result == nil {
		s.metrics.recordMiss()
		s.logger.Info("period not cached", slog.String("period", period))
		return nil, ErrPeriodNotFound
	}
	s.metrics.recordHit()
	return result, nil
}

// Periods lists the cached periods as human-readable labels, e.g. "October 2025".
// A failing cache yields an empty list.
func (s *Service) Periods(ctx context.Context) []string {
	labels := []string{}
	if s.store == nil {
		return labels
	}
	periods, err := s.store.Periods(ctx)
	if err != nil {
		s.metrics.recordCacheError("list")
		s.logger.Warn("cache list periods", slog.Any("error", err))
		return labels
	}
	for _, p := range periods {
		labels = append(labels, PeriodLabel(p))
	}
	sort.Strings(labels)
	return labels
}

// Clear drops every cached period.
func (s *Service) Clear(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		s.metrics.recordCacheError("clear")
		return err
	}
	s.logger.Info("cleared cached periods")
	return nil
}

func (s *Service) singleflightLoad(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error, bool) {
	resultChan := s.loads.DoChan(key, func() (interface{}, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
