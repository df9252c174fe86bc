package reports

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes aggregation runs and the period cache.
type Metrics struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	cacheErrors   *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	droppedRows   prometheus.Counter
	defaultedRows prometheus.Counter
}

// NewMetrics registers the report collectors on reg. Collectors that are already
// registered are reused, so the call is safe to repeat against one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spendboard_report_cache_hits_total",
			Help: "Number of period reports served from the cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spendboard_report_cache_miss_total",
			Help: "Number of period lookups that found nothing in the cache.",
		}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spendboard_report_cache_errors_total",
			Help: "Number of failed cache operations by operation.",
		}, []string{"op"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spendboard_aggregation_duration_seconds",
			Help:    "Duration of spreadsheet aggregation runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		droppedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spendboard_aggregation_dropped_rows_total",
			Help: "Rows dropped for a blank team or category.",
		}),
		defaultedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spendboard_aggregation_defaulted_amounts_total",
			Help: "Rows whose amount could not be read and counted as zero.",
		}),
	}

	var err error
	m.cacheHits = register(reg, m.cacheHits, &err)
	m.cacheMisses = register(reg, m.cacheMisses, &err)
	m.cacheErrors = register(reg, m.cacheErrors, &err)
	m.runDuration = register(reg, m.runDuration, &err)
	m.droppedRows = register(reg, m.droppedRows, &err)
	m.defaultedRows = register(reg, m.defaultedRows, &err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, errp *error) C {
	if *errp != nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
			*errp = fmt.Errorf("reports metrics: unexpected collector type %T", already.ExistingCollector)
			return c
		}
		*errp = err
	}
	return c
}

func (m *Metrics) recordHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) recordMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) recordCacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) observeRun(outcome string, duration time.Duration, dropped, defaulted int) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.droppedRows.Add(float64(dropped))
	m.defaultedRows.Add(float64(defaulted))
}
