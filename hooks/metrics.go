package hooks

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// MetricsHook records per-operation query metrics
type MetricsHook struct {
	queryDuration *prometheus.HistogramVec
	queryTotal    *prometheus.CounterVec
	queryErrors   *prometheus.CounterVec
}

// NewMetricsHook creates the hook and registers its collectors. Collectors
// an earlier hook already registered are reused, so several pools can
// share one registry.
func NewMetricsHook(registry prometheus.Registerer) (*MetricsHook, error) {
	h := &MetricsHook{
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgkit_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgkit_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation"},
		),
		queryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgkit_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
		),
	}

	var err error
	if h.queryDuration, err = reuseRegistered(registry, h.queryDuration); err != nil {
		return nil, err
	}
	if h.queryTotal, err = reuseRegistered(registry, h.queryTotal); err != nil {
		return nil, err
	}
	if h.queryErrors, err = reuseRegistered(registry, h.queryErrors); err != nil {
		return nil, err
	}

	return h, nil
}

// reuseRegistered registers c, handing back the already registered
// collector when the registry has seen an identical one
func reuseRegistered[C prometheus.Collector](registry prometheus.Registerer, c C) (C, error) {
	err := registry.Register(c)
	if err == nil {
		return c, nil
	}

	var zero C
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return zero, err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return zero, err
	}
	return existing, nil
}

// BeforeQuery implements bun.QueryHook
func (h *MetricsHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery implements bun.QueryHook
func (h *MetricsHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime).Seconds()
	op := OperationType(event.Query)

	h.queryDuration.WithLabelValues(op).Observe(duration)
	h.queryTotal.WithLabelValues(op).Inc()

	if event.Err != nil {
		h.queryErrors.WithLabelValues(op).Inc()
	}
}
