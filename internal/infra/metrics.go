package infra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the reconciler's prometheus instruments. A nil *Metrics is
// valid and all recording methods become no-ops, which keeps tests and
// minimal deployments free of a registry.
type Metrics struct {
	PassesTotal     prometheus.Counter
	PassesSkipped   prometheus.Counter
	WagersSettled   *prometheus.CounterVec
	PayoutRetries   prometheus.Counter
	ProviderErrors  *prometheus.CounterVec
	SettledInMemory prometheus.Gauge
}

// NewMetrics registers the reconciler instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PassesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_passes_total",
			Help: "Completed reconciliation passes.",
		}),
		PassesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_passes_skipped_total",
			Help: "Ticks skipped because a pass was still running.",
		}),
		WagersSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_wagers_settled_total",
			Help: "Wagers settled, by outcome.",
		}, []string{"outcome"}),
		PayoutRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "reconciler_payout_retries_total",
			Help: "Payout retry attempts for won-but-unpaid wagers.",
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reconciler_provider_errors_total",
			Help: "Results provider fetch failures, by sport.",
		}, []string{"sport"}),
		SettledInMemory: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reconciler_settled_events_in_memory",
			Help: "Size of the in-memory settled-event set.",
		}),
	}
}

// RecordPass increments the completed-pass counter.
func (m *Metrics) RecordPass() {
	if m != nil {
		m.PassesTotal.Inc()
	}
}

// RecordSkippedPass increments the skipped-tick counter.
func (m *Metrics) RecordSkippedPass() {
	if m != nil {
		m.PassesSkipped.Inc()
	}
}

// RecordSettled increments the settled counter for an outcome label.
func (m *Metrics) RecordSettled(outcome string) {
	if m != nil {
		m.WagersSettled.WithLabelValues(outcome).Inc()
	}
}

// RecordPayoutRetry increments the retry counter.
func (m *Metrics) RecordPayoutRetry() {
	if m != nil {
		m.PayoutRetries.Inc()
	}
}

// RecordProviderError increments the provider failure counter for a sport.
func (m *Metrics) RecordProviderError(sport string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(sport).Inc()
	}
}

// SetSettledInMemory records the size of the session settled set.
func (m *Metrics) SetSettledInMemory(n int) {
	if m != nil {
		m.SettledInMemory.Set(float64(n))
	}
}

// HealthFunc reports readiness of a dependency.
type HealthFunc func(ctx context.Context) error

// StartMetricsServer serves /metrics and /healthz on the given port in a
// background goroutine and returns the server for shutdown.
func StartMetricsServer(port int, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
