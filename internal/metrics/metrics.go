package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes recorded per provider.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeUpstream    = "upstream_error"
	OutcomeTimeout     = "timeout"
	OutcomeInvalid     = "invalid"
	OutcomeInternal    = "internal_error"
)

// Recorder receives broker and mailbox events.
type Recorder interface {
	ObserveDispatch(provider string, outcome string, duration time.Duration)
	ObserveMailboxCycle(trigger string, success bool)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveDispatch(string, string, time.Duration) {}
func (Nop) ObserveMailboxCycle(string, bool)              {}

// PrometheusRecorder reports runtime metrics using Prometheus primitives.
type PrometheusRecorder struct {
	dispatches *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	denials    *prometheus.CounterVec
	cycles     *prometheus.CounterVec
}

func NewPrometheusRecorder(registry *prometheus.Registry) (*PrometheusRecorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	r := &PrometheusRecorder{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "model_bridge_dispatches_total",
			Help: "Total number of dispatches by provider and outcome",
		}, []string{"provider", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "model_bridge_dispatch_duration_seconds",
			Help:    "Dispatch latency in seconds, upstream call included",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "model_bridge_rate_limited_total",
			Help: "Total requests denied by the provider rate limiter",
		}, []string{"provider"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "model_bridge_mailbox_cycles_total",
			Help: "Total mailbox cycles by trigger and result",
		}, []string{"trigger", "result"}),
	}

	for _, collector := range []prometheus.Collector{r.dispatches, r.durations, r.denials, r.cycles} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveDispatch(provider string, outcome string, duration time.Duration) {
	r.dispatches.WithLabelValues(provider, outcome).Inc()
	if outcome == OutcomeRateLimited {
		r.denials.WithLabelValues(provider).Inc()
		return
	}
	r.durations.WithLabelValues(provider).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ObserveMailboxCycle(trigger string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.cycles.WithLabelValues(trigger, result).Inc()
}

// Handler exposes registry in the text exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
