package observability

import (
	"net/http"
	"strconv"

	"github.com/aretw0/vine/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Writes           *prometheus.CounterVec
	Computes         *prometheus.CounterVec
	ComputeDuration  *prometheus.HistogramVec
	Finalizes        prometheus.Counter
	FinalizeDuration prometheus.Histogram
	Notifications    prometheus.Counter
	ListenerCalls    prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vine_writes_total",
				Help: "Total number of draft writes",
			},
			[]string{"store", "op"},
		),
		Computes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vine_computes_total",
				Help: "Total number of computed evaluations",
			},
			[]string{"store", "changed"},
		),
		ComputeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vine_compute_duration_seconds",
				Help:    "Duration of computed evaluations",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"store"},
		),
		Finalizes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vine_finalize_total",
			Help: "Total number of batched commit passes",
		}),
		FinalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vine_finalize_duration_seconds",
			Help:    "Duration of batched commit passes",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vine_notifications_total",
			Help: "Total number of subscriber callbacks delivered",
		}),
		ListenerCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vine_listener_calls_total",
			Help: "Total number of store listener calls",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.Writes,
		m.Computes,
		m.ComputeDuration,
		m.Finalizes,
		m.FinalizeDuration,
		m.Notifications,
		m.ListenerCalls,
	)
	return m
}

// Registry exposes the private registry, e.g. to add process collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks feeds the collectors from engine lifecycle events.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnWrite: func(e *domain.WriteEvent) {
			op := "set"
			if e.Delete {
				op = "delete"
			}
			m.Writes.WithLabelValues(e.Store, op).Inc()
		},
		OnCompute: func(e *domain.ComputeEvent) {
			m.Computes.WithLabelValues(e.Store, strconv.FormatBool(e.Changed)).Inc()
			m.ComputeDuration.WithLabelValues(e.Store).Observe(e.Duration.Seconds())
		},
		OnFinalize: func(e *domain.FinalizeEvent) {
			m.Finalizes.Inc()
			m.FinalizeDuration.Observe(e.Duration.Seconds())
			m.Notifications.Add(float64(e.Notified))
			m.ListenerCalls.Add(float64(e.Listeners))
		},
	}
}
