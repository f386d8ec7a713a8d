package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Messages       *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	Geocode        *prometheus.CounterVec
	MatchesCreated prometheus.Counter
	TaskFailures   *prometheus.CounterVec
	MessageLatency prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadhunt_messages_total",
				Help: "Inbound messages by outcome (ingested, duplicate, failed).",
			},
			[]string{"outcome", "dialect"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadhunt_runs_total",
				Help: "Ingestion runs by result (ok, aborted, error).",
			},
			[]string{"result"},
		),
		Geocode: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadhunt_geocode_lookups_total",
				Help: "Geocode cache lookups by result (hit, miss, limited, budget, error).",
			},
			[]string{"result"},
		),
		MatchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "loadhunt_hunt_matches_created_total",
			Help: "Load hunt matches created.",
		}),
		TaskFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadhunt_background_task_failures_total",
				Help: "Background tasks that exhausted their attempts.",
			},
			[]string{"task"},
		),
		MessageLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loadhunt_message_duration_seconds",
			Help:    "Per-message processing time.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
