package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/helpdesk/internal/models"
)

const (
	// OutcomeLogged labels queries whose incident record was persisted.
	OutcomeLogged = "logged"
	// OutcomeError labels queries that were rejected or failed to persist.
	OutcomeError = "error"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "queries_total",
			Help:      "Total number of helpdesk queries handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "helpdesk",
			Name:      "query_seconds",
			Help:      "End-to-end query latency in seconds, including the completion backend.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	backendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "backend_failures_total",
			Help:      "Completion backend failures that were replaced by a placeholder answer.",
		},
		[]string{"reason"},
	)

	incidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "helpdesk",
			Name:      "incidents_total",
			Help:      "Persisted incident records by severity and department.",
		},
		[]string{"severity", "department"},
	)
)

// Register attaches helpdesk collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		queriesTotal,
		queryDurationSeconds,
		backendFailuresTotal,
		incidentsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveQuery records a query duration and outcome label.
func ObserveQuery(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeLogged
	}
	queriesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	queryDurationSeconds.Observe(duration.Seconds())
}

// ObserveBackendFailure counts a degraded completion by failure reason.
func ObserveBackendFailure(reason string) {
	if reason == "" {
		reason = "error"
	}
	backendFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveIncident counts a persisted record by its classification.
func ObserveIncident(rec models.IncidentRecord) {
	incidentsTotal.WithLabelValues(string(rec.Severity), string(rec.Department)).Inc()
}
