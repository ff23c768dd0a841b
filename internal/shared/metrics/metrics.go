package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records lifecycle activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	documents *prometheus.CounterVec
	movements *prometheus.CounterVec
	ledger    *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	requests  *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil registerer returns a no-op value.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jewelry_documents_created_total",
			Help: "Lifecycle documents created, by type.",
		}, []string{"type"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jewelry_stock_movements_total",
			Help: "Stock movements posted, by movement type.",
		}, []string{"type"}),
		ledger: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jewelry_ledger_entries_total",
			Help: "Ledger entries posted, by party type and side.",
		}, []string{"party_type", "entry_type"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jewelry_conflicts_total",
			Help: "Requests rejected by a uniqueness or state conflict, by operation.",
		}, []string{"operation"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jewelry_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.documents, m.movements, m.ledger, m.conflicts, m.requests)
	return m
}

func (m *Metrics) DocumentCreated(docType string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(label(docType)).Inc()
}

func (m *Metrics) MovementPosted(movementType string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(label(movementType)).Inc()
}

func (m *Metrics) LedgerPosted(partyType, entryType string) {
	if m == nil {
		return
	}
	m.ledger.WithLabelValues(label(partyType), label(entryType)).Inc()
}

func (m *Metrics) Conflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(label(operation)).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, label(route), status).Observe(d.Seconds())
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
