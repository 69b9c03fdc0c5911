// Package metrics registers the service's Prometheus collectors.  All
// increment helpers are nil-safe so components can run without a metrics
// sink in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the domain counters on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	reservationsImported   *prometheus.CounterVec
	overlapConflicts       prometheus.Counter
	notificationsPublished *prometheus.CounterVec
	managementEvents       *prometheus.CounterVec
}

// New builds a registry with go/process collectors plus the domain counters.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		reg: reg,
		reservationsImported: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_reservations_imported_total",
			Help: "Imported reservation records by reconciliation outcome.",
		}, []string{"outcome"}),
		overlapConflicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "calendar_overlap_conflicts_total",
			Help: "Candidate intervals rejected by the overlap detector.",
		}),
		notificationsPublished: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_notifications_published_total",
			Help: "Outbound bus notifications by message type.",
		}, []string{"message_type"}),
		managementEvents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "calendar_management_events_total",
			Help: "Management event mutations by operation.",
		}, []string{"op"}),
	}
}

// Handler serves the registry for the /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ReservationImported counts one reconciled record; outcome is one of
// created_confirmed, created_canceled, overlap_rejected, status_canceled,
// noop, skipped.
func (m *Metrics) ReservationImported(outcome string) {
	if m != nil {
		m.reservationsImported.WithLabelValues(outcome).Inc()
	}
}

// OverlapConflict counts one rejected candidate interval.
func (m *Metrics) OverlapConflict() {
	if m != nil {
		m.overlapConflicts.Inc()
	}
}

// NotificationPublished counts one successful outbound publish.
func (m *Metrics) NotificationPublished(messageType string) {
	if m != nil {
		m.notificationsPublished.WithLabelValues(messageType).Inc()
	}
}

// ManagementEvent counts one committed CRUD mutation (create/update/delete).
func (m *Metrics) ManagementEvent(op string) {
	if m != nil {
		m.managementEvents.WithLabelValues(op).Inc()
	}
}
