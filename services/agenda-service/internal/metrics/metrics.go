package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AgendaMetrics exposes counters/histograms for booking and reminder flows.
type AgendaMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	skippedTotal       prometheus.Counter
	readStateChanges   *prometheus.CounterVec
	feedLatency        prometheus.Histogram
	outboxPublished    *prometheus.CounterVec
}

func NewAgendaMetrics(reg prometheus.Registerer) *AgendaMetrics {
	m := &AgendaMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "reminders",
			Name:      "derived_total",
			Help:      "Derived notifications by kind",
		}, []string{"kind"}),
		skippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "reminders",
			Name:      "skipped_records_total",
			Help:      "Malformed appointment records skipped during derivation",
		}),
		readStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "readstate",
			Name:      "changes_total",
			Help:      "Read-state mutations that changed stored state",
		}, []string{"op"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "reminders",
			Name:      "feed_latency_seconds",
			Help:      "Latency of notification feed derivation",
			Buckets:   prometheus.DefBuckets,
		}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events published to Kafka",
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.notificationsTotal, m.skippedTotal, m.readStateChanges, m.feedLatency, m.outboxPublished)
	return m
}

func (m *AgendaMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *AgendaMetrics) ObserveDerived(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notificationsTotal.WithLabelValues(kind).Add(float64(n))
}

func (m *AgendaMetrics) ObserveSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedTotal.Add(float64(n))
}

func (m *AgendaMetrics) ObserveReadStateChange(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.readStateChanges.WithLabelValues(op).Add(float64(n))
}

func (m *AgendaMetrics) ObserveFeedLatency(seconds float64) {
	if m == nil {
		return
	}
	m.feedLatency.Observe(seconds)
}

func (m *AgendaMetrics) ObservePublished(eventType string) {
	if m == nil {
		return
	}
	m.outboxPublished.WithLabelValues(eventType).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
