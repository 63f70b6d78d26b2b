// Package httpapi provides the HTTP transport adapter for the session
// lifecycle: the auth endpoints, route guards, activity capture, and the
// Prometheus metrics surface.
package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/miradorhq/sessiond/internal/domain/session"
	"github.com/miradorhq/sessiond/internal/service"
)

// Metrics holds all Prometheus metrics for sessiond.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal         *prometheus.CounterVec
	RequestDuration       *prometheus.HistogramVec
	LoginsTotal           *prometheus.CounterVec
	SessionsExpiredTotal  *prometheus.CounterVec
	SessionsExtendedTotal prometheus.Counter
	SessionsClearedTotal  prometheus.Counter
	ActiveSlots           *prometheus.GaugeVec
	ActivitySignalsTotal  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sessiond",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "logins_total",
				Help:      "Total login attempts by outcome",
			},
			[]string{"outcome"}, // outcome=ok/authentication_failed/inactive_account/connection_error/login_in_flight
		),
		SessionsExpiredTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "sessions_expired_total",
				Help:      "Total sessions expired by reason",
			},
			[]string{"reason"}, // reason=absolute/idle
		),
		SessionsExtendedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "sessions_extended_total",
				Help:      "Total session extensions",
			},
		),
		SessionsClearedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "sessions_cleared_total",
				Help:      "Total sessions cleared (logout or self-heal)",
			},
		),
		ActiveSlots: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "sessiond",
				Name:      "active_slots",
				Help:      "Whether an identity slot currently holds a session (0 or 1)",
			},
			[]string{"slot"}, // slot=admin/user
		),
		ActivitySignalsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessiond",
				Name:      "activity_signals_total",
				Help:      "Total interaction signals observed",
			},
		),
	}
}

// ObserveSessionEvents subscribes the metrics to the service's lifecycle
// events. Returns the unsubscribe function.
func (m *Metrics) ObserveSessionEvents(svc *service.AuthService) func() {
	return svc.Subscribe(func(event session.Event) {
		switch event.Type {
		case session.EventStarted:
			m.ActiveSlots.WithLabelValues(string(event.Slot)).Set(1)
		case session.EventExtended:
			m.SessionsExtendedTotal.Inc()
		case session.EventExpired:
			m.SessionsExpiredTotal.WithLabelValues(string(event.Reason)).Inc()
			m.ActiveSlots.WithLabelValues(string(event.Slot)).Set(0)
		case session.EventCleared:
			m.SessionsClearedTotal.Inc()
			m.ActiveSlots.WithLabelValues(string(event.Slot)).Set(0)
		}
	})
}
