package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice relay
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsOpened  prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Protocol metrics
	MessagesReceived *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg.
// Passing a fresh prometheus.NewRegistry() keeps tests isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_relay_active_sessions",
			Help: "Current number of open client connections",
		}),
		SessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_relay_sessions_opened_total",
			Help: "Total number of accepted client connections",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_relay_sessions_closed_total",
			Help: "Total number of torn down client connections",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_relay_session_duration_seconds",
			Help:    "Lifetime of client connections in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34 minutes
		}),

		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_relay_messages_received_total",
			Help: "Inbound envelopes by decoded type",
		}, []string{"type"}),
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_relay_messages_sent_total",
			Help: "Outbound envelopes by type",
		}, []string{"type"}),

		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_relay_provider_requests_total",
			Help: "Calls to the voice provider by operation and outcome",
		}, []string{"operation", "outcome"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_relay_provider_duration_seconds",
			Help:    "Voice provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// SessionOpened records an accepted connection.
func (m *Metrics) SessionOpened() {
	m.SessionsOpened.Inc()
	m.ActiveSessions.Inc()
}

// SessionClosed records a teardown and the connection lifetime.
func (m *Metrics) SessionClosed(lifetime time.Duration) {
	m.SessionsClosed.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(lifetime.Seconds())
}

func (m *Metrics) MessageReceived(msgType string) {
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageSent(msgType string) {
	m.MessagesSent.WithLabelValues(msgType).Inc()
}

func (m *Metrics) ObserveProvider(operation, outcome string, elapsed time.Duration) {
	m.ProviderRequests.WithLabelValues(operation, outcome).Inc()
	m.ProviderDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
