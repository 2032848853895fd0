package resock

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "resock"

// Metrics holds the Prometheus collectors updated by clients. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	connectionsOpened prometheus.Counter
	connectionsClosed *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	errorsTotal       prometheus.Counter
	messagesReceived  *prometheus.CounterVec
	messagesSent      *prometheus.CounterVec
	dialDuration      prometheus.Histogram
	connected         prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_opened_total",
			Help:      "Total number of WebSocket connections that completed the handshake",
		}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_closed_total",
			Help:      "Total number of connection attempts that ended, by close code",
		}, []string{"code"}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of automatic reconnect attempts",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Total number of transport errors",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_received_total",
			Help:      "Total number of frames received",
		}, []string{"type"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_sent_total",
			Help:      "Total number of frames written",
		}, []string{"type"}),
		dialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "dial_duration_seconds",
			Help:      "Duration of WebSocket dials, successful or not",
			Buckets:   prometheus.DefBuckets,
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connected",
			Help:      "Number of currently open connections",
		}),
	}
	reg.MustRegister(
		m.connectionsOpened,
		m.connectionsClosed,
		m.reconnectAttempts,
		m.errorsTotal,
		m.messagesReceived,
		m.messagesSent,
		m.dialDuration,
		m.connected,
	)
	return m
}

func (m *Metrics) observeDial(start time.Time) {
	if m == nil {
		return
	}
	m.dialDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) opened() {
	if m == nil {
		return
	}
	m.connectionsOpened.Inc()
	m.connected.Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.connected.Dec()
}

func (m *Metrics) closed(code StatusCode) {
	if m == nil {
		return
	}
	m.connectionsClosed.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

func (m *Metrics) reconnecting() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) errored() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

func (m *Metrics) received(t MessageType) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) sent(t MessageType) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(t.String()).Inc()
}
