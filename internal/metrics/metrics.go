// Package metrics exposes Prometheus collectors for sessions and the
// development gateway. A nil *Metrics records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saker-ai/devlink/pkg/session"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "devlink"

var sessionStates = []string{"disconnected", "connecting", "connected"}

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	sessionState     *prometheus.GaugeVec
	deliveryFailures *prometheus.CounterVec

	gatewayConnections prometheus.Gauge
	gatewayCommands    *prometheus.CounterVec
	gatewayReadings    prometheus.Counter
}

var _ session.Recorder = (*Metrics)(nil)

// New registers the collectors on a fresh registry. An empty namespace
// means DefaultNamespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_sent_total",
			Help:      "Messages written to the gateway by type",
		}, []string{"type"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "messages_received_total",
			Help:      "Messages decoded from the gateway by type",
		}, []string{"type"}),

		sessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current connection state of the session",
		}, []string{"state"}),

		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "delivery_failures_total",
			Help:      "Subscriber callbacks that failed by device",
		}, []string{"device_id"}),

		gatewayConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "connections",
			Help:      "Open client connections on the development gateway",
		}),

		gatewayCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "commands_total",
			Help:      "Device commands received by the development gateway",
		}, []string{"command"}),

		gatewayReadings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "readings_pushed_total",
			Help:      "Sensor readings pushed to clients",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessageSent(msgType string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(msgType).Inc()
}

// StateChanged sets the gauge of state to 1 and every other state to 0.
func (m *Metrics) StateChanged(state string) {
	if m == nil {
		return
	}
	for _, s := range sessionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.sessionState.WithLabelValues(s).Set(value)
	}
}

func (m *Metrics) DeliveryFailed(deviceID string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(deviceID).Inc()
}

// ConnectionOpened and ConnectionClosed track gateway clients.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.gatewayConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.gatewayConnections.Dec()
}

func (m *Metrics) CommandReceived(command string) {
	if m == nil {
		return
	}
	m.gatewayCommands.WithLabelValues(command).Inc()
}

func (m *Metrics) ReadingPushed() {
	if m == nil {
		return
	}
	m.gatewayReadings.Inc()
}
