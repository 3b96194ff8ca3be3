// Package metrics holds the agent's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components can be built without a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "medibox"

type Metrics struct {
	WeightSamples    prometheus.Counter
	LastWeight       prometheus.Gauge
	PillEvents       prometheus.Counter
	Publishes        *prometheus.CounterVec
	ConnectAttempts  *prometheus.CounterVec
	ConnectionState  prometheus.Gauge
	AlertsReceived   prometheus.Counter
	AlertsTruncated  prometheus.Counter
	ActuatorFailures prometheus.Counter
	InboundDropped   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WeightSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_samples_total",
			Help:      "Weight samples fed to the detector.",
		}),
		LastWeight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weight_grams",
			Help:      "Most recent weight reading in grams.",
		}),
		PillEvents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pill_events_total",
			Help:      "Pill removal events detected.",
		}),
		Publishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publishes_total",
			Help:      "Event publish outcomes by result.",
		}, []string{"result"}),
		ConnectAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_connect_attempts_total",
			Help:      "Broker connect attempts by result.",
		}, []string{"result"}),
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connection_state",
			Help:      "0 disconnected, 1 connecting, 2 connected.",
		}),
		AlertsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Alert messages dispatched to the actuator.",
		}),
		AlertsTruncated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_truncated_total",
			Help:      "Alert payloads cut to the configured cap.",
		}),
		ActuatorFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_failures_total",
			Help:      "Alert actuations that returned an error.",
		}),
		InboundDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_inbound_dropped_total",
			Help:      "Inbound messages dropped because the delivery queue was full.",
		}),
	}
}

func (m *Metrics) ObserveSample(grams float64) {
	if m == nil {
		return
	}
	m.WeightSamples.Inc()
	m.LastWeight.Set(grams)
}

func (m *Metrics) PillEvent() {
	if m == nil {
		return
	}
	m.PillEvents.Inc()
}

// Publish records a publish outcome: "ok", "not_connected", "overflow" or "failed".
func (m *Metrics) Publish(result string) {
	if m == nil {
		return
	}
	m.Publishes.WithLabelValues(result).Inc()
}

// ConnectAttempt records a connect outcome: "ok", "connect_failed" or "subscribe_failed".
func (m *Metrics) ConnectAttempt(result string) {
	if m == nil {
		return
	}
	m.ConnectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) SetConnectionState(v int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(v))
}

func (m *Metrics) Alert(truncated bool) {
	if m == nil {
		return
	}
	m.AlertsReceived.Inc()
	if truncated {
		m.AlertsTruncated.Inc()
	}
}

func (m *Metrics) ActuatorFailure() {
	if m == nil {
		return
	}
	m.ActuatorFailures.Inc()
}

func (m *Metrics) InboundDrop() {
	if m == nil {
		return
	}
	m.InboundDropped.Inc()
}
