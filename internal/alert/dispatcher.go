package alert

import (
	"bytes"
	"log/slog"
	"unicode/utf8"

	"medibox-agent/internal/metrics"
	"medibox-agent/internal/types"
)

// Actuator drives the local alarm (LED, buzzer) for an alert message.
type Actuator interface {
	Actuate(message string) error
}

// LogActuator only logs alerts. It is the actuator on hosts without alarm hardware.
type LogActuator struct {
	Logger *slog.Logger
}

func (a LogActuator) Actuate(message string) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("processing alert", "message", message)
	return nil
}

// Dispatcher routes alert-topic messages to an Actuator. It runs inside the
// channel's service call, so it never blocks on anything but the actuator.
type Dispatcher struct {
	topic      string
	maxPayload int
	actuator   Actuator
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewDispatcher(topic string, maxPayload int, actuator Actuator, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		topic:      topic,
		maxPayload: maxPayload,
		actuator:   actuator,
		logger:     logger,
		metrics:    m,
	}
}

func (d *Dispatcher) OnMessage(msg types.InboundMessage) {
	d.logger.Debug("mqtt message received", "topic", msg.Topic, "size", msg.Length)

	if msg.Topic != d.topic {
		return
	}

	n := max(min(msg.Length, len(msg.Payload)), 0)
	text, truncated := boundText(msg.Payload[:n], d.maxPayload)
	if truncated {
		d.logger.Info("alert payload truncated", "size", msg.Length, "cap", d.maxPayload)
	}
	d.metrics.Alert(truncated)
	d.logger.Info("alert received", "message", text)

	if err := d.actuator.Actuate(text); err != nil {
		d.metrics.ActuatorFailure()
		d.logger.Warn("alert actuation failed", "error", err)
	}
}

// boundText copies at most limit bytes of p into a new string. The text ends
// at the first NUL. Bytes are kept as received, except that a multi-byte
// sequence split by the cut is dropped.
func boundText(p []byte, limit int) (string, bool) {
	truncated := false
	if len(p) > limit {
		p = p[:limit]
		truncated = true
	}
	if i := bytes.IndexByte(p, 0); i >= 0 {
		return string(p[:i]), truncated
	}
	if truncated {
		p = trimPartialRune(p)
	}
	return string(p), truncated
}

// trimPartialRune drops a trailing incomplete UTF-8 sequence. Invalid bytes
// elsewhere are left alone.
func trimPartialRune(p []byte) []byte {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if !utf8.FullRune(p[i:]) {
			return p[:i]
		}
		break
	}
	return p
}
