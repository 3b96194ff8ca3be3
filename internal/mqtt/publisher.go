package mqtt

import (
	"errors"
	"fmt"
	"log/slog"

	"medibox-agent/internal/metrics"
	"medibox-agent/internal/types"
)

// Session is the part of the Manager the Publisher depends on.
type Session interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Publisher sends pill events to the event topic as retained QoS 1 messages.
// Failed events are reported and dropped; nothing is queued for replay.
type Publisher struct {
	session  Session
	topic    string
	capacity int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewPublisher(session Session, topic string, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		session:  session,
		topic:    topic,
		capacity: MaxEventPayload,
		logger:   logger,
		metrics:  m,
	}
}

func (p *Publisher) Publish(ev types.PillEvent) error {
	if !p.session.IsConnected() {
		p.metrics.Publish("not_connected")
		p.logger.Warn("pill event not published, mqtt not connected",
			"weight", ev.Weight,
			"weight_diff", ev.WeightDelta,
		)
		return ErrNotConnected
	}

	data, err := EncodePillEvent(ev, p.capacity)
	if err != nil {
		p.metrics.Publish("overflow")
		p.logger.Error("pill event dropped", "error", err)
		return err
	}

	if err := p.session.Publish(p.topic, QoSAtLeastOnce, true, data); err != nil {
		if errors.Is(err, ErrNotConnected) {
			p.metrics.Publish("not_connected")
			return err
		}
		p.metrics.Publish("failed")
		p.logger.Warn("error publishing pill event", "topic", p.topic, "error", err)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	p.metrics.Publish("ok")
	p.logger.Info("pill event published",
		"topic", p.topic,
		"weight", ev.Weight,
		"weight_diff", ev.WeightDelta,
		"timestamp_ms", ev.Timestamp,
	)
	return nil
}
