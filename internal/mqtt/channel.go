package mqtt

import (
	"context"
	"errors"

	"medibox-agent/internal/types"
)

var (
	// ErrTransportUnavailable wraps any connect, subscribe or publish failure
	// reported by the broker link. Recoverable.
	ErrTransportUnavailable = errors.New("mqtt: transport unavailable")
	// ErrNotConnected is returned when an operation needs a live session.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrEncodingOverflow is returned when an event payload exceeds its cap.
	ErrEncodingOverflow = errors.New("mqtt: encoded payload exceeds capacity")
	// ErrPublishFailed is returned when the broker rejects or times out a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)

// QoS levels used by the agent.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
)

// Handler receives inbound messages from Service. It runs on the caller's
// goroutine and must not block.
type Handler func(msg types.InboundMessage)

// Channel is a pub/sub session with a broker.
type Channel interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, qos byte) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
	// Service delivers queued inbound messages to the handler synchronously.
	Service()
	SetHandler(h Handler)
	Disconnect()
}
