package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"medibox-agent/internal/config"
	"medibox-agent/internal/metrics"
	"medibox-agent/internal/types"
)

const inboundQueueSize = 32

// PahoChannel is a Channel backed by the Eclipse Paho MQTT 3.1.1 client.
// Reconnection is left to the Manager, so paho's own auto-reconnect is off.
type PahoChannel struct {
	client  paho.Client
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	connected bool
	handler   Handler

	inbox chan types.InboundMessage
}

func NewPahoChannel(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) *PahoChannel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &PahoChannel{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		inbox:   make(chan types.InboundMessage, inboundQueueSize),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	// Session settings
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.MQTTConnectTimeout)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ paho.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = paho.NewClient(opts)
	return c
}

// Connect performs one connect attempt, bounded by the configured timeout and ctx.
func (c *PahoChannel) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	deadline := time.Now().Add(c.cfg.MQTTConnectTimeout)
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("%w: connect: %w", ErrTransportUnavailable, err)
			}
			// OnConnectHandler runs on its own goroutine and may not have
			// fired yet; the subscribe that follows needs the flag now.
			c.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			c.client.Disconnect(0)
			return ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			c.client.Disconnect(0)
			return fmt.Errorf("%w: connect timeout after %s", ErrTransportUnavailable, c.cfg.MQTTConnectTimeout)
		}
	}
}

func (c *PahoChannel) Subscribe(topic string, qos byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: subscribe %s: %w", ErrTransportUnavailable, topic, ErrNotConnected)
	}

	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		c.enqueue(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.cfg.MQTTConnectTimeout) {
		return fmt.Errorf("%w: subscribe timeout for topic %s", ErrTransportUnavailable, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: subscribe to %s: %w", ErrTransportUnavailable, topic, err)
	}

	c.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (c *PahoChannel) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: publish %s: %w", ErrTransportUnavailable, topic, ErrNotConnected)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.cfg.MQTTConnectTimeout) {
		return fmt.Errorf("%w: publish timeout for topic %s", ErrTransportUnavailable, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrTransportUnavailable, topic, err)
	}
	return nil
}

// IsConnected returns whether the client is connected.
func (c *PahoChannel) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

func (c *PahoChannel) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *PahoChannel) Service() {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()

	for {
		select {
		case msg := <-c.inbox:
			if h != nil {
				h(msg)
			}
		default:
			return
		}
	}
}

// Disconnect closes the MQTT connection. Safe to call more than once.
func (c *PahoChannel) Disconnect() {
	// Paho Disconnect quiesces in-flight work for the given ms.
	c.client.Disconnect(250)
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

// enqueue runs on paho's delivery goroutine; the payload is copied so the
// consumer owns it outright.
func (c *PahoChannel) enqueue(topic string, payload []byte) {
	msg := types.InboundMessage{
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
		Length:  len(payload),
	}
	select {
	case c.inbox <- msg:
	default:
		c.metrics.InboundDrop()
		c.logger.Warn("mqtt inbound queue full, dropping message", "topic", topic, "size", len(payload))
	}
}

func (c *PahoChannel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
