package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"medibox-agent/internal/metrics"
)

// State is the broker session state as seen by the Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type ManagerOptions struct {
	AlertTopic  string
	MaxAttempts int
	Backoff     time.Duration
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Manager owns a Channel and keeps its session alive. Every access to the
// channel goes through the Manager and is serialized by its lock.
type Manager struct {
	ch      Channel
	opts    ManagerOptions
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	state    State
	attempts int
}

func NewManager(ch Channel, opts ManagerOptions) *Manager {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		ch:      ch,
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		state:   Disconnected,
	}
	m.metrics.SetConnectionState(int(Disconnected))
	return m
}

// EnsureConnected returns immediately when the session is up. Otherwise it
// makes up to MaxAttempts connect+subscribe attempts separated by Backoff and
// returns the resulting state. Exhausting the budget is not an error: the
// counter is reset and the caller retries on its next cycle.
func (m *Manager) EnsureConnected(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Connected {
		if m.ch.IsConnected() {
			return Connected
		}
		m.logger.Warn("mqtt session lost, reconnecting")
		m.setState(Disconnected)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.Backoff), uint64(m.opts.MaxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(m.attempt(ctx), bo, func(err error, next time.Duration) {
		m.logger.Warn("mqtt connect failed",
			"error", err,
			"attempt", m.attempts,
			"max_attempts", m.opts.MaxAttempts,
			"retry_in", next,
		)
	})
	if err == nil {
		return Connected
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		m.logger.Info("mqtt reconnect interrupted", "attempts", m.attempts)
	} else {
		m.logger.Error("mqtt maximum reconnection attempts reached",
			"error", err,
			"attempts", m.attempts,
		)
	}
	m.attempts = 0
	m.setState(Disconnected)
	return Disconnected
}

func (m *Manager) attempt(ctx context.Context) backoff.Operation {
	return func() error {
		m.attempts++
		m.setState(Connecting)

		if err := m.ch.Connect(ctx); err != nil {
			m.metrics.ConnectAttempt("connect_failed")
			m.setState(Disconnected)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		// A session without the alert subscription is not usable.
		if err := m.ch.Subscribe(m.opts.AlertTopic, QoSAtLeastOnce); err != nil {
			m.metrics.ConnectAttempt("subscribe_failed")
			m.ch.Disconnect()
			m.setState(Disconnected)
			return err
		}

		m.metrics.ConnectAttempt("ok")
		m.logger.Info("mqtt session established", "alert_topic", m.opts.AlertTopic, "attempt", m.attempts)
		m.attempts = 0
		m.setState(Connected)
		return nil
	}
}

// Service lets the channel deliver pending inbound messages.
func (m *Manager) Service() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ch.Service()
}

// Publish sends payload through the managed channel. It performs no I/O
// unless the session is Connected.
func (m *Manager) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Connected {
		return ErrNotConnected
	}
	return m.ch.Publish(topic, qos, retained, payload)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// Attempts is the number of connection attempts made in the current cycle.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Close disconnects the channel.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ch.Disconnect()
	m.setState(Disconnected)
}

func (m *Manager) setState(s State) {
	m.state = s
	m.metrics.SetConnectionState(int(s))
}
