package app

import (
	"context"
	"log/slog"
	"time"

	"medibox-agent/internal/metrics"
	"medibox-agent/internal/mqtt"
	"medibox-agent/internal/sensor"
	"medibox-agent/internal/types"
)

// Session is what the loop needs from the connection manager.
type Session interface {
	EnsureConnected(ctx context.Context) mqtt.State
	Service()
}

type EventDetector interface {
	OnSample(weight float64) (types.PillEvent, bool)
}

type EventPublisher interface {
	Publish(ev types.PillEvent) error
}

// Loop is the agent's single thread of control. Each Tick keeps the broker
// session up, lets inbound messages through, and samples the scale once per
// poll interval.
type Loop struct {
	Session      Session
	Source       sensor.WeightSource
	Detector     EventDetector
	Publisher    EventPublisher
	PollInterval time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics

	lastCheck time.Time
}

func (l *Loop) Tick(ctx context.Context, now time.Time) {
	l.Session.EnsureConnected(ctx)
	l.Session.Service()

	if !l.lastCheck.IsZero() && now.Sub(l.lastCheck) < l.PollInterval {
		return
	}
	l.lastCheck = now
	l.checkPillEvent()
}

func (l *Loop) checkPillEvent() {
	weight := l.Source.Read()
	l.Metrics.ObserveSample(weight)

	ev, ok := l.Detector.OnSample(weight)
	if !ok {
		return
	}
	l.Metrics.PillEvent()
	l.logger().Info("pill removed", "weight_g", ev.Weight, "weight_diff_g", ev.WeightDelta)

	// Failures are logged and counted by the publisher; the event is not retried.
	_ = l.Publisher.Publish(ev)
}

// Run ticks every interval until ctx ends.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.Tick(ctx, now)
		}
	}
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
