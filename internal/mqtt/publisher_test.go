package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"medibox-agent/internal/metrics"
	"medibox-agent/internal/types"
)

const testEventTopic = "medibox/test/event"

func sampleEvent() types.PillEvent {
	return types.PillEvent{
		DeviceID:    "medibox_001",
		Weight:      80.0,
		WeightDelta: 20.0,
		Timestamp:   123456,
	}
}

func TestPublisher_NotConnectedDoesNoIO(t *testing.T) {
	ch := &fakeChannel{}
	mgr := newTestManager(ch, 1, nil)
	m := metrics.New(prometheus.NewRegistry())
	pub := NewPublisher(mgr, testEventTopic, quietLogger(), m)

	err := pub.Publish(sampleEvent())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Publish() error = %v, want ErrNotConnected", err)
	}
	if ch.publishCalls != 0 {
		t.Errorf("transport publish calls = %d, want 0", ch.publishCalls)
	}
	if got := testutil.ToFloat64(m.Publishes.WithLabelValues("not_connected")); got != 1 {
		t.Errorf("not_connected = %v, want 1", got)
	}
}

func TestPublisher_PublishesRetainedQoS1(t *testing.T) {
	ch := &fakeChannel{}
	mgr := newTestManager(ch, 1, nil)
	mgr.EnsureConnected(context.Background())
	pub := NewPublisher(mgr, testEventTopic, quietLogger(), nil)

	if err := pub.Publish(sampleEvent()); err != nil {
		t.Fatalf("Publish() error = %v, want nil", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}
	got := ch.published[0]
	if got.topic != testEventTopic {
		t.Errorf("topic = %q, want %q", got.topic, testEventTopic)
	}
	if got.qos != QoSAtLeastOnce {
		t.Errorf("qos = %d, want %d", got.qos, QoSAtLeastOnce)
	}
	if !got.retained {
		t.Error("retained = false, want true")
	}

	ev, err := DecodePillEvent(got.payload)
	if err != nil {
		t.Fatalf("DecodePillEvent() error = %v", err)
	}
	if ev != sampleEvent() {
		t.Errorf("decoded %+v, want %+v", ev, sampleEvent())
	}
}

func TestPublisher_TransportFailure(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.Join(ErrTransportUnavailable, errBrokerDown)}
	mgr := newTestManager(ch, 1, nil)
	mgr.EnsureConnected(context.Background())
	m := metrics.New(prometheus.NewRegistry())
	pub := NewPublisher(mgr, testEventTopic, quietLogger(), m)

	err := pub.Publish(sampleEvent())
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("Publish() error = %v, want ErrPublishFailed", err)
	}
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Errorf("Publish() error = %v, want it to wrap ErrTransportUnavailable", err)
	}
	if ch.publishCalls != 1 {
		t.Errorf("publish calls = %d, want 1 (no automatic retry)", ch.publishCalls)
	}
	if got := testutil.ToFloat64(m.Publishes.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestPublisher_OverflowIsNotPublished(t *testing.T) {
	ch := &fakeChannel{}
	mgr := newTestManager(ch, 1, nil)
	mgr.EnsureConnected(context.Background())
	pub := NewPublisher(mgr, testEventTopic, quietLogger(), nil)

	ev := sampleEvent()
	ev.DeviceID = strings.Repeat("x", MaxEventPayload)

	err := pub.Publish(ev)
	if !errors.Is(err, ErrEncodingOverflow) {
		t.Fatalf("Publish() error = %v, want ErrEncodingOverflow", err)
	}
	if ch.publishCalls != 0 {
		t.Errorf("publish calls = %d, want 0", ch.publishCalls)
	}
}
