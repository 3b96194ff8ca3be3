package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"medibox-agent/internal/config"
	"medibox-agent/internal/metrics"
	"medibox-agent/internal/types"
)

func testPahoChannel(m *metrics.Metrics) *PahoChannel {
	return NewPahoChannel(config.Config{
		MQTTBroker:         "127.0.0.1",
		MQTTPort:           1,
		MQTTClientID:       "medibox-test",
		MQTTConnectTimeout: 100 * time.Millisecond,
	}, quietLogger(), m)
}

func TestPahoChannel_ServiceDeliversCopies(t *testing.T) {
	c := testPahoChannel(nil)

	var got []types.InboundMessage
	c.SetHandler(func(msg types.InboundMessage) { got = append(got, msg) })

	buf := []byte("take pills")
	c.enqueue("medibox/x/alert", buf)
	buf[0] = 'X'

	if len(got) != 0 {
		t.Fatalf("handler ran before Service()")
	}
	c.Service()

	if len(got) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(got))
	}
	if string(got[0].Payload) != "take pills" {
		t.Errorf("payload = %q, want the bytes as received", got[0].Payload)
	}
	if got[0].Length != len("take pills") {
		t.Errorf("Length = %d, want %d", got[0].Length, len("take pills"))
	}
	if got[0].Topic != "medibox/x/alert" {
		t.Errorf("Topic = %q", got[0].Topic)
	}

	c.Service()
	if len(got) != 1 {
		t.Errorf("second Service() delivered again: %d", len(got))
	}
}

func TestPahoChannel_QueueOverflowDrops(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := testPahoChannel(m)

	for i := 0; i < inboundQueueSize+3; i++ {
		c.enqueue("t", []byte{byte(i)})
	}
	if got := testutil.ToFloat64(m.InboundDropped); got != 3 {
		t.Errorf("dropped = %v, want 3", got)
	}

	n := 0
	c.SetHandler(func(types.InboundMessage) { n++ })
	c.Service()
	if n != inboundQueueSize {
		t.Errorf("delivered %d, want %d", n, inboundQueueSize)
	}
}

func TestPahoChannel_OperationsRequireConnection(t *testing.T) {
	c := testPahoChannel(nil)

	if c.IsConnected() {
		t.Fatal("IsConnected() = true before Connect")
	}
	err := c.Publish("t", QoSAtLeastOnce, true, []byte("x"))
	if !errors.Is(err, ErrTransportUnavailable) || !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrTransportUnavailable and ErrNotConnected", err)
	}
	err = c.Subscribe("t", QoSAtLeastOnce)
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Errorf("Subscribe() error = %v, want ErrTransportUnavailable", err)
	}
}
