package mqtt

import (
	"context"
	"errors"
	"sync"

	"medibox-agent/internal/types"
)

var errBrokerDown = errors.New("broker down")

// fakeChannel scripts connect/subscribe outcomes and counts calls.
type fakeChannel struct {
	mu sync.Mutex

	connectErrs   []error // consumed in order; nil once exhausted
	subscribeErrs []error
	publishErr    error

	connected bool
	handler   Handler
	pending   []types.InboundMessage

	connectCalls    int
	subscribeCalls  int
	publishCalls    int
	disconnectCalls int
	serviceCalls    int

	subscribedTopic string
	subscribedQoS   byte
	published       []publishedMsg
}

type publishedMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (f *fakeChannel) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) Subscribe(topic string, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	if len(f.subscribeErrs) > 0 {
		err := f.subscribeErrs[0]
		f.subscribeErrs = f.subscribeErrs[1:]
		if err != nil {
			return err
		}
	}
	f.subscribedTopic = topic
	f.subscribedQoS = qos
	return nil
}

func (f *fakeChannel) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishCalls++
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, publishedMsg{topic: topic, qos: qos, retained: retained, payload: payload})
	return nil
}

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Service() {
	f.mu.Lock()
	f.serviceCalls++
	pending := f.pending
	f.pending = nil
	h := f.handler
	f.mu.Unlock()
	for _, m := range pending {
		if h != nil {
			h(m)
		}
	}
}

func (f *fakeChannel) SetHandler(h Handler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
	f.connected = false
}

func (f *fakeChannel) drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

func repeatErr(err error, n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = err
	}
	return out
}
