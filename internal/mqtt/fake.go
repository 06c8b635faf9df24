package mqtt

import "sync"

// FakePublisher records published heartbeats for test assertions.
type FakePublisher struct {
	// Heartbeats contains all heartbeats that were published.
	Heartbeats []Heartbeat

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the heartbeat.
func (f *FakePublisher) Publish(hb Heartbeat) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(hb)
	if err != nil {
		return err
	}
	f.Heartbeats = append(f.Heartbeats, hb)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// FakeSubscriber delivers messages handed to Deliver to the subscribed handlers.
type FakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string][]Handler

	// SubscribeError, if set, will be returned by Subscribe.
	SubscribeError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSubscriber creates a FakeSubscriber for testing.
func NewFakeSubscriber() *FakeSubscriber {
	return &FakeSubscriber{handlers: map[string][]Handler{}}
}

// Subscribe registers handler for topic.
func (f *FakeSubscriber) Subscribe(topic string, handler Handler) error {
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = append(f.handlers[topic], handler)
	return nil
}

// Deliver synchronously passes payload to every handler of topic and
// returns how many handlers ran.
func (f *FakeSubscriber) Deliver(topic string, payload []byte) int {
	f.mu.Lock()
	handlers := append([]Handler(nil), f.handlers[topic]...)
	f.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
	return len(handlers)
}

// Close marks the subscriber as closed.
func (f *FakeSubscriber) Close() error {
	f.Closed = true
	return nil
}
