package mqtt

import "sync"

// Message is one message captured by FakePublisher.
type Message struct {
	Topic    string
	Retained bool
	Payload  []byte
}

// FakePublisher records published messages for test assertions. It is safe
// for concurrent use.
type FakePublisher struct {
	mu       sync.Mutex
	messages []Message
	closed   bool

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Gate, if non-nil, makes Publish block until a value is received.
	Gate chan struct{}

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// Publish records the message.
func (f *FakePublisher) Publish(topic string, retained bool, payload []byte) error {
	if f.Gate != nil {
		<-f.Gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.messages = append(f.messages, Message{Topic: topic, Retained: retained, Payload: payload})
	return nil
}

// Messages returns a copy of the recorded messages.
func (f *FakePublisher) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
	f.closed = false
	f.PublishError = nil
}
