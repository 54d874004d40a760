package mqtt

import (
	"log/slog"
	"sync"

	"github.com/roach88/triggersim/internal/engine"
)

// DefaultQueueSize bounds the messages waiting to be published.
const DefaultQueueSize = 256

type outgoing struct {
	topic    string
	retained bool
	payload  []byte
}

// Notifier is an engine.Observer that publishes notifications as JSON.
//
// Engine callbacks run under the engine lock, so the Notifier never touches
// the network from a callback: messages are queued and a background
// goroutine publishes them in order. When the queue is full new messages
// are dropped and counted.
type Notifier struct {
	pub    Publisher
	prefix string
	logger *slog.Logger

	mu      sync.Mutex
	queue   chan outgoing
	closed  bool
	dropped int
	done    chan struct{}
}

// NewNotifier starts a notifier publishing through pub under prefix. A
// queueSize of zero or less uses DefaultQueueSize.
func NewNotifier(pub Publisher, prefix string, queueSize int, logger *slog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		pub:    pub,
		prefix: prefix,
		logger: logger,
		queue:  make(chan outgoing, queueSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		if err := n.pub.Publish(msg.topic, msg.retained, msg.payload); err != nil {
			n.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
		}
	}
}

func (n *Notifier) OnLog(line engine.LogLine) {
	payload, err := FormatLogPayload(line)
	if err != nil {
		n.logger.Warn("mqtt format failed", "error", err)
		return
	}
	n.enqueue(outgoing{topic: Topic(n.prefix, TopicLog), payload: payload})
}

func (n *Notifier) OnStateChanged(id string, active bool) {
	payload, err := FormatStatePayload(id, active)
	if err != nil {
		n.logger.Warn("mqtt format failed", "error", err)
		return
	}
	n.enqueue(outgoing{topic: Topic(n.prefix, TopicState, id), retained: true, payload: payload})
}

func (n *Notifier) OnFlash(id string, cue engine.FlashCue) {
	payload, err := FormatFlashPayload(id, cue)
	if err != nil {
		n.logger.Warn("mqtt format failed", "error", err)
		return
	}
	n.enqueue(outgoing{topic: Topic(n.prefix, TopicFlash), payload: payload})
}

func (n *Notifier) enqueue(msg outgoing) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- msg:
	default:
		if n.dropped == 0 {
			n.logger.Warn("mqtt queue full, dropping messages", "capacity", cap(n.queue))
		}
		n.dropped++
	}
}

// Dropped returns how many messages were discarded because the queue was full.
func (n *Notifier) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Close publishes everything already queued, then closes the publisher.
// Notifications arriving after Close are discarded.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	return n.pub.Close()
}

var _ engine.Observer = (*Notifier)(nil)
