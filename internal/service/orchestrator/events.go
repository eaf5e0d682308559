package orchestrator

import (
	"sync"
	"time"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// Observability event names emitted on the subscriber channel.
const (
	EventShown     = "notification:shown"
	EventClicked   = "notification:clicked"
	EventDismissed = "notification:dismissed"
	EventAction    = "notification:action"
	EventBatch     = "notification:batch"
)

// Event is one observability event with its full payload.
type Event struct {
	Name      string
	Request   domain.NotificationRequest
	Placement domain.Placement
	BatchSize int
	Timestamp time.Time
}

// subscriberBufferSize bounds each subscriber channel; a slow consumer
// loses events rather than blocking the delivery path.
const subscriberBufferSize = 64

type eventBus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	closed      bool
}

func newEventBus() *eventBus {
	return &eventBus{subscribers: make(map[chan Event]struct{})}
}

// subscribe registers a consumer. The returned cancel func drops the
// subscription and closes the channel.
func (b *eventBus) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// publish fans the event out without blocking.
func (b *eventBus) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *eventBus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan Event]struct{})
}
