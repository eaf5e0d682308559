package sync

import (
	"sync"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// queuedWrite is one outbound mirror operation waiting for the remote
// link to come back.
type queuedWrite struct {
	event    domain.RemoteEvent
	record   *domain.SyncRecord
	attempts int
}

// offlineQueue buffers outbound writes while the channel is down. It
// is bounded; when full the oldest entry is dropped so recent state
// always survives.
type offlineQueue struct {
	mu       sync.Mutex
	items    []*queuedWrite
	capacity int
	dropped  int
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{capacity: capacity}
}

// push appends a write, evicting the oldest entry when the queue is at
// capacity. It reports whether an eviction happened.
func (q *offlineQueue) push(w *queuedWrite) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.items) >= q.capacity {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, w)
	return evicted
}

// peek returns the head without removing it.
func (q *offlineQueue) peek() (*queuedWrite, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// popFront removes the head.
func (q *offlineQueue) popFront() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return
	}
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
}

func (q *offlineQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *offlineQueue) evictions() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
