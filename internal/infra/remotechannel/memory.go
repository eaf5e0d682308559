// Package remotechannel provides the cross-device event transports: a
// redis pub/sub implementation for real deployments and an in-memory
// hub for tests and local-only mode.
package remotechannel

import (
	"context"
	"sync"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// Memory is an in-process RemoteChannel. Publish dispatches to every
// subscribed handler synchronously, which keeps tests deterministic.
type Memory struct {
	mu            sync.RWMutex
	handlers      []func(event domain.RemoteEvent)
	state         domain.ConnectionState
	onStateChange func(state domain.ConnectionState)
	closed        bool
}

func NewMemory() *Memory {
	return &Memory{state: domain.ConnectionStateConnected}
}

func (m *Memory) Publish(_ context.Context, event domain.RemoteEvent) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return domain.ErrChannelClosed
	}
	handlers := make([]func(event domain.RemoteEvent), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, handler func(event domain.RemoteEvent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrChannelClosed
	}
	m.handlers = append(m.handlers, handler)
	return nil
}

func (m *Memory) ConnectionState() domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Memory) SetStateChangeFunc(f func(state domain.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = f
}

// SetConnectionState simulates a link change.
func (m *Memory) SetConnectionState(state domain.ConnectionState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	hook := m.onStateChange
	m.mu.Unlock()

	if hook != nil {
		hook(state)
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.state = domain.ConnectionStateDisconnected
	m.handlers = nil
	return nil
}
