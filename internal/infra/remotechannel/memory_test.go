package remotechannel

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

func TestMemory_PublishReachesAllSubscribers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var first, second []domain.RemoteEvent
	if err := m.Subscribe(ctx, func(e domain.RemoteEvent) { first = append(first, e) }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := m.Subscribe(ctx, func(e domain.RemoteEvent) { second = append(second, e) }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	event := domain.RemoteEvent{Kind: domain.RemoteEventInsert, SessionID: "s-1"}
	if err := m.Publish(ctx, event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("delivery counts = %d, %d, want 1 each", len(first), len(second))
	}
	if first[0].SessionID != "s-1" {
		t.Errorf("payload not preserved: %+v", first[0])
	}
}

func TestMemory_ConnectionState(t *testing.T) {
	m := NewMemory()

	if got := m.ConnectionState(); got != domain.ConnectionStateConnected {
		t.Fatalf("initial state = %v, want connected", got)
	}

	m.SetConnectionState(domain.ConnectionStateDisconnected)
	if got := m.ConnectionState(); got != domain.ConnectionStateDisconnected {
		t.Fatalf("state = %v, want disconnected", got)
	}
}

func TestMemory_StateChangeHook(t *testing.T) {
	m := NewMemory()

	var transitions []domain.ConnectionState
	m.SetStateChangeFunc(func(state domain.ConnectionState) {
		transitions = append(transitions, state)
	})

	m.SetConnectionState(domain.ConnectionStateDisconnected)
	// Setting the same state again is not a transition.
	m.SetConnectionState(domain.ConnectionStateDisconnected)
	m.SetConnectionState(domain.ConnectionStateConnected)

	want := []domain.ConnectionState{domain.ConnectionStateDisconnected, domain.ConnectionStateConnected}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestMemory_ClosedChannelRejectsUse(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := m.Publish(ctx, domain.RemoteEvent{Kind: domain.RemoteEventInsert}); !errors.Is(err, domain.ErrChannelClosed) {
		t.Errorf("Publish after close = %v, want ErrChannelClosed", err)
	}
	if err := m.Subscribe(ctx, func(domain.RemoteEvent) {}); !errors.Is(err, domain.ErrChannelClosed) {
		t.Errorf("Subscribe after close = %v, want ErrChannelClosed", err)
	}
	if got := m.ConnectionState(); got != domain.ConnectionStateDisconnected {
		t.Errorf("state after close = %v, want disconnected", got)
	}
}
