package remotechannel

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// resubscribeInterval paces the reconnection attempts after the
// pub/sub stream drops.
const resubscribeInterval = 5 * time.Second

// Redis carries RemoteEvents over a redis pub/sub channel. The channel
// is not persisted; subscribers only see events published while they
// are connected, which matches the broadcast contract. A dropped
// stream is resubscribed in the background until Close.
type Redis struct {
	client  *redis.Client
	channel string

	mu            sync.Mutex
	pubsub        *redis.PubSub
	state         domain.ConnectionState
	onStateChange func(state domain.ConnectionState)
	closed        bool
}

func NewRedis(client *redis.Client, channel string) *Redis {
	return &Redis{
		client:  client,
		channel: channel,
		state:   domain.ConnectionStateDisconnected,
	}
}

func (r *Redis) Publish(ctx context.Context, event domain.RemoteEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Subscribe starts a receive loop on the pub/sub channel. The handler
// runs on the loop goroutine; it must not block.
func (r *Redis) Subscribe(ctx context.Context, handler func(event domain.RemoteEvent)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if r.pubsub != nil {
		r.mu.Unlock()
		return domain.ErrSyncSubscriptionFailed
	}

	pubsub := r.client.Subscribe(ctx, r.channel)
	r.pubsub = pubsub
	r.mu.Unlock()

	// Wait for the subscription to be confirmed before reporting
	// connected.
	if _, err := pubsub.Receive(ctx); err != nil {
		r.mu.Lock()
		r.pubsub = nil
		r.mu.Unlock()
		_ = pubsub.Close()
		return err
	}

	r.setState(domain.ConnectionStateConnected)

	go r.receiveLoop(ctx, pubsub, handler)
	return nil
}

func (r *Redis) receiveLoop(ctx context.Context, pubsub *redis.PubSub, handler func(event domain.RemoteEvent)) {
	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.setState(domain.ConnectionStateDisconnected)
				r.mu.Lock()
				closed := r.closed
				r.mu.Unlock()
				if !closed {
					go r.resubscribeLoop(ctx, handler)
				}
				return
			}
			var event domain.RemoteEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(ctx, "malformed remote event dropped",
					slog.String("error", err.Error()),
				)
				continue
			}
			handler(event)
		case <-ctx.Done():
			r.setState(domain.ConnectionStateDisconnected)
			return
		}
	}
}

// resubscribeLoop re-establishes the pub/sub stream after an
// unexpected drop. It keeps trying on an interval until the channel is
// closed or the context ends.
func (r *Redis) resubscribeLoop(ctx context.Context, handler func(event domain.RemoteEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeInterval):
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		pubsub := r.client.Subscribe(ctx, r.channel)
		r.pubsub = pubsub
		r.mu.Unlock()

		if _, err := pubsub.Receive(ctx); err != nil {
			slog.WarnContext(ctx, "resubscribe attempt failed",
				slog.String("error", err.Error()),
			)
			r.mu.Lock()
			r.pubsub = nil
			r.mu.Unlock()
			_ = pubsub.Close()
			continue
		}

		r.setState(domain.ConnectionStateConnected)
		go r.receiveLoop(ctx, pubsub, handler)
		return
	}
}

func (r *Redis) ConnectionState() domain.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Redis) SetStateChangeFunc(f func(state domain.ConnectionState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = f
}

func (r *Redis) setState(state domain.ConnectionState) {
	r.mu.Lock()
	if r.state == state {
		r.mu.Unlock()
		return
	}
	r.state = state
	hook := r.onStateChange
	r.mu.Unlock()

	if hook != nil {
		hook(state)
	}
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.state = domain.ConnectionStateDisconnected
	if r.pubsub != nil {
		return r.pubsub.Close()
	}
	return nil
}
