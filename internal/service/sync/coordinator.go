// Package sync mirrors notification state across the user's devices
// through a remote store and a lightweight event channel. Each running
// session tags its outbound events with a session id so it can ignore
// its own echoes.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/observability/metrics"
)

// RemoteNotificationFunc receives a notification first shown on
// another device.
type RemoteNotificationFunc func(record *domain.SyncRecord)

// RemoteStateFunc receives read/dismissed transitions made elsewhere.
type RemoteStateFunc func(record *domain.SyncRecord)

// BroadcastFunc receives non-persisted broadcast messages.
type BroadcastFunc func(msg *domain.BroadcastMessage)

// Coordinator owns the outbound mirror path and the inbound dispatch
// for one user session. Only notifications at high priority and above
// are mirrored; the rest stay device-local.
type Coordinator struct {
	store   domain.SyncStore
	channel domain.RemoteChannel
	clk     clock.Clock

	userID    string
	sessionID string
	device    domain.DeviceDescriptor

	queue      *offlineQueue
	maxRetries int
	backoff    time.Duration

	notifyMetrics *metrics.NotifyMetrics

	mu       gosync.Mutex
	draining bool
	ctx      context.Context

	onRemoteNotification RemoteNotificationFunc
	onRemoteState        RemoteStateFunc
	onBroadcast          BroadcastFunc
}

// NewCoordinator wires a coordinator for the given user. A fresh
// session id is minted per process so echo suppression works across
// restarts.
func NewCoordinator(
	cfg *config.SyncConfig,
	userID string,
	device domain.DeviceDescriptor,
	store domain.SyncStore,
	channel domain.RemoteChannel,
	clk clock.Clock,
	notifyMetrics *metrics.NotifyMetrics,
) *Coordinator {
	return &Coordinator{
		store:         store,
		channel:       channel,
		clk:           clk,
		userID:        userID,
		sessionID:     uuid.NewString(),
		device:        device,
		queue:         newOfflineQueue(cfg.OfflineQueueCap),
		maxRetries:    cfg.MaxRetries,
		backoff:       cfg.RetryBackoff,
		notifyMetrics: notifyMetrics,
		ctx:           context.Background(),
	}
}

// SessionID returns this session's echo-suppression id.
func (c *Coordinator) SessionID() string {
	return c.sessionID
}

// SetRemoteNotificationFunc registers the cross-device toast hook.
func (c *Coordinator) SetRemoteNotificationFunc(f RemoteNotificationFunc) {
	c.onRemoteNotification = f
}

// SetRemoteStateFunc registers the remote read/dismiss hook.
func (c *Coordinator) SetRemoteStateFunc(f RemoteStateFunc) {
	c.onRemoteState = f
}

// SetBroadcastFunc registers the broadcast message hook.
func (c *Coordinator) SetBroadcastFunc(f BroadcastFunc) {
	c.onBroadcast = f
}

// Start subscribes to the remote channel and begins dispatching
// inbound events. A link that comes back up flushes the offline queue.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.channel.SetStateChangeFunc(func(state domain.ConnectionState) {
		if state == domain.ConnectionStateConnected {
			c.Reconnected()
		}
	})

	if err := c.channel.Subscribe(ctx, c.handleRemote); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSyncSubscriptionFailed, err)
	}

	slog.InfoContext(ctx, "sync coordinator started",
		slog.String("user_id", c.userID),
		slog.String("session_id", c.sessionID),
	)
	return nil
}

// Close shuts down the remote channel.
func (c *Coordinator) Close() error {
	return c.channel.Close()
}

// QueueDepth returns the number of writes waiting for reconnection.
func (c *Coordinator) QueueDepth() int {
	return c.queue.depth()
}

func mirrorEligible(priority domain.Priority) bool {
	return priority == domain.PriorityHigh || priority == domain.PriorityCritical
}

// MirrorCreated mirrors a newly shown notification to other devices.
// Notifications below high priority are not mirrored.
func (c *Coordinator) MirrorCreated(ctx context.Context, req *domain.NotificationRequest) {
	if req == nil || !mirrorEligible(req.Priority) {
		return
	}

	now := c.clk.Now()
	record := &domain.SyncRecord{
		UserID:         c.userID,
		NotificationID: req.ID,
		SessionID:      c.sessionID,
		Notification:   *req,
		Action:         domain.SyncActionCreated,
		Device:         c.device,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.send(ctx, &queuedWrite{
		event:  domain.RemoteEvent{Kind: domain.RemoteEventInsert, SessionID: c.sessionID, Record: record},
		record: record,
	})
}

// MarkRead mirrors a local read transition. Unmirrored notifications
// are silently skipped.
func (c *Coordinator) MarkRead(ctx context.Context, notificationID string) {
	c.transition(ctx, notificationID, domain.SyncActionRead)
}

// MarkDismissed mirrors a local dismissal.
func (c *Coordinator) MarkDismissed(ctx context.Context, notificationID string) {
	c.transition(ctx, notificationID, domain.SyncActionDismissed)
}

func (c *Coordinator) transition(ctx context.Context, notificationID string, action domain.SyncAction) {
	record, err := c.store.Get(ctx, c.userID, notificationID)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			slog.WarnContext(ctx, "sync record lookup failed",
				slog.String("notification_id", notificationID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	record.Action = action
	record.SessionID = c.sessionID
	record.UpdatedAt = c.clk.Now()
	c.send(ctx, &queuedWrite{
		event:  domain.RemoteEvent{Kind: domain.RemoteEventUpdate, SessionID: c.sessionID, Record: record},
		record: record,
	})
}

// Remove deletes the mirrored record and tells other devices.
func (c *Coordinator) Remove(ctx context.Context, notificationID string) {
	if err := c.store.Delete(ctx, c.userID, notificationID); err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		slog.WarnContext(ctx, "sync record delete failed",
			slog.String("notification_id", notificationID),
			slog.String("error", err.Error()),
		)
	}
	c.send(ctx, &queuedWrite{
		event: domain.RemoteEvent{
			Kind:      domain.RemoteEventDelete,
			SessionID: c.sessionID,
			Record:    &domain.SyncRecord{UserID: c.userID, NotificationID: notificationID, SessionID: c.sessionID},
		},
	})
}

// BroadcastModeChange tells other devices the local mode switched.
func (c *Coordinator) BroadcastModeChange(ctx context.Context, mode string) {
	c.send(ctx, &queuedWrite{
		event: domain.RemoteEvent{
			Kind:      domain.RemoteEventBroadcast,
			SessionID: c.sessionID,
			Broadcast: &domain.BroadcastMessage{
				Kind:      domain.BroadcastModeChange,
				SessionID: c.sessionID,
				Mode:      mode,
				UpdatedAt: c.clk.Now(),
			},
		},
	})
}

// BroadcastSettings ships a settings payload with its update timestamp
// so receivers can run the last-writer-wins merge.
func (c *Coordinator) BroadcastSettings(ctx context.Context, settings []byte, updatedAt time.Time) {
	c.send(ctx, &queuedWrite{
		event: domain.RemoteEvent{
			Kind:      domain.RemoteEventBroadcast,
			SessionID: c.sessionID,
			Broadcast: &domain.BroadcastMessage{
				Kind:      domain.BroadcastSettingsUpdate,
				SessionID: c.sessionID,
				Settings:  settings,
				UpdatedAt: updatedAt,
			},
		},
	})
}

// Reconnected flushes the offline queue. The channel's state-change
// hook invokes it whenever the link comes back up.
func (c *Coordinator) Reconnected() {
	c.drain()
}

func (c *Coordinator) send(ctx context.Context, w *queuedWrite) {
	if c.channel.ConnectionState() == domain.ConnectionStateDisconnected {
		c.enqueue(ctx, w)
		return
	}

	if err := c.sendOutbound(ctx, w); err != nil {
		slog.WarnContext(ctx, "sync write failed, queueing",
			slog.String("kind", string(w.event.Kind)),
			slog.String("error", err.Error()),
		)
		c.enqueue(ctx, w)
		return
	}

	if c.notifyMetrics != nil {
		c.notifyMetrics.RecordSyncOutbound(ctx, "sent")
	}
}

func (c *Coordinator) enqueue(ctx context.Context, w *queuedWrite) {
	evicted := c.queue.push(w)
	if c.notifyMetrics != nil {
		if !evicted {
			c.notifyMetrics.AddSyncQueueDepth(ctx, 1)
		}
		c.notifyMetrics.RecordSyncOutbound(ctx, "queued")
	}
	if evicted {
		slog.WarnContext(ctx, "offline queue full, dropped oldest write",
			slog.Int("capacity", c.queue.capacity),
		)
	}
}

func (c *Coordinator) sendOutbound(ctx context.Context, w *queuedWrite) error {
	if w.record != nil {
		if err := c.store.Upsert(ctx, w.record); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSyncWriteFailed, err)
		}
	}
	if err := c.channel.Publish(ctx, w.event); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSyncWriteFailed, err)
	}
	return nil
}

// drain works the offline queue front to back. Each item gets a
// bounded number of attempts with exponential backoff before it is
// dropped for good.
func (c *Coordinator) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	ctx := c.ctx
	c.mu.Unlock()

	c.drainStep(ctx)
}

func (c *Coordinator) drainStep(ctx context.Context) {
	for {
		item, ok := c.queue.peek()
		if !ok {
			c.mu.Lock()
			c.draining = false
			c.mu.Unlock()
			return
		}

		err := c.sendOutbound(ctx, item)
		if err == nil {
			c.queue.popFront()
			if c.notifyMetrics != nil {
				c.notifyMetrics.AddSyncQueueDepth(ctx, -1)
				c.notifyMetrics.RecordSyncOutbound(ctx, "flushed")
			}
			continue
		}

		item.attempts++
		if item.attempts >= c.maxRetries {
			slog.WarnContext(ctx, "queued sync write dropped after retries",
				slog.String("kind", string(item.event.Kind)),
				slog.Int("attempts", item.attempts),
			)
			c.queue.popFront()
			if c.notifyMetrics != nil {
				c.notifyMetrics.AddSyncQueueDepth(ctx, -1)
				c.notifyMetrics.RecordSyncOutbound(ctx, "dropped")
			}
			continue
		}

		delay := c.backoff << (item.attempts - 1)
		c.clk.AfterFunc(delay, func() {
			c.drainStep(ctx)
		})
		return
	}
}

// handleRemote dispatches one inbound channel event. Events published
// by this session are echoes and are ignored.
func (c *Coordinator) handleRemote(event domain.RemoteEvent) {
	if event.SessionID == c.sessionID {
		return
	}

	ctx := c.ctx

	switch event.Kind {
	case domain.RemoteEventInsert:
		if event.Record == nil {
			return
		}
		slog.DebugContext(ctx, "remote notification received",
			slog.String("notification_id", event.Record.NotificationID),
			slog.String("origin_session", event.SessionID),
		)
		if c.onRemoteNotification != nil && mirrorEligible(event.Record.Notification.Priority) {
			c.onRemoteNotification(event.Record)
		}
	case domain.RemoteEventUpdate:
		if event.Record == nil {
			return
		}
		if event.Record.Action == domain.SyncActionRead || event.Record.Action == domain.SyncActionDismissed {
			if c.onRemoteState != nil {
				c.onRemoteState(event.Record)
			}
		}
	case domain.RemoteEventDelete:
		if event.Record == nil {
			return
		}
		if c.onRemoteState != nil {
			record := *event.Record
			record.Action = domain.SyncActionDismissed
			c.onRemoteState(&record)
		}
	case domain.RemoteEventBroadcast:
		if event.Broadcast == nil {
			return
		}
		if c.onBroadcast != nil {
			c.onBroadcast(event.Broadcast)
		}
	}
}
