package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
)

type stubSyncStore struct {
	mu      gosync.Mutex
	records map[string]*domain.SyncRecord
	failing bool
}

func newStubSyncStore() *stubSyncStore {
	return &stubSyncStore{records: make(map[string]*domain.SyncRecord)}
}

func (s *stubSyncStore) key(userID, notificationID string) string {
	return userID + "/" + notificationID
}

func (s *stubSyncStore) Upsert(_ context.Context, record *domain.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("store down")
	}
	clone := *record
	s.records[s.key(record.UserID, record.NotificationID)] = &clone
	return nil
}

func (s *stubSyncStore) Get(_ context.Context, userID, notificationID string) (*domain.SyncRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[s.key(userID, notificationID)]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *stubSyncStore) Delete(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, s.key(userID, notificationID))
	return nil
}

func (s *stubSyncStore) ListForUser(_ context.Context, userID string) ([]*domain.SyncRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SyncRecord
	for _, record := range s.records {
		if record.UserID == userID {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

type stubChannel struct {
	mu            gosync.Mutex
	state         domain.ConnectionState
	published     []domain.RemoteEvent
	handler       func(event domain.RemoteEvent)
	onStateChange func(state domain.ConnectionState)
	failCount     int
}

func newStubChannel() *stubChannel {
	return &stubChannel{state: domain.ConnectionStateConnected}
}

func (c *stubChannel) Publish(_ context.Context, event domain.RemoteEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCount > 0 {
		c.failCount--
		return errors.New("link flapped")
	}
	c.published = append(c.published, event)
	return nil
}

func (c *stubChannel) Subscribe(_ context.Context, handler func(event domain.RemoteEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	return nil
}

func (c *stubChannel) ConnectionState() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *stubChannel) SetStateChangeFunc(f func(state domain.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = f
}

func (c *stubChannel) Close() error {
	return nil
}

func (c *stubChannel) setState(state domain.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	hook := c.onStateChange
	c.mu.Unlock()

	if hook != nil {
		hook(state)
	}
}

func (c *stubChannel) setFailCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failCount = n
}

func (c *stubChannel) events() []domain.RemoteEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.RemoteEvent, len(c.published))
	copy(out, c.published)
	return out
}

func (c *stubChannel) inject(event domain.RemoteEvent) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

func testSyncConfig() *config.SyncConfig {
	return &config.SyncConfig{
		Channel:         "notify:sync",
		OfflineQueueCap: 3,
		MaxRetries:      3,
		RetryBackoff:    500 * time.Millisecond,
	}
}

func newTestCoordinator(t *testing.T, cfg *config.SyncConfig) (*Coordinator, *stubSyncStore, *stubChannel, *clock.Fake) {
	t.Helper()
	store := newStubSyncStore()
	channel := newStubChannel()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewCoordinator(cfg, "user-1", domain.DeviceDescriptor{Class: domain.DeviceDesktop}, store, channel, clk, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, store, channel, clk
}

func highPriorityRequest(id string) *domain.NotificationRequest {
	return &domain.NotificationRequest{
		ID:       id,
		Category: domain.CategoryTask,
		Type:     domain.TypeInfo,
		Priority: domain.PriorityHigh,
		Message:  "Deadline moved",
	}
}

func TestMirrorCreated_HighPriorityOnly(t *testing.T) {
	c, store, channel, _ := newTestCoordinator(t, testSyncConfig())
	ctx := context.Background()

	c.MirrorCreated(ctx, highPriorityRequest("n-1"))

	low := highPriorityRequest("n-2")
	low.Priority = domain.PriorityNormal
	c.MirrorCreated(ctx, low)

	if _, err := store.Get(ctx, "user-1", "n-1"); err != nil {
		t.Fatalf("high priority record not mirrored: %v", err)
	}
	if _, err := store.Get(ctx, "user-1", "n-2"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("normal priority should not be mirrored, got err=%v", err)
	}

	events := channel.events()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].Kind != domain.RemoteEventInsert {
		t.Errorf("kind = %v, want insert", events[0].Kind)
	}
	if events[0].SessionID != c.SessionID() {
		t.Errorf("event session %q does not match coordinator session %q", events[0].SessionID, c.SessionID())
	}
}

func TestMarkRead_PublishesUpdate(t *testing.T) {
	c, store, channel, clk := newTestCoordinator(t, testSyncConfig())
	ctx := context.Background()

	c.MirrorCreated(ctx, highPriorityRequest("n-1"))
	clk.Advance(2 * time.Second)
	c.MarkRead(ctx, "n-1")

	record, err := store.Get(ctx, "user-1", "n-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Action != domain.SyncActionRead {
		t.Errorf("action = %v, want read", record.Action)
	}
	if !record.UpdatedAt.After(record.CreatedAt) {
		t.Errorf("updated_at should advance past created_at")
	}

	events := channel.events()
	if len(events) != 2 || events[1].Kind != domain.RemoteEventUpdate {
		t.Fatalf("expected insert then update, got %+v", events)
	}
}

func TestMarkRead_UnmirroredIsSkipped(t *testing.T) {
	c, _, channel, _ := newTestCoordinator(t, testSyncConfig())

	c.MarkRead(context.Background(), "never-mirrored")

	if got := len(channel.events()); got != 0 {
		t.Errorf("published %d events, want 0", got)
	}
}

func TestHandleRemote_EchoSuppressed(t *testing.T) {
	c, _, channel, _ := newTestCoordinator(t, testSyncConfig())

	var received []*domain.SyncRecord
	c.SetRemoteNotificationFunc(func(record *domain.SyncRecord) {
		received = append(received, record)
	})

	record := &domain.SyncRecord{
		UserID:         "user-1",
		NotificationID: "n-1",
		Notification:   *highPriorityRequest("n-1"),
		Action:         domain.SyncActionCreated,
	}

	// Own echo: ignored.
	channel.inject(domain.RemoteEvent{Kind: domain.RemoteEventInsert, SessionID: c.SessionID(), Record: record})
	if len(received) != 0 {
		t.Fatalf("own echo should be suppressed")
	}

	// Another device: dispatched.
	channel.inject(domain.RemoteEvent{Kind: domain.RemoteEventInsert, SessionID: "other-session", Record: record})
	if len(received) != 1 {
		t.Fatalf("remote insert should reach the hook, got %d calls", len(received))
	}
}

func TestHandleRemote_StateTransitions(t *testing.T) {
	c, _, channel, _ := newTestCoordinator(t, testSyncConfig())

	var states []domain.SyncAction
	c.SetRemoteStateFunc(func(record *domain.SyncRecord) {
		states = append(states, record.Action)
	})

	base := &domain.SyncRecord{UserID: "user-1", NotificationID: "n-1"}

	read := *base
	read.Action = domain.SyncActionRead
	channel.inject(domain.RemoteEvent{Kind: domain.RemoteEventUpdate, SessionID: "other", Record: &read})

	created := *base
	created.Action = domain.SyncActionCreated
	channel.inject(domain.RemoteEvent{Kind: domain.RemoteEventUpdate, SessionID: "other", Record: &created})

	channel.inject(domain.RemoteEvent{Kind: domain.RemoteEventDelete, SessionID: "other", Record: base})

	want := []domain.SyncAction{domain.SyncActionRead, domain.SyncActionDismissed}
	if len(states) != len(want) {
		t.Fatalf("state hook calls = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestHandleRemote_Broadcast(t *testing.T) {
	c, _, channel, _ := newTestCoordinator(t, testSyncConfig())

	var msgs []*domain.BroadcastMessage
	c.SetBroadcastFunc(func(msg *domain.BroadcastMessage) {
		msgs = append(msgs, msg)
	})

	channel.inject(domain.RemoteEvent{
		Kind:      domain.RemoteEventBroadcast,
		SessionID: "other",
		Broadcast: &domain.BroadcastMessage{Kind: domain.BroadcastModeChange, Mode: "focus"},
	})

	if len(msgs) != 1 || msgs[0].Mode != "focus" {
		t.Fatalf("broadcast hook = %+v, want one focus mode change", msgs)
	}
}

func TestOfflineQueue_BoundedDropOldest(t *testing.T) {
	cfg := testSyncConfig()
	c, _, channel, _ := newTestCoordinator(t, cfg)
	ctx := context.Background()

	channel.setState(domain.ConnectionStateDisconnected)

	for i := 0; i < 5; i++ {
		c.MirrorCreated(ctx, highPriorityRequest(fmtID(i)))
	}

	if got := c.QueueDepth(); got != cfg.OfflineQueueCap {
		t.Fatalf("queue depth = %d, want %d", got, cfg.OfflineQueueCap)
	}

	// The state-change hook drains the queue on reconnection.
	channel.setState(domain.ConnectionStateConnected)

	events := channel.events()
	if len(events) != 3 {
		t.Fatalf("flushed %d events, want 3", len(events))
	}
	// The two oldest writes were evicted; the survivors flush in order.
	for i, wantID := range []string{"n-2", "n-3", "n-4"} {
		if got := events[i].Record.NotificationID; got != wantID {
			t.Errorf("event[%d] id = %q, want %q", i, got, wantID)
		}
	}
}

func TestReconnected_RetriesWithBackoff(t *testing.T) {
	cfg := testSyncConfig()
	c, _, channel, clk := newTestCoordinator(t, cfg)
	ctx := context.Background()

	channel.setState(domain.ConnectionStateDisconnected)
	c.MirrorCreated(ctx, highPriorityRequest("n-1"))

	channel.setFailCount(2)
	channel.setState(domain.ConnectionStateConnected)

	if got := len(channel.events()); got != 0 {
		t.Fatalf("first attempt should fail, got %d events", got)
	}

	// Second attempt fires after the base backoff and fails again.
	clk.Advance(500 * time.Millisecond)
	if got := len(channel.events()); got != 0 {
		t.Fatalf("second attempt should fail, got %d events", got)
	}

	// Third attempt fires after the doubled backoff and succeeds.
	clk.Advance(time.Second)
	events := channel.events()
	if len(events) != 1 || events[0].Record.NotificationID != "n-1" {
		t.Fatalf("expected the queued write to flush, got %+v", events)
	}
	if got := c.QueueDepth(); got != 0 {
		t.Errorf("queue depth = %d, want 0", got)
	}
}

func TestReconnected_DropsAfterMaxRetries(t *testing.T) {
	cfg := testSyncConfig()
	c, _, channel, clk := newTestCoordinator(t, cfg)
	ctx := context.Background()

	channel.setState(domain.ConnectionStateDisconnected)
	c.MirrorCreated(ctx, highPriorityRequest("n-1"))

	channel.setFailCount(10)
	channel.setState(domain.ConnectionStateConnected)

	clk.Advance(500 * time.Millisecond)
	clk.Advance(time.Second)
	clk.Advance(2 * time.Second)

	if got := c.QueueDepth(); got != 0 {
		t.Errorf("write should be dropped after %d attempts, depth = %d", cfg.MaxRetries, got)
	}
	if got := len(channel.events()); got != 0 {
		t.Errorf("no events should have been published, got %d", got)
	}
}

func TestMergeSettings(t *testing.T) {
	older := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)

	local := domain.Settings{MaxPerMinute: 5, BatchingEnabled: true, Mode: "normal"}
	remote := domain.Settings{MaxPerMinute: 8, BatchingEnabled: false, Mode: "busy"}

	tests := []struct {
		name     string
		localAt  time.Time
		remoteAt time.Time
		want     domain.Settings
		wantAt   time.Time
		wantDir  MergeDirection
	}{
		{"remote newer wins", older, newer, remote, newer, MergeApplyRemote},
		{"local newer pushes", newer, older, local, newer, MergePushLocal},
		{"equal is a no-op", older, older, local, older, MergeNoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotAt, dir := MergeSettings(local, tt.localAt, remote, tt.remoteAt)
			if dir != tt.wantDir {
				t.Errorf("direction = %v, want %v", dir, tt.wantDir)
			}
			if got != tt.want {
				t.Errorf("settings = %+v, want %+v", got, tt.want)
			}
			if !gotAt.Equal(tt.wantAt) {
				t.Errorf("updatedAt = %v, want %v", gotAt, tt.wantAt)
			}
		})
	}
}

func fmtID(i int) string {
	return "n-" + string(rune('0'+i))
}
