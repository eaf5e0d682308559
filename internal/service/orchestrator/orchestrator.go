// Package orchestrator composes the admission, batching, position,
// sync, and analytics services behind one facade. Callers issue
// notification requests and interaction feedback here; everything else
// is wiring.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/service/admission"
	"github.com/pulsedesk/notification-engine/internal/service/analytics"
	"github.com/pulsedesk/notification-engine/internal/service/batch"
	"github.com/pulsedesk/notification-engine/internal/service/behavior"
	"github.com/pulsedesk/notification-engine/internal/service/position"
	syncsvc "github.com/pulsedesk/notification-engine/internal/service/sync"
)

// Orchestrator routes notification requests through admission and
// batching into rendering, and fans interaction feedback back out to
// the learning model, analytics, and cross-device sync.
type Orchestrator struct {
	clk       clock.Clock
	admission *admission.Controller
	batcher   *batch.Scheduler
	behavior  *behavior.Manager
	position  *position.Resolver
	sync      *syncsvc.Coordinator
	analytics *analytics.Recorder
	settings  domain.SettingsStore

	bus *eventBus

	mu     sync.Mutex
	active map[string]*domain.NotificationRequest
}

// New wires the services together. The sync coordinator and analytics
// recorder may be nil for local-only operation.
func New(
	clk clock.Clock,
	admissionCtl *admission.Controller,
	batcher *batch.Scheduler,
	behaviorMgr *behavior.Manager,
	resolver *position.Resolver,
	coordinator *syncsvc.Coordinator,
	recorder *analytics.Recorder,
	settings domain.SettingsStore,
) *Orchestrator {
	o := &Orchestrator{
		clk:       clk,
		admission: admissionCtl,
		batcher:   batcher,
		behavior:  behaviorMgr,
		position:  resolver,
		sync:      coordinator,
		analytics: recorder,
		settings:  settings,
		bus:       newEventBus(),
		active:    make(map[string]*domain.NotificationRequest),
	}

	o.admission.SetDeliverFunc(o.deliver)
	o.batcher.SetRenderFunc(o.render)

	if o.sync != nil {
		o.sync.SetRemoteNotificationFunc(o.onRemoteNotification)
		o.sync.SetRemoteStateFunc(o.onRemoteState)
		o.sync.SetBroadcastFunc(o.onBroadcast)
	}
	return o
}

// Start loads persisted state and brings up the background services.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.behavior.Load(ctx); err != nil {
		return fmt.Errorf("load behavior profiles: %w", err)
	}

	if o.settings != nil {
		settings, _, err := o.settings.LoadSettings(ctx)
		if err == nil {
			o.applySettings(settings)
		} else if !errors.Is(err, domain.ErrSettingsNotFound) {
			slog.WarnContext(ctx, "settings unavailable, using defaults",
				slog.String("error", err.Error()),
			)
		}
	}

	if o.analytics != nil {
		o.analytics.Start(ctx)
	}

	if o.sync != nil {
		if err := o.sync.Start(ctx); err != nil {
			// Degraded local-only mode; everything else keeps working.
			slog.WarnContext(ctx, "sync unavailable, running local-only",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Stop flushes persisted state and shuts the background services down.
func (o *Orchestrator) Stop(ctx context.Context) {
	if err := o.behavior.Flush(ctx); err != nil {
		slog.WarnContext(ctx, "behavior flush failed", slog.String("error", err.Error()))
	}
	if o.analytics != nil {
		o.analytics.Stop(ctx)
	}
	if o.sync != nil {
		if err := o.sync.Close(); err != nil {
			slog.WarnContext(ctx, "sync close failed", slog.String("error", err.Error()))
		}
	}
	o.bus.close()
}

// Subscribe returns a channel of observability events. Slow consumers
// lose events; they never block delivery.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.bus.subscribe()
}

// UpdateViewport feeds fresh viewport signals to placement and
// analytics.
func (o *Orchestrator) UpdateViewport(state domain.ViewportState) {
	o.position.UpdateViewport(state)
	if o.analytics != nil {
		o.analytics.UpdateViewport(domain.Viewport{Width: state.Width, Height: state.Height})
	}
}

// Notify requests a notification. It returns the notification id when
// the request is admitted or deferred, and ErrAdmissionRejected when
// rate limits drop it.
func (o *Orchestrator) Notify(ctx context.Context, typ domain.Type, message string, opts Options) (string, error) {
	req, err := o.buildRequest(typ, message, opts)
	if err != nil {
		return "", err
	}

	decision := o.admission.RequestAdmission(ctx, req)
	switch decision.Outcome {
	case domain.OutcomeAccepted:
		o.deliver(ctx, req)
		return req.ID, nil
	case domain.OutcomeDeferred:
		return req.ID, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrAdmissionRejected, decision.Reason)
	}
}

// Category-scoped entry points. Each fixes the category and falls back
// to the category's prebuilt actions when the caller supplies none.

func (o *Orchestrator) NotifyAuth(ctx context.Context, typ domain.Type, message string, opts Options) (string, error) {
	return o.notifyCategory(ctx, domain.CategoryAuth, typ, message, opts)
}

func (o *Orchestrator) NotifyClient(ctx context.Context, typ domain.Type, message string, opts Options) (string, error) {
	return o.notifyCategory(ctx, domain.CategoryClient, typ, message, opts)
}

func (o *Orchestrator) NotifyTask(ctx context.Context, typ domain.Type, message string, opts Options) (string, error) {
	return o.notifyCategory(ctx, domain.CategoryTask, typ, message, opts)
}

func (o *Orchestrator) NotifyAI(ctx context.Context, typ domain.Type, message string, opts Options) (string, error) {
	return o.notifyCategory(ctx, domain.CategoryAI, typ, message, opts)
}

func (o *Orchestrator) NotifyDocument(ctx context.Context, typ domain.Type, message string, opts Options) (string, error) {
	return o.notifyCategory(ctx, domain.CategoryDocument, typ, message, opts)
}

func (o *Orchestrator) notifyCategory(ctx context.Context, category domain.Category, typ domain.Type, message string, opts Options) (string, error) {
	opts.Category = category
	if len(opts.Actions) == 0 {
		opts.Actions = presetActions(category, opts.Context)
	}
	return o.Notify(ctx, typ, message, opts)
}

func (o *Orchestrator) buildRequest(typ domain.Type, message string, opts Options) (*domain.NotificationRequest, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid notification type %q", typ)
	}
	priority := opts.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("invalid priority %q", priority)
	}
	category := opts.Category
	if category == "" {
		category = domain.CategorySystem
	}

	actions := resolveActions(opts.Actions, opts.Context)
	for _, action := range actions {
		if err := action.Validate(); err != nil {
			return nil, fmt.Errorf("action %q: %w", action.Label, err)
		}
	}

	return &domain.NotificationRequest{
		ID:        uuid.NewString(),
		Category:  category,
		Type:      typ,
		Priority:  priority,
		Title:     opts.Title,
		Message:   message,
		Actions:   actions,
		Entity:    opts.Entity,
		Subtype:   opts.Subtype,
		Context:   opts.Context,
		Duration:  opts.Duration,
		Timestamp: o.clk.Now(),
	}, nil
}

// Configure mutates the runtime thresholds and mirrors the new
// settings to other devices.
func (o *Orchestrator) Configure(ctx context.Context, settings domain.Settings) {
	o.applySettings(settings)

	now := o.clk.Now()
	if o.settings != nil {
		if err := o.settings.SaveSettings(ctx, settings, now); err != nil {
			slog.WarnContext(ctx, "settings save failed", slog.String("error", err.Error()))
		}
	}

	if o.sync != nil {
		payload, err := json.Marshal(settings)
		if err == nil {
			o.sync.BroadcastSettings(ctx, payload, now)
		}
	}
}

// SetMode switches the rendering mode (normal, busy, focus) and tells
// other devices.
func (o *Orchestrator) SetMode(ctx context.Context, mode batch.Mode) {
	o.batcher.SetMode(mode)
	if o.sync != nil {
		o.sync.BroadcastModeChange(ctx, string(mode))
	}
}

// Mode returns the current rendering mode.
func (o *Orchestrator) Mode() batch.Mode {
	return o.batcher.Mode()
}

// Settings reports the currently applied runtime settings.
func (o *Orchestrator) Settings() domain.Settings {
	maxPer30s, maxPerMinute := o.admission.Caps()
	return domain.Settings{
		MaxPerMinute:    maxPerMinute,
		MaxPer30s:       maxPer30s,
		BatchingEnabled: o.batcher.Enabled(),
		Mode:            string(o.batcher.Mode()),
	}
}

func (o *Orchestrator) applySettings(settings domain.Settings) {
	if settings.MaxPer30s > 0 && settings.MaxPerMinute > 0 {
		o.admission.Configure(settings.MaxPer30s, settings.MaxPerMinute)
	}
	o.batcher.SetEnabled(settings.BatchingEnabled)
	if settings.Mode != "" {
		o.batcher.SetMode(batch.Mode(settings.Mode))
	}
}

// deliver moves an admitted request toward rendering.
func (o *Orchestrator) deliver(ctx context.Context, req *domain.NotificationRequest) {
	o.batcher.Submit(ctx, req)
}

// render is the terminal step of the delivery path. Sync and analytics
// side effects are isolated: an admitted notification always renders.
func (o *Orchestrator) render(ctx context.Context, req *domain.NotificationRequest) {
	placement := o.position.Resolve(req)

	o.mu.Lock()
	o.active[req.ID] = req
	o.mu.Unlock()

	if size := batch.BatchSize(req); size > 0 {
		if o.analytics != nil {
			o.analytics.RecordBatch(req, size)
		}
		if o.sync != nil {
			// A high-priority member keeps its cross-device mirror
			// even when it merges into a batch.
			for _, member := range req.Members {
				o.sync.MirrorCreated(ctx, member)
			}
		}
		o.bus.publish(Event{
			Name:      EventBatch,
			Request:   *req,
			Placement: placement,
			BatchSize: size,
			Timestamp: o.clk.Now(),
		})
		return
	}

	if o.analytics != nil {
		o.analytics.RecordShown(req)
	}
	if o.sync != nil {
		o.sync.MirrorCreated(ctx, req)
	}
	o.bus.publish(Event{
		Name:      EventShown,
		Request:   *req,
		Placement: placement,
		Timestamp: o.clk.Now(),
	})

	slog.DebugContext(ctx, "notification rendered",
		slog.String("notification_id", req.ID),
		slog.String("category", req.Category.String()),
		slog.String("anchor", string(placement.Anchor)),
	)
}

// Click records a user click on a rendered notification.
func (o *Orchestrator) Click(ctx context.Context, notificationID string) {
	req, ok := o.lookup(notificationID)
	if !ok {
		return
	}

	o.behavior.RecordInteraction(req.Category, true)
	if o.analytics != nil {
		o.analytics.RecordClicked(req)
	}
	if o.sync != nil {
		o.sync.MarkRead(ctx, req.ID)
	}
	o.bus.publish(Event{Name: EventClicked, Request: *req, Timestamp: o.clk.Now()})
}

// Dismiss records a manual dismissal and retires the notification.
func (o *Orchestrator) Dismiss(ctx context.Context, notificationID string) {
	req, ok := o.take(notificationID)
	if !ok {
		return
	}

	o.behavior.RecordDismissal(req.Category, true)
	if o.analytics != nil {
		o.analytics.RecordDismissed(req)
	}
	if o.sync != nil {
		o.sync.MarkDismissed(ctx, req.ID)
	}
	o.bus.publish(Event{Name: EventDismissed, Request: *req, Timestamp: o.clk.Now()})
}

// InvokeAction runs the named action on a rendered notification. A
// failing handler surfaces as a failure toast; it never propagates.
func (o *Orchestrator) InvokeAction(ctx context.Context, notificationID, label string) {
	req, ok := o.lookup(notificationID)
	if !ok {
		return
	}

	var action *domain.Action
	for i := range req.Actions {
		if req.Actions[i].Label == label {
			action = &req.Actions[i]
			break
		}
	}
	if action == nil {
		return
	}

	o.behavior.RecordInteraction(req.Category, true)
	if o.analytics != nil {
		o.analytics.RecordActioned(req)
	}
	o.bus.publish(Event{Name: EventAction, Request: *req, Timestamp: o.clk.Now()})

	switch action.Kind {
	case domain.ActionDismiss:
		o.Dismiss(ctx, notificationID)
	case domain.ActionSnooze:
		o.snooze(ctx, req, action.SnoozeFor)
	case domain.ActionCustom:
		if err := runHandler(ctx, action.Handler); err != nil {
			slog.WarnContext(ctx, "action handler failed",
				slog.String("notification_id", req.ID),
				slog.String("action", label),
				slog.String("error", err.Error()),
			)
			o.failureToast(ctx, req, label)
		}
	case domain.ActionNavigate, domain.ActionInvokeEndpoint, domain.ActionOpenModal:
		// Dispatched to the consumer through the action event above.
	}
}

// runHandler converts a panicking action handler into an error so it
// surfaces as a failure toast like any other handler failure.
func runHandler(ctx context.Context, handler func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx)
}

func (o *Orchestrator) snooze(ctx context.Context, req *domain.NotificationRequest, d time.Duration) {
	o.take(req.ID)
	snoozed := *req
	o.clk.AfterFunc(d, func() {
		o.render(ctx, &snoozed)
	})
}

// failureToast is the only user-visible error surface: it renders
// directly, bypassing admission, so the failure is never rate-limited
// away.
func (o *Orchestrator) failureToast(ctx context.Context, req *domain.NotificationRequest, label string) {
	o.render(ctx, &domain.NotificationRequest{
		ID:        uuid.NewString(),
		Category:  req.Category,
		Type:      domain.TypeError,
		Priority:  domain.PriorityHigh,
		Title:     "Action failed",
		Message:   fmt.Sprintf("%q could not be completed", label),
		Timestamp: o.clk.Now(),
	})
}

func (o *Orchestrator) lookup(notificationID string) (*domain.NotificationRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.active[notificationID]
	return req, ok
}

func (o *Orchestrator) take(notificationID string) (*domain.NotificationRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.active[notificationID]
	if ok {
		delete(o.active, notificationID)
	}
	return req, ok
}

// onRemoteNotification surfaces a toast for a notification first shown
// on another device.
func (o *Orchestrator) onRemoteNotification(record *domain.SyncRecord) {
	toast := record.Notification
	toast.ID = uuid.NewString()
	toast.Priority = domain.PriorityNormal
	toast.Actions = nil
	if toast.Title == "" {
		toast.Title = "From your other device"
	} else {
		toast.Title = "From your other device: " + toast.Title
	}
	o.render(context.Background(), &toast)
}

// onRemoteState applies a read/dismissed transition made elsewhere.
func (o *Orchestrator) onRemoteState(record *domain.SyncRecord) {
	req, ok := o.lookup(record.NotificationID)
	if !ok {
		return
	}

	switch record.Action {
	case domain.SyncActionRead:
		o.bus.publish(Event{Name: EventClicked, Request: *req, Timestamp: o.clk.Now()})
	case domain.SyncActionDismissed:
		o.take(record.NotificationID)
		o.bus.publish(Event{Name: EventDismissed, Request: *req, Timestamp: o.clk.Now()})
	}
}

// onBroadcast applies a non-persisted broadcast message.
func (o *Orchestrator) onBroadcast(msg *domain.BroadcastMessage) {
	ctx := context.Background()

	switch msg.Kind {
	case domain.BroadcastModeChange:
		o.batcher.SetMode(batch.Mode(msg.Mode))
		o.render(ctx, &domain.NotificationRequest{
			ID:        uuid.NewString(),
			Category:  domain.CategorySystem,
			Type:      domain.TypeInfo,
			Priority:  domain.PriorityLow,
			Message:   fmt.Sprintf("Switched to %s mode on another device", msg.Mode),
			Timestamp: o.clk.Now(),
		})
	case domain.BroadcastSettingsUpdate:
		o.mergeRemoteSettings(ctx, msg)
	case domain.BroadcastBulkAction:
		if msg.Action == "dismiss_all" {
			o.dismissAll()
		}
	}
}

func (o *Orchestrator) mergeRemoteSettings(ctx context.Context, msg *domain.BroadcastMessage) {
	if o.settings == nil {
		return
	}

	var remote domain.Settings
	if err := json.Unmarshal(msg.Settings, &remote); err != nil {
		slog.WarnContext(ctx, "malformed settings broadcast", slog.String("error", err.Error()))
		return
	}

	local, localAt, err := o.settings.LoadSettings(ctx)
	if err != nil && !errors.Is(err, domain.ErrSettingsNotFound) {
		slog.WarnContext(ctx, "settings load failed during merge", slog.String("error", err.Error()))
		return
	}

	merged, mergedAt, direction := syncsvc.MergeSettings(local, localAt, remote, msg.UpdatedAt)
	switch direction {
	case syncsvc.MergeApplyRemote:
		o.applySettings(merged)
		if err := o.settings.SaveSettings(ctx, merged, mergedAt); err != nil {
			slog.WarnContext(ctx, "settings save failed during merge", slog.String("error", err.Error()))
		}
	case syncsvc.MergePushLocal:
		if o.sync != nil {
			if payload, err := json.Marshal(merged); err == nil {
				o.sync.BroadcastSettings(ctx, payload, mergedAt)
			}
		}
	case syncsvc.MergeNoop:
	}
}

func (o *Orchestrator) dismissAll() {
	o.mu.Lock()
	retired := make([]*domain.NotificationRequest, 0, len(o.active))
	for _, req := range o.active {
		retired = append(retired, req)
	}
	o.active = make(map[string]*domain.NotificationRequest)
	o.mu.Unlock()

	ctx := context.Background()
	for _, req := range retired {
		if o.sync != nil {
			// Bulk dismissal retires the mirrored record outright
			// instead of leaving a dismissed tombstone per item.
			o.sync.Remove(ctx, req.ID)
		}
		o.bus.publish(Event{Name: EventDismissed, Request: *req, Timestamp: o.clk.Now()})
	}
}
