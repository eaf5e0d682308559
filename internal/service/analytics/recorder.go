// Package analytics aggregates notification lifecycle events into a
// persisted rolling snapshot and ships raw events to an external sink.
// Nothing in this package may block or fail the delivery path; errors
// are logged and swallowed.
package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/observability/metrics"
)

// idleGap caps how much of the wall-clock gap between two interactions
// counts toward the session's active duration.
const idleGap = 5 * time.Minute

// Recorder aggregates events for one session. Counters accumulate into
// a snapshot loaded from and periodically saved to the metrics store;
// raw events buffer in memory until the next flush.
type Recorder struct {
	store    domain.MetricsStore
	exporter domain.AnalyticsExporter
	clk      clock.Clock

	flushInterval time.Duration
	sessionID     string
	notifyMetrics *metrics.NotifyMetrics

	mu             sync.Mutex
	snapshot       *domain.MetricsSnapshot
	pending        []domain.AnalyticsEvent
	shownAt        map[string]time.Time
	responded      map[string]bool
	viewport       domain.Viewport
	device         domain.DeviceClass
	sessionStart   time.Time
	lastActivity   time.Time
	activeDuration time.Duration
	interactions   int

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewRecorder builds a recorder with a fresh session id.
func NewRecorder(
	cfg *config.AnalyticsConfig,
	store domain.MetricsStore,
	exporter domain.AnalyticsExporter,
	clk clock.Clock,
	notifyMetrics *metrics.NotifyMetrics,
) *Recorder {
	now := clk.Now()
	return &Recorder{
		store:         store,
		exporter:      exporter,
		clk:           clk,
		flushInterval: cfg.FlushInterval,
		sessionID:     uuid.NewString(),
		notifyMetrics: notifyMetrics,
		snapshot:      domain.NewMetricsSnapshot(),
		shownAt:       make(map[string]time.Time),
		responded:     make(map[string]bool),
		device:        domain.DeviceDesktop,
		sessionStart:  now,
		lastActivity:  now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// SessionID returns the id stamped on every event of this session.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Start loads the persisted snapshot and begins the periodic flush
// loop. A missing or unreadable snapshot starts fresh.
func (r *Recorder) Start(ctx context.Context) {
	snapshot, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		slog.WarnContext(ctx, "metrics snapshot unavailable, starting fresh",
			slog.String("error", err.Error()),
		)
	} else if snapshot != nil {
		r.mu.Lock()
		r.snapshot = snapshot
		r.mu.Unlock()
	}

	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	go r.flushLoop(ctx)
}

func (r *Recorder) flushLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := r.clk.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			r.Flush(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the session: the summary is appended to the capped
// history, everything pending is flushed, and the exporter is closed.
// A repeated Stop is a no-op; the session summary is recorded once.
func (r *Recorder) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	close(r.stopCh)

	now := r.clk.Now()
	summary := domain.SessionSummary{
		SessionID:      r.sessionID,
		StartedAt:      r.sessionStart,
		EndedAt:        now,
		Duration:       now.Sub(r.sessionStart),
		ActiveDuration: r.activeDuration,
		Interactions:   r.interactions,
	}
	r.snapshot.Sessions = append(r.snapshot.Sessions, summary)
	if len(r.snapshot.Sessions) > domain.SessionHistoryCap {
		r.snapshot.Sessions = r.snapshot.Sessions[len(r.snapshot.Sessions)-domain.SessionHistoryCap:]
	}
	r.mu.Unlock()

	<-r.doneCh

	if err := r.exporter.RecordSessionSummary(ctx, summary); err != nil {
		slog.WarnContext(ctx, "session summary export failed",
			slog.String("error", err.Error()),
		)
	}
	r.Flush(ctx)
	if err := r.exporter.Close(); err != nil {
		slog.WarnContext(ctx, "analytics exporter close failed",
			slog.String("error", err.Error()),
		)
	}
}

// UpdateViewport records the viewport stamped on subsequent events.
func (r *Recorder) UpdateViewport(viewport domain.Viewport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewport = viewport
	r.device = domain.ClassifyDevice(viewport.Width)
}

// RecordShown registers a rendered notification.
func (r *Recorder) RecordShown(req *domain.NotificationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	r.shownAt[req.ID] = now

	r.bump(req, func(set *domain.CounterSet) { set.Shown++ })
	r.snapshot.Hourly[now.UTC().Hour()]++
	r.snapshot.Daily[domain.DailyKey(now)]++
	r.snapshot.Monthly[domain.MonthlyKey(now)]++
	r.appendEvent(req, domain.EventShown, 0, now)
}

// RecordClicked registers a click and, if it is the first interaction
// with this notification, a response-time sample.
func (r *Recorder) RecordClicked(req *domain.NotificationRequest) {
	r.interact(req, domain.EventClicked)
}

// RecordDismissed registers a manual dismissal.
func (r *Recorder) RecordDismissed(req *domain.NotificationRequest) {
	r.interact(req, domain.EventDismissed)
}

// RecordActioned registers an action button invocation.
func (r *Recorder) RecordActioned(req *domain.NotificationRequest) {
	r.interact(req, domain.EventAction)
}

// RecordBatch registers a rendered batch and its size.
func (r *Recorder) RecordBatch(req *domain.NotificationRequest, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	r.snapshot.BatchesShown++
	r.snapshot.BatchSizes = append(r.snapshot.BatchSizes, size)
	if len(r.snapshot.BatchSizes) > domain.BatchSizeCap {
		r.snapshot.BatchSizes = r.snapshot.BatchSizes[len(r.snapshot.BatchSizes)-domain.BatchSizeCap:]
	}
	r.appendEvent(req, domain.EventBatch, size, now)
}

func (r *Recorder) interact(req *domain.NotificationRequest, eventType domain.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	switch eventType {
	case domain.EventClicked:
		r.bump(req, func(set *domain.CounterSet) { set.Clicked++ })
	case domain.EventDismissed:
		r.bump(req, func(set *domain.CounterSet) { set.Dismissed++ })
	case domain.EventAction:
		r.bump(req, func(set *domain.CounterSet) { set.Actioned++ })
	}

	// Only the first interaction with a notification contributes a
	// response-time sample.
	if shown, ok := r.shownAt[req.ID]; ok && !r.responded[req.ID] {
		r.responded[req.ID] = true
		sample := float64(now.Sub(shown).Milliseconds())
		samples := append(r.snapshot.ResponseSamples[req.Category], sample)
		if len(samples) > domain.ResponseSampleCap {
			samples = samples[len(samples)-domain.ResponseSampleCap:]
		}
		r.snapshot.ResponseSamples[req.Category] = samples

		if avg, ok := r.snapshot.ResponseAverages[req.Priority]; ok {
			r.snapshot.ResponseAverages[req.Priority] = (1-domain.ResponseAlpha)*avg + domain.ResponseAlpha*sample
		} else {
			r.snapshot.ResponseAverages[req.Priority] = sample
		}
	}

	gap := now.Sub(r.lastActivity)
	if gap > idleGap {
		gap = idleGap
	}
	if gap > 0 {
		r.activeDuration += gap
	}
	r.lastActivity = now
	r.interactions++

	r.appendEvent(req, eventType, 0, now)
}

// bump applies one increment across every aggregation key the event
// belongs to, allocating counter sets on first use.
func (r *Recorder) bump(req *domain.NotificationRequest, inc func(*domain.CounterSet)) {
	inc(counterIn(r.snapshot.ByCategory, req.Category))
	inc(counterIn(r.snapshot.ByType, req.Type))
	inc(counterIn(r.snapshot.ByPriority, req.Priority))
	inc(counterIn(r.snapshot.ByDevice, r.device))
}

func counterIn[K comparable](m map[K]*domain.CounterSet, key K) *domain.CounterSet {
	set := m[key]
	if set == nil {
		set = &domain.CounterSet{}
		m[key] = set
	}
	return set
}

func (r *Recorder) appendEvent(req *domain.NotificationRequest, eventType domain.EventType, batchSize int, now time.Time) {
	r.pending = append(r.pending, domain.AnalyticsEvent{
		ID:             uuid.NewString(),
		Type:           eventType,
		NotificationID: req.ID,
		Category:       req.Category,
		Priority:       req.Priority,
		Device:         r.device,
		Viewport:       r.viewport,
		SessionID:      r.sessionID,
		BatchSize:      batchSize,
		Timestamp:      now,
	})
	r.snapshot.UpdatedAt = now
}

// Snapshot returns a deep copy of the current aggregate state.
func (r *Recorder) Snapshot() *domain.MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneSnapshot(r.snapshot)
}

// EngagementRate is the percentage of shown notifications that were
// clicked, across all categories. It is exactly zero when nothing has
// been shown yet.
func (r *Recorder) EngagementRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return engagementRate(r.snapshot)
}

// DismissalRate is the percentage of shown notifications that were
// dismissed without any other interaction.
func (r *Recorder) DismissalRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return dismissalRate(r.snapshot)
}

// CategoryEngagementRate scopes the engagement rate to one category.
func (r *Recorder) CategoryEngagementRate(category domain.Category) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return counterRate(r.snapshot.ByCategory[category], func(set *domain.CounterSet) int64 { return set.Clicked })
}

// CategoryDismissalRate scopes the dismissal rate to one category.
func (r *Recorder) CategoryDismissalRate(category domain.Category) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return counterRate(r.snapshot.ByCategory[category], func(set *domain.CounterSet) int64 { return set.Dismissed })
}

// ResponseAverage returns the moving average response time for a
// priority, in milliseconds. Zero means no interaction has been
// observed at that priority yet.
func (r *Recorder) ResponseAverage(priority domain.Priority) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot.ResponseAverages[priority]
}

// Flush persists the snapshot and ships buffered events. Failures are
// logged; the buffered events are retained for the next flush when the
// exporter rejects them.
func (r *Recorder) Flush(ctx context.Context) {
	start := r.clk.Now()

	r.mu.Lock()
	events := r.pending
	r.pending = nil
	snapshot := cloneSnapshot(r.snapshot)
	r.mu.Unlock()

	outcome := "ok"

	if len(events) > 0 {
		if err := r.exporter.RecordEvents(ctx, events); err != nil {
			slog.WarnContext(ctx, "analytics event export failed",
				slog.Int("events", len(events)),
				slog.String("error", err.Error()),
			)
			outcome = "export_error"
			r.mu.Lock()
			r.pending = append(events, r.pending...)
			r.mu.Unlock()
		}
	}

	if err := r.store.SaveSnapshot(ctx, snapshot); err != nil {
		slog.WarnContext(ctx, "metrics snapshot save failed",
			slog.String("error", err.Error()),
		)
		outcome = "save_error"
	}

	if r.notifyMetrics != nil {
		r.notifyMetrics.RecordAnalyticsFlushDuration(ctx, r.clk.Since(start), outcome)
	}
}

func engagementRate(snapshot *domain.MetricsSnapshot) float64 {
	var shown, clicked int64
	for _, set := range snapshot.ByCategory {
		shown += set.Shown
		clicked += set.Clicked
	}
	if shown == 0 {
		return 0
	}
	return float64(clicked) / float64(shown) * 100
}

func counterRate(set *domain.CounterSet, pick func(*domain.CounterSet) int64) float64 {
	if set == nil || set.Shown == 0 {
		return 0
	}
	return float64(pick(set)) / float64(set.Shown) * 100
}

func dismissalRate(snapshot *domain.MetricsSnapshot) float64 {
	var shown, dismissed int64
	for _, set := range snapshot.ByCategory {
		shown += set.Shown
		dismissed += set.Dismissed
	}
	if shown == 0 {
		return 0
	}
	return float64(dismissed) / float64(shown) * 100
}

func cloneSnapshot(s *domain.MetricsSnapshot) *domain.MetricsSnapshot {
	out := domain.NewMetricsSnapshot()
	for k, v := range s.ByCategory {
		c := *v
		out.ByCategory[k] = &c
	}
	for k, v := range s.ByType {
		c := *v
		out.ByType[k] = &c
	}
	for k, v := range s.ByPriority {
		c := *v
		out.ByPriority[k] = &c
	}
	for k, v := range s.ByDevice {
		c := *v
		out.ByDevice[k] = &c
	}
	for k, v := range s.ResponseSamples {
		out.ResponseSamples[k] = append([]float64(nil), v...)
	}
	for k, v := range s.ResponseAverages {
		out.ResponseAverages[k] = v
	}
	out.Hourly = s.Hourly
	for k, v := range s.Daily {
		out.Daily[k] = v
	}
	for k, v := range s.Monthly {
		out.Monthly[k] = v
	}
	out.BatchesShown = s.BatchesShown
	out.BatchSizes = append([]int(nil), s.BatchSizes...)
	out.Sessions = append([]domain.SessionSummary(nil), s.Sessions...)
	out.UpdatedAt = s.UpdatedAt
	return out
}
