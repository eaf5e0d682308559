package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/observability/metrics"
	"github.com/pulsedesk/notification-engine/internal/service/behavior"
)

// Mode is the context override applied to the render path.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeBusy   Mode = "busy"
	ModeFocus  Mode = "focus"
)

// RenderFunc receives notifications ready for display, both individual
// requests and synthetic batch notifications.
type RenderFunc func(ctx context.Context, req *domain.NotificationRequest)

// Scheduler buffers batch-eligible notifications in a debounce window
// and decides, per group, whether to merge them into one notification.
type Scheduler struct {
	mu       sync.Mutex
	clk      clock.Clock
	enabled  bool
	debounce time.Duration
	buffer   []*domain.NotificationRequest
	timer    clock.Timer
	mode     Mode
	// busyCriticalShown limits busy mode to a single critical render
	// until the mode changes again.
	busyCriticalShown bool

	behavior      *behavior.Manager
	render        RenderFunc
	notifyMetrics *metrics.NotifyMetrics
}

func NewScheduler(
	cfg *config.BatchConfig,
	clk clock.Clock,
	behaviorMgr *behavior.Manager,
	notifyMetrics *metrics.NotifyMetrics,
) *Scheduler {
	return &Scheduler{
		clk:           clk,
		enabled:       cfg.Enabled,
		debounce:      cfg.DebounceWindow,
		mode:          ModeNormal,
		behavior:      behaviorMgr,
		notifyMetrics: notifyMetrics,
	}
}

// SetRenderFunc installs the render sink. Must be called before Submit.
func (s *Scheduler) SetRenderFunc(fn RenderFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.render = fn
}

// SetEnabled toggles batching at runtime. Disabling flushes nothing;
// buffered items still render when the active window fires.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Enabled reports whether batching is active.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetMode applies a context override (busy collapses to at most one
// critical; focus suppresses individual rendering below high).
func (s *Scheduler) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.busyCriticalShown = false
}

// Mode returns the active context override.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Submit routes an admitted notification: render immediately, buffer
// into the debounce window, or drop under a context override.
func (s *Scheduler) Submit(ctx context.Context, req *domain.NotificationRequest) {
	s.mu.Lock()

	switch s.mode {
	case ModeBusy:
		// Busy collapses everything except a single critical item.
		if !req.Priority.IsCritical() || s.busyCriticalShown {
			s.mu.Unlock()
			slog.DebugContext(ctx, "notification collapsed by busy mode",
				slog.String("notification_id", req.ID),
				slog.String("priority", req.Priority.String()),
			)
			return
		}
		s.busyCriticalShown = true
		render := s.render
		s.mu.Unlock()
		render(ctx, req)
		return

	case ModeFocus:
		// Below high priority nothing renders individually: eligible
		// items go through the batch window, the rest are dropped.
		if req.Priority.Score() < domain.PriorityHigh.Score() {
			if s.enabled && req.BatchEligible() {
				s.bufferLocked(ctx, req)
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			slog.DebugContext(ctx, "notification suppressed by focus mode",
				slog.String("notification_id", req.ID),
				slog.String("priority", req.Priority.String()),
			)
			return
		}
	}

	if !s.enabled || !req.BatchEligible() {
		render := s.render
		s.mu.Unlock()
		render(ctx, req)
		return
	}

	s.bufferLocked(ctx, req)
	s.mu.Unlock()
}

// bufferLocked appends to the debounce buffer and re-arms the single
// window timer. Caller holds the lock.
func (s *Scheduler) bufferLocked(ctx context.Context, req *domain.NotificationRequest) {
	s.buffer = append(s.buffer, req)

	if s.timer == nil {
		s.timer = s.clk.AfterFunc(s.debounce, s.flush)
	} else {
		s.timer.Reset(s.debounce)
	}

	slog.DebugContext(ctx, "notification buffered for batching",
		slog.String("notification_id", req.ID),
		slog.String("category", req.Category.String()),
		slog.Int("buffer_size", len(s.buffer)),
	)
}

// flush runs when the debounce window closes: cluster the buffer,
// decide per group, render, and fold the outcomes into the behavior
// profiles.
func (s *Scheduler) flush() {
	s.mu.Lock()
	items := s.buffer
	s.buffer = nil
	s.timer = nil
	render := s.render
	mode := s.mode
	s.mu.Unlock()

	if len(items) == 0 {
		return
	}

	ctx := context.Background()
	start := s.clk.Now()

	groups := cluster(items)

	for _, group := range groups {
		if len(group) == 1 {
			if mode == ModeFocus && group[0].Priority.Score() < domain.PriorityHigh.Score() {
				// Focus mode: a singleton below high never renders
				// individually.
				continue
			}
			render(ctx, group[0])
			continue
		}

		category := dominantCategory(group)
		score := s.decisionScore(group, category)

		// Focus mode forces eligible groups into a batch.
		batched := score > config.DecisionThreshold || mode == ModeFocus

		slog.DebugContext(ctx, "batch decision",
			slog.String("category", category.String()),
			slog.Int("group_size", len(group)),
			slog.Float64("score", score),
			slog.Bool("batched", batched),
		)

		s.behavior.RecordBatchOutcome(category, batched)

		if batched {
			if s.notifyMetrics != nil {
				s.notifyMetrics.RecordBatch(ctx, category.String(), len(group))
			}
			render(ctx, buildBatchNotification(group, s.clk, render))
		} else {
			for _, req := range group {
				render(ctx, req)
			}
		}
	}

	if s.notifyMetrics != nil {
		s.notifyMetrics.RecordBatchFlushDuration(ctx, s.clk.Since(start))
	}
}

// decisionScore weighs group cohesion, the learned per-category
// preference, and urgency into one batching score.
func (s *Scheduler) decisionScore(group []*domain.NotificationRequest, category domain.Category) float64 {
	return 0.4*meanAffinity(group) +
		0.3*s.behavior.BatchPreference(category) +
		0.3*(1-maxUrgency(group))
}
