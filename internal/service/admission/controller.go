// Package admission rate-limits and dedups incoming notification
// requests against sliding windows.
package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/observability/metrics"
)

// Rejection reasons attached to decisions.
const (
	ReasonDuplicateCategory = "duplicate_category"
	ReasonCap30s            = "cap_30s"
	ReasonCapMinute         = "cap_minute"
)

// DeliverFunc receives requests admitted on a deferred retry, after the
// original caller has already moved on.
type DeliverFunc func(ctx context.Context, req *domain.NotificationRequest)

// Controller decides whether a notification may be shown. Window
// pruning happens inline with every check.
type Controller struct {
	mu             sync.Mutex
	clk            clock.Clock
	maxPer30s      int
	maxPerMinute   int
	window         []domain.AdmissionRecord
	lastByCategory map[domain.Category]time.Time

	retry *retryQueue

	notifyMetrics *metrics.NotifyMetrics
}

func NewController(cfg *config.AdmissionConfig, clk clock.Clock, notifyMetrics *metrics.NotifyMetrics) *Controller {
	c := &Controller{
		clk:            clk,
		maxPer30s:      cfg.MaxPer30s,
		maxPerMinute:   cfg.MaxPerMinute,
		lastByCategory: make(map[domain.Category]time.Time),
		notifyMetrics:  notifyMetrics,
	}
	c.retry = newRetryQueue(clk, c)
	return c
}

// SetDeliverFunc installs the sink for requests admitted on retry.
func (c *Controller) SetDeliverFunc(fn DeliverFunc) {
	c.retry.setDeliver(fn)
}

// Configure mutates the admission caps at runtime.
func (c *Controller) Configure(maxPer30s, maxPerMinute int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxPer30s > 0 {
		c.maxPer30s = maxPer30s
	}
	if maxPerMinute > 0 {
		c.maxPerMinute = maxPerMinute
	}
}

// Caps returns the current admission caps.
func (c *Controller) Caps() (maxPer30s, maxPerMinute int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxPer30s, c.maxPerMinute
}

// RequestAdmission checks a request against the rate windows and the
// category dedup rule. Rejected high-priority requests are deferred for
// a single retry; rejected low/normal requests are dropped silently.
func (c *Controller) RequestAdmission(ctx context.Context, req *domain.NotificationRequest) domain.Decision {
	decision := c.decide(req)

	if decision.Outcome == domain.OutcomeRejected && req.Priority == domain.PriorityHigh {
		c.retry.push(req)
		decision = domain.Deferred(decision.Reason)
	}

	switch decision.Outcome {
	case domain.OutcomeAccepted:
		slog.DebugContext(ctx, "notification admitted",
			slog.String("notification_id", req.ID),
			slog.String("category", req.Category.String()),
			slog.String("priority", req.Priority.String()),
		)
	case domain.OutcomeDeferred:
		slog.DebugContext(ctx, "notification deferred for retry",
			slog.String("notification_id", req.ID),
			slog.String("category", req.Category.String()),
			slog.String("reason", decision.Reason),
		)
	default:
		slog.DebugContext(ctx, "notification rejected",
			slog.String("notification_id", req.ID),
			slog.String("category", req.Category.String()),
			slog.String("priority", req.Priority.String()),
			slog.String("reason", decision.Reason),
		)
	}

	if c.notifyMetrics != nil {
		c.notifyMetrics.RecordAdmissionDecision(ctx,
			decision.Outcome.String(),
			req.Category.String(),
			req.Priority.String(),
			decision.Reason,
		)
	}

	return decision
}

func (c *Controller) decide(req *domain.NotificationRequest) domain.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	c.pruneLocked(now)

	if req.Priority.IsCritical() {
		c.recordLocked(req, now)
		return domain.Accepted()
	}

	// Low priority is governed by the caps alone; the category dedup
	// rule applies from normal upward.
	if req.Priority != domain.PriorityLow {
		if last, ok := c.lastByCategory[req.Category]; ok {
			if now.Sub(last) < config.DedupWindow {
				return domain.Rejected(ReasonDuplicateCategory)
			}
		}
	}

	count30s := 0
	for _, record := range c.window {
		if now.Sub(record.Timestamp) < config.ShortWindow {
			count30s++
		}
	}
	if count30s >= c.maxPer30s {
		return domain.Rejected(ReasonCap30s)
	}

	if len(c.window) >= c.maxPerMinute {
		return domain.Rejected(ReasonCapMinute)
	}

	c.recordLocked(req, now)
	return domain.Accepted()
}

// pruneLocked drops window entries older than the long window.
func (c *Controller) pruneLocked(now time.Time) {
	kept := c.window[:0]
	for _, record := range c.window {
		if now.Sub(record.Timestamp) < config.LongWindow {
			kept = append(kept, record)
		}
	}
	c.window = kept
}

func (c *Controller) recordLocked(req *domain.NotificationRequest, now time.Time) {
	c.window = append(c.window, domain.AdmissionRecord{
		ID:        req.ID,
		Category:  req.Category,
		Timestamp: now,
	})
	c.lastByCategory[req.Category] = now
}

// retryAdmit is the single deferred attempt for a queued request. No
// further deferral happens on a second rejection.
func (c *Controller) retryAdmit(ctx context.Context, req *domain.NotificationRequest) domain.Decision {
	decision := c.decide(req)

	if c.notifyMetrics != nil {
		c.notifyMetrics.RecordDeferredRetry(ctx, req.Category.String(), decision.Outcome.String())
	}

	return decision
}
