package admission

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
)

// retryQueue holds rejected high-priority requests for one deferred
// admission attempt. The queue is drained one item at a time: the first
// attempt fires after the retry delay, subsequent items a drain gap
// apart.
type retryQueue struct {
	mu       sync.Mutex
	clk      clock.Clock
	ctrl     *Controller
	items    []*domain.NotificationRequest
	draining bool
	deliver  DeliverFunc
}

func newRetryQueue(clk clock.Clock, ctrl *Controller) *retryQueue {
	return &retryQueue{
		clk:  clk,
		ctrl: ctrl,
	}
}

func (q *retryQueue) setDeliver(fn DeliverFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deliver = fn
}

func (q *retryQueue) push(req *domain.NotificationRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, req)
	if !q.draining {
		q.draining = true
		q.clk.AfterFunc(config.RetryDelay, q.drainOne)
	}
}

func (q *retryQueue) drainOne() {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.draining = false
		q.mu.Unlock()
		return
	}
	req := q.items[0]
	q.items = q.items[1:]
	deliver := q.deliver
	q.mu.Unlock()

	ctx := context.Background()
	decision := q.ctrl.retryAdmit(ctx, req)
	if decision.IsAccepted() {
		slog.DebugContext(ctx, "deferred notification admitted on retry",
			slog.String("notification_id", req.ID),
			slog.String("category", req.Category.String()),
		)
		if deliver != nil {
			deliver(ctx, req)
		}
	} else {
		slog.DebugContext(ctx, "deferred notification dropped after retry",
			slog.String("notification_id", req.ID),
			slog.String("category", req.Category.String()),
			slog.String("reason", decision.Reason),
		)
	}

	q.mu.Lock()
	if len(q.items) > 0 {
		q.clk.AfterFunc(config.RetryDrainGap, q.drainOne)
	} else {
		q.draining = false
	}
	q.mu.Unlock()
}

// depth reports the queued item count, for diagnostics.
func (q *retryQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
