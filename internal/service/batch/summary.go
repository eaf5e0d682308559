package batch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
)

// BatchSubtype marks the synthetic notification rendered for a merged
// group.
const BatchSubtype = "batch"

// categoryNouns maps a category to its singular/plural display noun.
var categoryNouns = map[domain.Category][2]string{
	domain.CategoryAuth:     {"account alert", "account alerts"},
	domain.CategoryClient:   {"client update", "client updates"},
	domain.CategoryTask:     {"task update", "task updates"},
	domain.CategoryAI:       {"AI suggestion", "AI suggestions"},
	domain.CategoryDocument: {"document update", "document updates"},
	domain.CategorySystem:   {"system notice", "system notices"},
}

// categoryShortcuts maps a category to the navigation target of the
// shortcut action attached to homogeneous batches.
var categoryShortcuts = map[domain.Category]struct {
	label string
	path  string
}{
	domain.CategoryAuth:     {"Review security", "/settings/security"},
	domain.CategoryClient:   {"Open clients", "/clients"},
	domain.CategoryTask:     {"Open calendar", "/calendar"},
	domain.CategoryAI:       {"View ideas", "/ideas"},
	domain.CategoryDocument: {"Open documents", "/documents"},
}

func batchTitle(group []*domain.NotificationRequest) string {
	n := len(group)
	if homogeneousCategory(group) {
		if nouns, ok := categoryNouns[group[0].Category]; ok {
			noun := nouns[1]
			if n == 1 {
				noun = nouns[0]
			}
			return fmt.Sprintf("%d %s", n, noun)
		}
	}
	return fmt.Sprintf("%d new notifications", n)
}

func batchSummary(group []*domain.NotificationRequest) string {
	const maxListed = 3

	lines := make([]string, 0, maxListed)
	for i, req := range group {
		if i == maxListed {
			break
		}
		lines = append(lines, req.Message)
	}

	summary := strings.Join(lines, " · ")
	if remaining := len(group) - maxListed; remaining > 0 {
		summary += fmt.Sprintf(" and %d more", remaining)
	}
	return summary
}

// buildBatchNotification assembles the synthetic notification rendered
// in place of a merged group. The "view details" action re-emits the
// original requests in arrival order, staggered apart; a dismiss-all
// action and, for category-homogeneous groups, a category shortcut are
// attached as well.
func buildBatchNotification(
	group []*domain.NotificationRequest,
	clk clock.Clock,
	replay func(ctx context.Context, req *domain.NotificationRequest),
) *domain.NotificationRequest {
	category := dominantCategory(group)

	priority := domain.PriorityLow
	for _, req := range group {
		if req.Priority.Score() > priority.Score() {
			priority = req.Priority
		}
	}

	originals := make([]*domain.NotificationRequest, len(group))
	copy(originals, group)

	actions := []domain.Action{
		{
			Kind:  domain.ActionCustom,
			Label: "View details",
			Handler: func(ctx context.Context) error {
				for i, original := range originals {
					req := original
					clk.AfterFunc(time.Duration(i)*config.ReplayStagger, func() {
						replay(ctx, req)
					})
				}
				return nil
			},
		},
	}

	if homogeneousCategory(group) {
		if shortcut, ok := categoryShortcuts[group[0].Category]; ok {
			actions = append(actions, domain.Action{
				Kind:  domain.ActionNavigate,
				Label: shortcut.label,
				Path:  shortcut.path,
			})
		}
	}

	actions = append(actions, domain.Action{
		Kind:  domain.ActionDismiss,
		Label: "Dismiss all",
	})

	return &domain.NotificationRequest{
		ID:        uuid.NewString(),
		Category:  category,
		Type:      domain.TypeInfo,
		Priority:  priority,
		Title:     batchTitle(group),
		Message:   batchSummary(group),
		Actions:   actions,
		Subtype:   BatchSubtype,
		Context:   map[string]string{"batch_size": strconv.Itoa(len(group))},
		Timestamp: clk.Now(),
		Members:   originals,
	}
}

// BatchSize reads the size marker off a synthetic batch notification.
// It returns zero for ordinary notifications.
func BatchSize(req *domain.NotificationRequest) int {
	if req.Subtype != BatchSubtype {
		return 0
	}
	n, err := strconv.Atoi(req.Context["batch_size"])
	if err != nil {
		return 0
	}
	return n
}
