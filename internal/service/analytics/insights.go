package analytics

import (
	"fmt"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// Thresholds for the derived insights, in percent.
const (
	lowEngagementThreshold  = 20.0
	highEngagementThreshold = 60.0
	highDismissalThreshold  = 40.0
)

// Insights derives observations from the current aggregate state.
func (r *Recorder) Insights() []domain.Insight {
	r.mu.Lock()
	defer r.mu.Unlock()
	return insightsFor(r.snapshot)
}

func insightsFor(snapshot *domain.MetricsSnapshot) []domain.Insight {
	var insights []domain.Insight

	var shown int64
	for _, set := range snapshot.ByCategory {
		shown += set.Shown
	}
	if shown == 0 {
		return insights
	}

	engagement := engagementRate(snapshot)
	switch {
	case engagement < lowEngagementThreshold:
		insights = append(insights, domain.Insight{
			Level:   domain.InsightWarning,
			Code:    "low_engagement",
			Message: fmt.Sprintf("Only %.1f%% of notifications are clicked; consider reducing volume", engagement),
		})
	case engagement > highEngagementThreshold:
		insights = append(insights, domain.Insight{
			Level:   domain.InsightSuccess,
			Code:    "high_engagement",
			Message: fmt.Sprintf("%.1f%% of notifications are clicked", engagement),
		})
	}

	if dismissal := dismissalRate(snapshot); dismissal > highDismissalThreshold {
		insights = append(insights, domain.Insight{
			Level:   domain.InsightWarning,
			Code:    "high_dismissal",
			Message: fmt.Sprintf("%.1f%% of notifications are dismissed without interaction", dismissal),
		})
	}

	if hour, count := peakHour(snapshot); count > 0 {
		insights = append(insights, domain.Insight{
			Level:   domain.InsightInfo,
			Code:    "peak_hour",
			Message: fmt.Sprintf("Most notifications arrive around %02d:00 UTC", hour),
		})
	}

	if day, count := peakDay(snapshot); count > 0 {
		insights = append(insights, domain.Insight{
			Level:   domain.InsightInfo,
			Code:    "peak_day",
			Message: fmt.Sprintf("Busiest day so far: %s", day),
		})
	}

	return insights
}

func peakHour(snapshot *domain.MetricsSnapshot) (int, int64) {
	bestHour, bestCount := 0, int64(0)
	for hour, count := range snapshot.Hourly {
		if count > bestCount {
			bestHour, bestCount = hour, count
		}
	}
	return bestHour, bestCount
}

func peakDay(snapshot *domain.MetricsSnapshot) (string, int64) {
	bestDay, bestCount := "", int64(0)
	for day, count := range snapshot.Daily {
		if count > bestCount || (count == bestCount && day > bestDay) {
			bestDay, bestCount = day, count
		}
	}
	return bestDay, bestCount
}
