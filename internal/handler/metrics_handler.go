package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/service/analytics"
)

// MetricsHandler serves the aggregated engagement metrics and derived
// insights.
type MetricsHandler struct {
	recorder *analytics.Recorder
}

func NewMetricsHandler(recorder *analytics.Recorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

type metricsSummaryResponse struct {
	Totals           domain.CounterSet                         `json:"totals"`
	EngagementRate   float64                                   `json:"engagement_rate"`
	DismissalRate    float64                                   `json:"dismissal_rate"`
	ByCategory       map[domain.Category]*domain.CounterSet    `json:"by_category"`
	ByType           map[domain.Type]*domain.CounterSet        `json:"by_type"`
	ByPriority       map[domain.Priority]*domain.CounterSet    `json:"by_priority"`
	ByDevice         map[domain.DeviceClass]*domain.CounterSet `json:"by_device"`
	ResponseAverages map[domain.Priority]float64               `json:"response_averages"`
	Hourly           [24]int64                                 `json:"hourly"`
	Daily            map[string]int64                          `json:"daily"`
	Monthly          map[string]int64                          `json:"monthly"`
	BatchesShown     int64                                     `json:"batches_shown"`
	Sessions         []domain.SessionSummary                   `json:"sessions"`
}

func (h *MetricsHandler) HandleSummary(c *gin.Context) {
	snapshot := h.recorder.Snapshot()

	var totals domain.CounterSet
	for _, set := range snapshot.ByCategory {
		totals.Shown += set.Shown
		totals.Clicked += set.Clicked
		totals.Dismissed += set.Dismissed
		totals.Actioned += set.Actioned
	}

	c.JSON(http.StatusOK, metricsSummaryResponse{
		Totals:           totals,
		EngagementRate:   h.recorder.EngagementRate(),
		DismissalRate:    h.recorder.DismissalRate(),
		ByCategory:       snapshot.ByCategory,
		ByType:           snapshot.ByType,
		ByPriority:       snapshot.ByPriority,
		ByDevice:         snapshot.ByDevice,
		ResponseAverages: snapshot.ResponseAverages,
		Hourly:           snapshot.Hourly,
		Daily:            snapshot.Daily,
		Monthly:          snapshot.Monthly,
		BatchesShown:     snapshot.BatchesShown,
		Sessions:         snapshot.Sessions,
	})
}

func (h *MetricsHandler) HandleInsights(c *gin.Context) {
	insights := h.recorder.Insights()
	if insights == nil {
		insights = []domain.Insight{}
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}
