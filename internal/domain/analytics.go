package domain

import (
	"time"
)

// EventType is the fixed analytics event vocabulary.
type EventType string

const (
	EventShown     EventType = "shown"
	EventClicked   EventType = "clicked"
	EventDismissed EventType = "dismissed"
	EventAction    EventType = "action"
	EventBatch     EventType = "batch"
)

func (t EventType) String() string {
	return string(t)
}

// DeviceClass buckets a viewport width into a device family.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
)

func (c DeviceClass) String() string {
	return string(c)
}

// Viewport width breakpoints for device classification.
const (
	MobileMaxWidth = 768
	TabletMaxWidth = 1024
)

// ClassifyDevice maps a viewport width to its device class.
func ClassifyDevice(width int) DeviceClass {
	switch {
	case width < MobileMaxWidth:
		return DeviceMobile
	case width < TabletMaxWidth:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// Viewport is the viewport snapshot captured with each event.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AnalyticsEvent records one lifecycle event of a notification.
type AnalyticsEvent struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	NotificationID string      `json:"notification_id"`
	Category       Category    `json:"category"`
	Priority       Priority    `json:"priority"`
	Device         DeviceClass `json:"device"`
	Viewport       Viewport    `json:"viewport"`
	SessionID      string      `json:"session_id"`
	BatchSize      int         `json:"batch_size,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// CounterSet holds lifecycle counters for one aggregation key.
type CounterSet struct {
	Shown     int64 `json:"shown"`
	Clicked   int64 `json:"clicked"`
	Dismissed int64 `json:"dismissed"`
	Actioned  int64 `json:"actioned"`
}

// SessionSummary is appended at session end; the history is capped.
type SessionSummary struct {
	SessionID      string        `json:"session_id"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        time.Time     `json:"ended_at"`
	Duration       time.Duration `json:"duration"`
	ActiveDuration time.Duration `json:"active_duration"`
	Interactions   int           `json:"interactions"`
}

// MetricsSnapshot is the rolling aggregate state persisted across
// sessions. Histories are bounded; see the cap constants.
type MetricsSnapshot struct {
	ByCategory map[Category]*CounterSet    `json:"by_category"`
	ByType     map[Type]*CounterSet        `json:"by_type"`
	ByPriority map[Priority]*CounterSet    `json:"by_priority"`
	ByDevice   map[DeviceClass]*CounterSet `json:"by_device"`

	// ResponseSamples keeps milliseconds from shown to first
	// interaction, per category, capped to the most recent entries.
	ResponseSamples map[Category][]float64 `json:"response_samples"`

	// ResponseAverages is the exponential moving average of response
	// times per priority, in milliseconds.
	ResponseAverages map[Priority]float64 `json:"response_averages"`

	// Shown histograms.
	Hourly  [24]int64        `json:"hourly"`
	Daily   map[string]int64 `json:"daily"`
	Monthly map[string]int64 `json:"monthly"`

	BatchesShown int64            `json:"batches_shown"`
	BatchSizes   []int            `json:"batch_sizes"`
	Sessions     []SessionSummary `json:"sessions"`

	UpdatedAt time.Time `json:"updated_at"`
}

// History caps for MetricsSnapshot.
const (
	ResponseSampleCap = 50
	BatchSizeCap      = 100
	SessionHistoryCap = 50
)

// ResponseAlpha is the exponential moving average rate for the
// per-priority response-time averages.
const ResponseAlpha = 0.1

// NewMetricsSnapshot returns an empty snapshot with all maps allocated.
func NewMetricsSnapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		ByCategory:       make(map[Category]*CounterSet),
		ByType:           make(map[Type]*CounterSet),
		ByPriority:       make(map[Priority]*CounterSet),
		ByDevice:         make(map[DeviceClass]*CounterSet),
		ResponseSamples:  make(map[Category][]float64),
		ResponseAverages: make(map[Priority]float64),
		Daily:            make(map[string]int64),
		Monthly:          make(map[string]int64),
	}
}

// DailyKey and MonthlyKey format histogram bucket keys.
func DailyKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func MonthlyKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// InsightLevel grades a derived insight.
type InsightLevel string

const (
	InsightWarning InsightLevel = "warning"
	InsightSuccess InsightLevel = "success"
	InsightInfo    InsightLevel = "info"
)

// Insight is a derived observation about notification effectiveness.
type Insight struct {
	Level   InsightLevel `json:"level"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
}
