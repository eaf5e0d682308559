package domain

import (
	"time"
)

// Type classifies the visual kind of a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeLoading Type = "loading"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) Valid() bool {
	switch t {
	case TypeSuccess, TypeError, TypeInfo, TypeLoading:
		return true
	}
	return false
}

// Priority orders notifications for admission and batching decisions.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) String() string {
	return string(p)
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Score maps a priority to a [0,1] urgency weight used by the batch
// decision formula.
func (p Priority) Score() float64 {
	switch p {
	case PriorityCritical:
		return 1.0
	case PriorityHigh:
		return 0.75
	case PriorityNormal:
		return 0.5
	case PriorityLow:
		return 0.25
	default:
		return 0.5
	}
}

// IsCritical reports whether the priority bypasses admission limits.
func (p Priority) IsCritical() bool {
	return p == PriorityCritical
}

// Category groups notifications by the product area that emitted them.
type Category string

const (
	CategoryAuth     Category = "auth"
	CategoryClient   Category = "client"
	CategoryTask     Category = "task"
	CategoryAI       Category = "ai"
	CategoryDocument Category = "document"
	CategorySystem   Category = "system"
)

func (c Category) String() string {
	return string(c)
}

func (c Category) Valid() bool {
	switch c {
	case CategoryAuth, CategoryClient, CategoryTask, CategoryAI, CategoryDocument, CategorySystem:
		return true
	}
	return false
}

// NotificationRequest is a single request to display a notification.
// It is immutable once admitted.
type NotificationRequest struct {
	ID        string            `json:"id"`
	Category  Category          `json:"category"`
	Type      Type              `json:"type"`
	Priority  Priority          `json:"priority"`
	Title     string            `json:"title,omitempty"`
	Message   string            `json:"message"`
	Actions   []Action          `json:"actions,omitempty"`
	Entity    string            `json:"entity,omitempty"`
	Subtype   string            `json:"subtype,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Timestamp time.Time         `json:"timestamp"`

	// Members holds the original requests merged into a synthetic
	// batch notification. It never crosses the wire.
	Members []*NotificationRequest `json:"-"`
}

// Actionable reports whether the request carries user-invokable actions.
func (r *NotificationRequest) Actionable() bool {
	return len(r.Actions) > 0
}

// RequiresAttention reports whether the notification must be placed
// front and center regardless of category defaults.
func (r *NotificationRequest) RequiresAttention() bool {
	return r.Type == TypeError || r.Priority == PriorityCritical || r.Actionable()
}

// BatchEligible reports whether the request may be buffered into a batch
// window instead of rendering immediately.
func (r *NotificationRequest) BatchEligible() bool {
	if r.Priority == PriorityCritical {
		return false
	}
	if r.Actionable() {
		return false
	}
	return r.Type == TypeSuccess || r.Type == TypeInfo
}

// AdmissionRecord is the sliding-window bookkeeping entry for an
// admitted request. Entries older than the widest window are pruned on
// every admission check.
type AdmissionRecord struct {
	ID        string
	Category  Category
	Timestamp time.Time
}
