package domain

import (
	"encoding/json"
	"time"
)

// SyncAction is the lifecycle state mirrored with a SyncRecord.
type SyncAction string

const (
	SyncActionCreated   SyncAction = "created"
	SyncActionRead      SyncAction = "read"
	SyncActionDismissed SyncAction = "dismissed"
)

func (a SyncAction) String() string {
	return string(a)
}

// DeviceDescriptor identifies the device a session runs on.
type DeviceDescriptor struct {
	Class          DeviceClass `json:"class"`
	UserAgent      string      `json:"user_agent,omitempty"`
	ViewportWidth  int         `json:"viewport_width"`
	ViewportHeight int         `json:"viewport_height"`
}

// SyncRecord is the remote-mirrored row for a notification, keyed by
// (user, notification id). Conflicts resolve by strictly greater
// UpdatedAt; equal timestamps are a no-op.
type SyncRecord struct {
	UserID         string              `json:"user_id"`
	NotificationID string              `json:"notification_id"`
	SessionID      string              `json:"session_id"`
	Notification   NotificationRequest `json:"notification_data"`
	Action         SyncAction          `json:"action"`
	Device         DeviceDescriptor    `json:"device_info"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// SupersededBy reports whether other wins a last-writer-wins conflict
// against this record.
func (r *SyncRecord) SupersededBy(other *SyncRecord) bool {
	return other.UpdatedAt.After(r.UpdatedAt)
}

// RemoteEventKind distinguishes events arriving on the remote channel.
type RemoteEventKind string

const (
	RemoteEventInsert    RemoteEventKind = "insert"
	RemoteEventUpdate    RemoteEventKind = "update"
	RemoteEventDelete    RemoteEventKind = "delete"
	RemoteEventBroadcast RemoteEventKind = "broadcast"
)

// BroadcastKind is the closed set of non-persisted broadcast messages.
type BroadcastKind string

const (
	BroadcastModeChange     BroadcastKind = "mode_change"
	BroadcastSettingsUpdate BroadcastKind = "settings_update"
	BroadcastBulkAction     BroadcastKind = "bulk_action"
)

// BroadcastMessage applies immediately to local state when received.
type BroadcastMessage struct {
	Kind      BroadcastKind   `json:"kind"`
	SessionID string          `json:"session_id"`
	Mode      string          `json:"mode,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
	Action    string          `json:"action,omitempty"`
}

// RemoteEvent is a single message on the cross-device channel. Exactly
// one of Record or Broadcast is set, matching Kind.
type RemoteEvent struct {
	Kind      RemoteEventKind   `json:"kind"`
	SessionID string            `json:"session_id"`
	Record    *SyncRecord       `json:"record,omitempty"`
	Broadcast *BroadcastMessage `json:"broadcast,omitempty"`
}

// ConnectionState describes the remote channel's link.
type ConnectionState string

const (
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateDisconnected ConnectionState = "disconnected"
)
