package domain

import (
	"context"
	"time"
)

//go:generate mockgen -source=stores.go -destination=stores_mock.go -package=domain

// Settings are the runtime-tunable knobs mirrored across devices.
type Settings struct {
	MaxPerMinute    int    `json:"max_per_minute"`
	MaxPer30s       int    `json:"max_per_30s"`
	BatchingEnabled bool   `json:"batching_enabled"`
	Mode            string `json:"mode"`
}

// BehaviorStore persists the learned per-category behavior profiles.
type BehaviorStore interface {
	LoadProfiles(ctx context.Context) (map[Category]BehaviorProfile, error)
	SaveProfiles(ctx context.Context, profiles map[Category]BehaviorProfile) error
}

// MetricsStore persists the rolling metrics snapshot.
type MetricsStore interface {
	LoadSnapshot(ctx context.Context) (*MetricsSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *MetricsSnapshot) error
}

// SettingsStore persists settings together with their last-updated
// timestamp, which drives the cross-device preference merge.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (Settings, time.Time, error)
	SaveSettings(ctx context.Context, settings Settings, updatedAt time.Time) error
}

// SyncStore is the per-user remote table keyed by (user, notification id).
type SyncStore interface {
	Upsert(ctx context.Context, record *SyncRecord) error
	Get(ctx context.Context, userID, notificationID string) (*SyncRecord, error)
	Delete(ctx context.Context, userID, notificationID string) error
	ListForUser(ctx context.Context, userID string) ([]*SyncRecord, error)
}

// RemoteChannel abstracts the non-persisted cross-device event stream.
// Any pub/sub transport can sit underneath.
type RemoteChannel interface {
	Publish(ctx context.Context, event RemoteEvent) error
	Subscribe(ctx context.Context, handler func(event RemoteEvent)) error
	ConnectionState() ConnectionState
	// SetStateChangeFunc registers a hook invoked on every connection
	// state transition. At most one hook is supported; it must not
	// block.
	SetStateChangeFunc(f func(state ConnectionState))
	Close() error
}

// AnalyticsExporter ships analytics events to an external sink. Export
// failures must never block the delivery path.
type AnalyticsExporter interface {
	RecordEvents(ctx context.Context, events []AnalyticsEvent) error
	RecordSessionSummary(ctx context.Context, summary SessionSummary) error
	Flush(ctx context.Context) error
	Close() error
}
