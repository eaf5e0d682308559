// Package localstore persists the learned behavior profiles, the
// metrics snapshot, and the runtime settings in a local sqlite file.
// Everything is stored as serialized records under well-known keys.
package localstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Well-known state keys.
const (
	keyBehaviorProfiles = "behavior_profiles"
	keyMetricsSnapshot  = "metrics_snapshot"
	keySettings         = "settings"
)

// Store implements domain.BehaviorStore, domain.MetricsStore, and
// domain.SettingsStore over one sqlite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at cfg.Path and applies the
// schema.
func Open(cfg *config.LocalStoreConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("local store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Ping verifies the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) put(ctx context.Context, key string, value any, updatedAt time.Time) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO state(key, value, updated_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, string(payload), updatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) get(ctx context.Context, key string) (string, time.Time, error) {
	var value, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM state WHERE key = ?`, key,
	).Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, sql.ErrNoRows
	}
	if err != nil {
		return "", time.Time{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		at = time.Time{}
	}
	return value, at, nil
}

// LoadProfiles implements domain.BehaviorStore. A corrupt record maps
// to ErrMalformedBehaviorData so callers can fall back to defaults.
func (s *Store) LoadProfiles(ctx context.Context) (map[domain.Category]domain.BehaviorProfile, error) {
	value, _, err := s.get(ctx, keyBehaviorProfiles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profiles map[domain.Category]domain.BehaviorProfile
	if err := json.Unmarshal([]byte(value), &profiles); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedBehaviorData, err)
	}
	return profiles, nil
}

// SaveProfiles implements domain.BehaviorStore.
func (s *Store) SaveProfiles(ctx context.Context, profiles map[domain.Category]domain.BehaviorProfile) error {
	return s.put(ctx, keyBehaviorProfiles, profiles, time.Now())
}

// LoadSnapshot implements domain.MetricsStore.
func (s *Store) LoadSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	value, _, err := s.get(ctx, keyMetricsSnapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	snapshot := domain.NewMetricsSnapshot()
	if err := json.Unmarshal([]byte(value), snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// SaveSnapshot implements domain.MetricsStore.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *domain.MetricsSnapshot) error {
	return s.put(ctx, keyMetricsSnapshot, snapshot, time.Now())
}

// LoadSettings implements domain.SettingsStore. The row's update
// timestamp drives the cross-device preference merge.
func (s *Store) LoadSettings(ctx context.Context) (domain.Settings, time.Time, error) {
	value, updatedAt, err := s.get(ctx, keySettings)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, time.Time{}, domain.ErrSettingsNotFound
	}
	if err != nil {
		return domain.Settings{}, time.Time{}, err
	}

	var settings domain.Settings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return domain.Settings{}, time.Time{}, err
	}
	return settings, updatedAt, nil
}

// SaveSettings implements domain.SettingsStore.
func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings, updatedAt time.Time) error {
	return s.put(ctx, keySettings, settings, updatedAt)
}
