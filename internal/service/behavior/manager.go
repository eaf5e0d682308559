// Package behavior maintains the learned per-category user behavior
// profiles that tune batching decisions.
package behavior

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

// Manager guards the in-memory profile map and mediates access to the
// durable store. Profiles are loaded once at start, mutated
// incrementally, and flushed periodically and on stop.
type Manager struct {
	mu       sync.Mutex
	store    domain.BehaviorStore
	profiles map[domain.Category]domain.BehaviorProfile
	dirty    bool
}

func NewManager(store domain.BehaviorStore) *Manager {
	return &Manager{
		store:    store,
		profiles: make(map[domain.Category]domain.BehaviorProfile),
	}
}

// Load pulls the persisted profiles. Malformed data falls back to an
// empty map so a corrupt store can never block delivery.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	profiles, err := m.store.LoadProfiles(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedBehaviorData) {
			slog.WarnContext(ctx, "behavior data malformed, starting from defaults",
				slog.String("error", err.Error()),
			)
			return nil
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for category, profile := range profiles {
		if !profile.Valid() {
			slog.WarnContext(ctx, "dropping out-of-range behavior profile",
				slog.String("category", category.String()),
			)
			continue
		}
		m.profiles[category] = profile
	}

	return nil
}

// Profile returns the learned profile for a category, or the neutral
// default when nothing has been observed yet.
func (m *Manager) Profile(category domain.Category) domain.BehaviorProfile {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.profiles[category]; ok {
		return p
	}
	return domain.DefaultBehaviorProfile()
}

// BatchPreference returns the learned batching preference for a
// category in [0,1].
func (m *Manager) BatchPreference(category domain.Category) float64 {
	return m.Profile(category).BatchPreference()
}

// RecordBatchOutcome folds one batch/no-batch decision into the
// category profile.
func (m *Manager) RecordBatchOutcome(category domain.Category, batched bool) {
	m.update(category, func(p domain.BehaviorProfile) domain.BehaviorProfile {
		return p.ObserveBatchOutcome(batched)
	})
}

// RecordInteraction folds a click/action observation into the profile.
func (m *Manager) RecordInteraction(category domain.Category, interacted bool) {
	m.update(category, func(p domain.BehaviorProfile) domain.BehaviorProfile {
		return p.ObserveInteraction(interacted)
	})
}

// RecordDismissal folds a dismissal observation into the profile.
func (m *Manager) RecordDismissal(category domain.Category, dismissed bool) {
	m.update(category, func(p domain.BehaviorProfile) domain.BehaviorProfile {
		return p.ObserveDismissal(dismissed)
	})
}

func (m *Manager) update(category domain.Category, fn func(domain.BehaviorProfile) domain.BehaviorProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.profiles[category]
	if !ok {
		current = domain.DefaultBehaviorProfile()
	}
	m.profiles[category] = fn(current)
	m.dirty = true
}

// Flush writes the profiles back to the store if anything changed.
func (m *Manager) Flush(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return nil
	}
	snapshot := make(map[domain.Category]domain.BehaviorProfile, len(m.profiles))
	for category, profile := range m.profiles {
		snapshot[category] = profile
	}
	m.dirty = false
	m.mu.Unlock()

	if err := m.store.SaveProfiles(ctx, snapshot); err != nil {
		m.mu.Lock()
		m.dirty = true
		m.mu.Unlock()
		return err
	}

	return nil
}
