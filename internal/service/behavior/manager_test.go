package behavior

import (
	"context"
	"testing"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

type stubBehaviorStore struct {
	profiles map[domain.Category]domain.BehaviorProfile
	loadErr  error
	saveErr  error
	saves    int
}

func (s *stubBehaviorStore) LoadProfiles(_ context.Context) (map[domain.Category]domain.BehaviorProfile, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.profiles, nil
}

func (s *stubBehaviorStore) SaveProfiles(_ context.Context, profiles map[domain.Category]domain.BehaviorProfile) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.profiles = profiles
	s.saves++
	return nil
}

func TestManager_DefaultProfile(t *testing.T) {
	m := NewManager(nil)

	p := m.Profile(domain.CategoryTask)
	if p.BatchAcceptance != 0.5 || p.InteractionRate != 0.5 || p.DismissRate != 0.5 {
		t.Errorf("unexpected default profile: %+v", p)
	}
	if p.Samples != 0 {
		t.Errorf("default profile should have no samples, got %d", p.Samples)
	}
}

func TestManager_LoadMalformedFallsBack(t *testing.T) {
	store := &stubBehaviorStore{loadErr: domain.ErrMalformedBehaviorData}
	m := NewManager(store)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() should swallow malformed data, got %v", err)
	}

	p := m.Profile(domain.CategoryClient)
	if p != domain.DefaultBehaviorProfile() {
		t.Errorf("expected default profile after malformed load, got %+v", p)
	}
}

func TestManager_LoadDropsOutOfRangeProfiles(t *testing.T) {
	store := &stubBehaviorStore{
		profiles: map[domain.Category]domain.BehaviorProfile{
			domain.CategoryTask: {BatchAcceptance: 1.5, InteractionRate: 0.2, DismissRate: 0.3},
			domain.CategoryAI:   {BatchAcceptance: 0.9, InteractionRate: 0.2, DismissRate: 0.3},
		},
	}
	m := NewManager(store)

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := m.Profile(domain.CategoryTask); got != domain.DefaultBehaviorProfile() {
		t.Errorf("out-of-range profile should fall back to default, got %+v", got)
	}
	if got := m.Profile(domain.CategoryAI); got.BatchAcceptance != 0.9 {
		t.Errorf("valid profile should load, got %+v", got)
	}
}

func TestManager_RepeatedPositiveOutcomesConverge(t *testing.T) {
	m := NewManager(nil)

	for i := 0; i < 25; i++ {
		m.RecordBatchOutcome(domain.CategoryTask, true)

		p := m.Profile(domain.CategoryTask)
		if p.BatchAcceptance < 0 || p.BatchAcceptance > 1 {
			t.Fatalf("batchAcceptance left [0,1] at sample %d: %v", i, p.BatchAcceptance)
		}
	}

	p := m.Profile(domain.CategoryTask)
	if p.BatchAcceptance <= 0.85 {
		t.Errorf("batchAcceptance should approach 1.0 after 25 positive outcomes, got %v", p.BatchAcceptance)
	}
	if p.Samples != 25 {
		t.Errorf("samples = %d, want 25", p.Samples)
	}
}

func TestManager_FlushOnlyWhenDirty(t *testing.T) {
	store := &stubBehaviorStore{}
	m := NewManager(store)

	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if store.saves != 0 {
		t.Errorf("clean manager should not save, saves = %d", store.saves)
	}

	m.RecordDismissal(domain.CategoryClient, true)
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("dirty manager should save once, saves = %d", store.saves)
	}

	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if store.saves != 1 {
		t.Errorf("second flush without changes should be a no-op, saves = %d", store.saves)
	}
}

func TestProfile_EMABounds(t *testing.T) {
	p := domain.DefaultBehaviorProfile()

	for i := 0; i < 100; i++ {
		p = p.ObserveDismissal(false)
	}
	if p.DismissRate < 0 {
		t.Errorf("dismissRate went below 0: %v", p.DismissRate)
	}
	if p.DismissRate > 0.01 {
		t.Errorf("dismissRate should decay toward 0, got %v", p.DismissRate)
	}

	for i := 0; i < 100; i++ {
		p = p.ObserveDismissal(true)
	}
	if p.DismissRate > 1 {
		t.Errorf("dismissRate exceeded 1: %v", p.DismissRate)
	}
	if p.DismissRate < 0.99 {
		t.Errorf("dismissRate should approach 1, got %v", p.DismissRate)
	}
}
