package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
)

type stubMetricsStore struct {
	mu       sync.Mutex
	snapshot *domain.MetricsSnapshot
	saves    int
	loadErr  error
	saveErr  error
}

func (s *stubMetricsStore) LoadSnapshot(_ context.Context) (*domain.MetricsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.snapshot, nil
}

func (s *stubMetricsStore) SaveSnapshot(_ context.Context, snapshot *domain.MetricsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = snapshot
	s.saves++
	return nil
}

type stubExporter struct {
	mu        sync.Mutex
	events    []domain.AnalyticsEvent
	summaries []domain.SessionSummary
	recordErr error
	closed    bool
}

func (e *stubExporter) RecordEvents(_ context.Context, events []domain.AnalyticsEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recordErr != nil {
		return e.recordErr
	}
	e.events = append(e.events, events...)
	return nil
}

func (e *stubExporter) RecordSessionSummary(_ context.Context, summary domain.SessionSummary) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summaries = append(e.summaries, summary)
	return nil
}

func (e *stubExporter) Flush(_ context.Context) error { return nil }

func (e *stubExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func newTestRecorder(t *testing.T) (*Recorder, *stubMetricsStore, *stubExporter, *clock.Fake) {
	t.Helper()
	store := &stubMetricsStore{}
	exporter := &stubExporter{}
	clk := clock.NewFake(time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC))
	cfg := &config.AnalyticsConfig{FlushInterval: 5 * time.Minute}
	return NewRecorder(cfg, store, exporter, clk, nil), store, exporter, clk
}

func taskRequest(id string) *domain.NotificationRequest {
	return &domain.NotificationRequest{
		ID:       id,
		Category: domain.CategoryTask,
		Type:     domain.TypeSuccess,
		Priority: domain.PriorityNormal,
		Message:  "Task saved",
	}
}

func TestRecordShown_PopulatesAggregates(t *testing.T) {
	r, _, _, _ := newTestRecorder(t)
	r.UpdateViewport(domain.Viewport{Width: 1440, Height: 900})

	r.RecordShown(taskRequest("n-1"))
	r.RecordShown(taskRequest("n-2"))

	snapshot := r.Snapshot()
	if got := snapshot.ByCategory[domain.CategoryTask].Shown; got != 2 {
		t.Errorf("category shown = %d, want 2", got)
	}
	if got := snapshot.ByType[domain.TypeSuccess].Shown; got != 2 {
		t.Errorf("type shown = %d, want 2", got)
	}
	if got := snapshot.ByPriority[domain.PriorityNormal].Shown; got != 2 {
		t.Errorf("priority shown = %d, want 2", got)
	}
	if got := snapshot.ByDevice[domain.DeviceDesktop].Shown; got != 2 {
		t.Errorf("device shown = %d, want 2", got)
	}
	if got := snapshot.Hourly[14]; got != 2 {
		t.Errorf("hourly[14] = %d, want 2", got)
	}
	if got := snapshot.Daily["2025-06-02"]; got != 2 {
		t.Errorf("daily = %d, want 2", got)
	}
	if got := snapshot.Monthly["2025-06"]; got != 2 {
		t.Errorf("monthly = %d, want 2", got)
	}
}

func TestEngagementRate(t *testing.T) {
	r, _, _, _ := newTestRecorder(t)

	if got := r.EngagementRate(); got != 0 {
		t.Fatalf("empty rate = %v, want exactly 0", got)
	}

	for i := 0; i < 3; i++ {
		r.RecordShown(taskRequest(fmt.Sprintf("n-%d", i)))
	}
	r.RecordClicked(taskRequest("n-0"))
	r.RecordClicked(taskRequest("n-1"))

	want := 2.0 / 3.0 * 100
	if got := r.EngagementRate(); math.Abs(got-want) > 1e-9 {
		t.Errorf("rate = %v, want %v", got, want)
	}
}

func TestResponseSamples_FirstInteractionOnly(t *testing.T) {
	r, _, _, clk := newTestRecorder(t)

	req := taskRequest("n-1")
	r.RecordShown(req)
	clk.Advance(1200 * time.Millisecond)
	r.RecordClicked(req)
	clk.Advance(3 * time.Second)
	r.RecordDismissed(req)

	samples := r.Snapshot().ResponseSamples[domain.CategoryTask]
	if len(samples) != 1 {
		t.Fatalf("samples = %v, want exactly one", samples)
	}
	if samples[0] != 1200 {
		t.Errorf("sample = %v ms, want 1200", samples[0])
	}
}

func TestResponseSamples_Capped(t *testing.T) {
	r, _, _, clk := newTestRecorder(t)

	for i := 0; i < domain.ResponseSampleCap+10; i++ {
		req := taskRequest(fmt.Sprintf("n-%d", i))
		r.RecordShown(req)
		clk.Advance(100 * time.Millisecond)
		r.RecordClicked(req)
	}

	samples := r.Snapshot().ResponseSamples[domain.CategoryTask]
	if len(samples) != domain.ResponseSampleCap {
		t.Errorf("samples = %d, want cap %d", len(samples), domain.ResponseSampleCap)
	}
}

func TestResponseAverages_PerPriority(t *testing.T) {
	r, _, _, clk := newTestRecorder(t)

	high := taskRequest("n-1")
	high.Priority = domain.PriorityHigh
	r.RecordShown(high)
	clk.Advance(1000 * time.Millisecond)
	r.RecordClicked(high)

	if got := r.ResponseAverage(domain.PriorityHigh); got != 1000 {
		t.Fatalf("first sample should seed the average, got %v", got)
	}

	next := taskRequest("n-2")
	next.Priority = domain.PriorityHigh
	r.RecordShown(next)
	clk.Advance(2000 * time.Millisecond)
	r.RecordClicked(next)

	want := (1-domain.ResponseAlpha)*1000 + domain.ResponseAlpha*2000
	if got := r.ResponseAverage(domain.PriorityHigh); math.Abs(got-want) > 1e-9 {
		t.Errorf("average = %v, want %v", got, want)
	}
	if got := r.ResponseAverage(domain.PriorityNormal); got != 0 {
		t.Errorf("untouched priority average = %v, want 0", got)
	}

	if got := r.Snapshot().ResponseAverages[domain.PriorityHigh]; math.Abs(got-want) > 1e-9 {
		t.Errorf("snapshot average = %v, want %v", got, want)
	}
}

func TestCategoryRates(t *testing.T) {
	r, _, _, _ := newTestRecorder(t)

	r.RecordShown(taskRequest("t-1"))
	r.RecordShown(taskRequest("t-2"))
	r.RecordClicked(taskRequest("t-1"))

	client := &domain.NotificationRequest{
		ID:       "c-1",
		Category: domain.CategoryClient,
		Type:     domain.TypeInfo,
		Priority: domain.PriorityNormal,
		Message:  "Profile updated",
	}
	r.RecordShown(client)
	r.RecordDismissed(client)

	if got := r.CategoryEngagementRate(domain.CategoryTask); got != 50 {
		t.Errorf("task engagement = %v, want 50", got)
	}
	if got := r.CategoryDismissalRate(domain.CategoryClient); got != 100 {
		t.Errorf("client dismissal = %v, want 100", got)
	}
	if got := r.CategoryEngagementRate(domain.CategoryClient); got != 0 {
		t.Errorf("client engagement = %v, want 0", got)
	}
	if got := r.CategoryEngagementRate(domain.CategoryAuth); got != 0 {
		t.Errorf("rate for a never-shown category = %v, want exactly 0", got)
	}
}

func TestRecordBatch_SizesCapped(t *testing.T) {
	r, _, _, _ := newTestRecorder(t)

	for i := 0; i < domain.BatchSizeCap+5; i++ {
		r.RecordBatch(taskRequest(fmt.Sprintf("b-%d", i)), 3)
	}

	snapshot := r.Snapshot()
	if snapshot.BatchesShown != int64(domain.BatchSizeCap+5) {
		t.Errorf("batches shown = %d, want %d", snapshot.BatchesShown, domain.BatchSizeCap+5)
	}
	if len(snapshot.BatchSizes) != domain.BatchSizeCap {
		t.Errorf("batch sizes = %d, want cap %d", len(snapshot.BatchSizes), domain.BatchSizeCap)
	}
}

func TestFlush_ShipsEventsAndSavesSnapshot(t *testing.T) {
	r, store, exporter, _ := newTestRecorder(t)
	ctx := context.Background()

	r.RecordShown(taskRequest("n-1"))
	r.RecordClicked(taskRequest("n-1"))
	r.Flush(ctx)

	if len(exporter.events) != 2 {
		t.Fatalf("exported %d events, want 2", len(exporter.events))
	}
	if exporter.events[0].Type != domain.EventShown || exporter.events[1].Type != domain.EventClicked {
		t.Errorf("event order = %v, %v", exporter.events[0].Type, exporter.events[1].Type)
	}
	if store.saves != 1 {
		t.Errorf("snapshot saves = %d, want 1", store.saves)
	}

	// A second flush with nothing pending exports nothing new.
	r.Flush(ctx)
	if len(exporter.events) != 2 {
		t.Errorf("exported %d events after empty flush, want 2", len(exporter.events))
	}
}

func TestFlush_RetainsEventsOnExportFailure(t *testing.T) {
	r, _, exporter, _ := newTestRecorder(t)
	ctx := context.Background()

	r.RecordShown(taskRequest("n-1"))
	exporter.recordErr = errors.New("sink down")
	r.Flush(ctx)

	if len(exporter.events) != 0 {
		t.Fatalf("no events should land while the sink is down")
	}

	exporter.recordErr = nil
	r.Flush(ctx)
	if len(exporter.events) != 1 {
		t.Errorf("retained event should ship on the next flush, got %d", len(exporter.events))
	}
}

func TestStop_AppendsSessionSummary(t *testing.T) {
	r, store, exporter, clk := newTestRecorder(t)
	ctx := context.Background()

	r.Start(ctx)
	r.RecordShown(taskRequest("n-1"))
	clk.Advance(2 * time.Second)
	r.RecordClicked(taskRequest("n-1"))
	clk.Advance(10 * time.Minute)
	r.Stop(ctx)

	if len(exporter.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(exporter.summaries))
	}
	summary := exporter.summaries[0]
	if summary.SessionID != r.SessionID() {
		t.Errorf("summary session = %q, want %q", summary.SessionID, r.SessionID())
	}
	if summary.Duration != 10*time.Minute+2*time.Second {
		t.Errorf("duration = %v", summary.Duration)
	}
	if summary.ActiveDuration != 2*time.Second {
		t.Errorf("active duration = %v, want 2s", summary.ActiveDuration)
	}
	if summary.Interactions != 1 {
		t.Errorf("interactions = %d, want 1", summary.Interactions)
	}
	if !exporter.closed {
		t.Errorf("exporter should be closed on stop")
	}

	store.mu.Lock()
	saved := store.snapshot
	store.mu.Unlock()
	if saved == nil || len(saved.Sessions) != 1 {
		t.Fatalf("persisted snapshot should carry the session history")
	}
}

func TestStop_RepeatedStopRecordsOneSummary(t *testing.T) {
	r, _, exporter, clk := newTestRecorder(t)
	ctx := context.Background()

	r.Start(ctx)
	clk.Advance(time.Minute)
	r.Stop(ctx)
	r.Stop(ctx)

	if len(exporter.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(exporter.summaries))
	}
	if got := len(r.Snapshot().Sessions); got != 1 {
		t.Errorf("session history = %d entries, want 1", got)
	}
}

func TestStart_RecoversPersistedSnapshot(t *testing.T) {
	r, store, _, _ := newTestRecorder(t)

	persisted := domain.NewMetricsSnapshot()
	persisted.ByCategory[domain.CategoryTask] = &domain.CounterSet{Shown: 7}
	store.snapshot = persisted

	r.Start(context.Background())
	defer r.Stop(context.Background())

	r.RecordShown(taskRequest("n-1"))
	if got := r.Snapshot().ByCategory[domain.CategoryTask].Shown; got != 8 {
		t.Errorf("shown = %d, want persisted 7 plus 1", got)
	}
}

func TestInsights(t *testing.T) {
	tests := []struct {
		name      string
		shape     func(s *domain.MetricsSnapshot)
		wantCodes map[string]domain.InsightLevel
	}{
		{
			name:      "no data yields nothing",
			shape:     func(s *domain.MetricsSnapshot) {},
			wantCodes: map[string]domain.InsightLevel{},
		},
		{
			name: "low engagement warns",
			shape: func(s *domain.MetricsSnapshot) {
				s.ByCategory[domain.CategoryTask] = &domain.CounterSet{Shown: 10, Clicked: 1}
				s.Hourly[9] = 10
				s.Daily["2025-06-02"] = 10
			},
			wantCodes: map[string]domain.InsightLevel{
				"low_engagement": domain.InsightWarning,
				"peak_hour":      domain.InsightInfo,
				"peak_day":       domain.InsightInfo,
			},
		},
		{
			name: "high engagement succeeds",
			shape: func(s *domain.MetricsSnapshot) {
				s.ByCategory[domain.CategoryTask] = &domain.CounterSet{Shown: 10, Clicked: 7}
			},
			wantCodes: map[string]domain.InsightLevel{
				"high_engagement": domain.InsightSuccess,
			},
		},
		{
			name: "heavy dismissal warns",
			shape: func(s *domain.MetricsSnapshot) {
				s.ByCategory[domain.CategoryTask] = &domain.CounterSet{Shown: 10, Clicked: 5, Dismissed: 5}
			},
			wantCodes: map[string]domain.InsightLevel{
				"high_dismissal": domain.InsightWarning,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := domain.NewMetricsSnapshot()
			tt.shape(snapshot)

			got := insightsFor(snapshot)
			codes := make(map[string]domain.InsightLevel, len(got))
			for _, insight := range got {
				codes[insight.Code] = insight.Level
			}
			for code, level := range tt.wantCodes {
				if codes[code] != level {
					t.Errorf("missing insight %s at level %s, got %v", code, level, codes)
				}
			}
			for code := range codes {
				if _, ok := tt.wantCodes[code]; !ok && code != "peak_hour" && code != "peak_day" {
					t.Errorf("unexpected insight %s", code)
				}
			}
		})
	}
}
