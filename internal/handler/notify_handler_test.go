package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsedesk/notification-engine/internal/clock"
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/infra/analyticsexporter"
	"github.com/pulsedesk/notification-engine/internal/infra/localstore"
	"github.com/pulsedesk/notification-engine/internal/service/admission"
	"github.com/pulsedesk/notification-engine/internal/service/analytics"
	"github.com/pulsedesk/notification-engine/internal/service/batch"
	"github.com/pulsedesk/notification-engine/internal/service/behavior"
	"github.com/pulsedesk/notification-engine/internal/service/orchestrator"
	"github.com/pulsedesk/notification-engine/internal/service/position"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := localstore.Open(&config.LocalStoreConfig{
		Path:        filepath.Join(t.TempDir(), "notify.db"),
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clk := clock.New()
	behaviorMgr := behavior.NewManager(store)
	admissionCtl := admission.NewController(&config.AdmissionConfig{MaxPer30s: 3, MaxPerMinute: 5}, clk, nil)
	batcher := batch.NewScheduler(&config.BatchConfig{Enabled: false, DebounceWindow: time.Second}, clk, behaviorMgr, nil)
	resolver := position.NewResolver()
	recorder := analytics.NewRecorder(&config.AnalyticsConfig{FlushInterval: time.Minute}, store, analyticsexporter.NewNoopExporter(), clk, nil)

	orch := orchestrator.New(clk, admissionCtl, batcher, behaviorMgr, resolver, nil, recorder, store)
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("start orchestrator: %v", err)
	}
	t.Cleanup(func() { orch.Stop(context.Background()) })

	notifyHandler := NewNotifyHandler(orch)
	metricsHandler := NewMetricsHandler(recorder)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/notify", notifyHandler.HandleNotify)
	v1.POST("/notify/:category", notifyHandler.HandleNotifyCategory)
	v1.POST("/interaction", notifyHandler.HandleInteraction)
	v1.POST("/configure", notifyHandler.HandleConfigure)
	v1.POST("/viewport", notifyHandler.HandleViewport)
	v1.GET("/metrics/summary", metricsHandler.HandleSummary)
	v1.GET("/metrics/insights", metricsHandler.HandleInsights)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleNotify_Accepted(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notify", gin.H{
		"type":     "success",
		"message":  "profile saved",
		"category": "system",
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp notifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NotificationID == "" {
		t.Error("expected a notification id")
	}
}

func TestHandleNotify_MissingMessage(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notify", gin.H{
		"type": "info",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleNotify_InvalidType(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notify", gin.H{
		"type":    "shiny",
		"message": "nope",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleNotify_DuplicateCategoryRejected(t *testing.T) {
	r := setupRouter(t)

	body := gin.H{
		"type":     "info",
		"message":  "sync finished",
		"category": "document",
	}

	if w := doJSON(t, r, http.MethodPost, "/api/v1/notify", body); w.Code != http.StatusAccepted {
		t.Fatalf("first request: expected 202, got %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/notify", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleNotifyCategory_UnknownCategory(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notify/gossip", gin.H{
		"type":    "info",
		"message": "hello",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleNotifyCategory_ClientRoute(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notify/client", gin.H{
		"type":    "success",
		"message": "client updated",
		"context": gin.H{"clientId": "c-17"},
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleInteraction_Validation(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/interaction", gin.H{
		"notification_id": "n-1",
		"kind":            "poke",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind: expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/interaction", gin.H{
		"notification_id": "n-1",
		"kind":            "action",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("action without label: expected 400, got %d", w.Code)
	}

	// Interactions against retired or unknown notifications are no-ops.
	w = doJSON(t, r, http.MethodPost, "/api/v1/interaction", gin.H{
		"notification_id": "never-shown",
		"kind":            "click",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unknown id click: expected 200, got %d", w.Code)
	}
}

func TestHandleInteraction_ClickShownNotification(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/notify", gin.H{
		"type":     "info",
		"message":  "tasks due today",
		"category": "task",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("notify: expected 202, got %d", w.Code)
	}
	var resp notifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/interaction", gin.H{
		"notification_id": resp.NotificationID,
		"kind":            "click",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("click: expected 200, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/metrics/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", w.Code)
	}
	var summary metricsSummaryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Totals.Shown != 1 || summary.Totals.Clicked != 1 {
		t.Errorf("totals = %+v, want shown=1 clicked=1", summary.Totals)
	}
	if summary.EngagementRate != 100 {
		t.Errorf("engagement rate = %v, want 100", summary.EngagementRate)
	}
}

func TestHandleConfigure_PartialUpdate(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/configure", gin.H{
		"mode": "focus",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var settings struct {
		MaxPerMinute int    `json:"max_per_minute"`
		MaxPer30s    int    `json:"max_per_30s"`
		Mode         string `json:"mode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.Mode != "focus" {
		t.Errorf("mode = %q, want focus", settings.Mode)
	}
	if settings.MaxPer30s != 3 || settings.MaxPerMinute != 5 {
		t.Errorf("caps = %d/%d, want unchanged 3/5", settings.MaxPer30s, settings.MaxPerMinute)
	}
}

func TestHandleConfigure_UnknownMode(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/configure", gin.H{
		"mode": "panic",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleViewport(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/viewport", gin.H{
		"width":  390,
		"height": 844,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Device string `json:"device"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Device != "mobile" {
		t.Errorf("device = %q, want mobile", resp.Device)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/viewport", gin.H{
		"width":  0,
		"height": 844,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero width, got %d", w.Code)
	}
}

func TestHandleInsights_EmptyState(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/metrics/insights", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Insights []json.RawMessage `json:"insights"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Insights) != 0 {
		t.Errorf("expected no insights, got %d", len(resp.Insights))
	}
}
