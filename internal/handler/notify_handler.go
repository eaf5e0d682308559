package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsedesk/notification-engine/internal/domain"
	"github.com/pulsedesk/notification-engine/internal/observability/tracing"
	"github.com/pulsedesk/notification-engine/internal/service/batch"
	"github.com/pulsedesk/notification-engine/internal/service/orchestrator"
)

// NotifyHandler exposes the orchestration engine over HTTP.
type NotifyHandler struct {
	orch *orchestrator.Orchestrator
}

func NewNotifyHandler(orch *orchestrator.Orchestrator) *NotifyHandler {
	return &NotifyHandler{orch: orch}
}

type notifyRequest struct {
	Type       string            `json:"type" binding:"required"`
	Message    string            `json:"message" binding:"required"`
	Category   string            `json:"category"`
	Priority   string            `json:"priority"`
	Title      string            `json:"title"`
	Entity     string            `json:"entity"`
	Context    map[string]string `json:"context"`
	DurationMS int               `json:"duration_ms"`
	Actions    []actionPayload   `json:"actions"`
}

type actionPayload struct {
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	Path      string `json:"path,omitempty"`
	Method    string `json:"method,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Modal     string `json:"modal,omitempty"`
	SnoozeSec int    `json:"snooze_sec,omitempty"`
}

type notifyResponse struct {
	NotificationID string `json:"notification_id"`
}

func (h *NotifyHandler) HandleNotify(c *gin.Context) {
	h.handleNotify(c, "")
}

// HandleNotifyCategory serves the category-scoped routes, where the
// category comes from the path and unset actions fall back to the
// category presets.
func (h *NotifyHandler) HandleNotifyCategory(c *gin.Context) {
	category := domain.Category(c.Param("category"))
	if !category.Valid() {
		respondError(c, http.StatusBadRequest, "validation_error", "unknown category")
		return
	}
	h.handleNotify(c, category)
}

func (h *NotifyHandler) handleNotify(c *gin.Context, category domain.Category) {
	ctx := c.Request.Context()

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "notify request unmarshal failed",
			slog.String("error", err.Error()),
			slog.String("path", c.Request.URL.Path),
		)
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	opts := orchestrator.Options{
		Category: domain.Category(req.Category),
		Priority: domain.Priority(req.Priority),
		Title:    req.Title,
		Entity:   req.Entity,
		Context:  req.Context,
		Duration: time.Duration(req.DurationMS) * time.Millisecond,
	}
	for _, a := range req.Actions {
		opts.Actions = append(opts.Actions, domain.Action{
			Kind:      domain.ActionKind(a.Kind),
			Label:     a.Label,
			Path:      a.Path,
			Method:    a.Method,
			Endpoint:  a.Endpoint,
			Modal:     a.Modal,
			SnoozeFor: time.Duration(a.SnoozeSec) * time.Second,
		})
	}

	spanCtx, span := tracing.StartNotifySpan(ctx, string(category), req.Type, req.Priority)
	defer span.End()

	var (
		id  string
		err error
	)
	if category != "" {
		id, err = h.notifyCategory(spanCtx, category, domain.Type(req.Type), req.Message, opts)
	} else {
		id, err = h.orch.Notify(spanCtx, domain.Type(req.Type), req.Message, opts)
	}
	tracing.RecordNotifyResult(span, id, err)

	if err != nil {
		if errors.Is(err, domain.ErrAdmissionRejected) {
			respondError(c, http.StatusTooManyRequests, "admission_rejected", err.Error())
			return
		}
		slog.WarnContext(ctx, "notify request refused",
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, notifyResponse{NotificationID: id})
}

func (h *NotifyHandler) notifyCategory(ctx context.Context, category domain.Category, typ domain.Type, message string, opts orchestrator.Options) (string, error) {
	switch category {
	case domain.CategoryAuth:
		return h.orch.NotifyAuth(ctx, typ, message, opts)
	case domain.CategoryClient:
		return h.orch.NotifyClient(ctx, typ, message, opts)
	case domain.CategoryTask:
		return h.orch.NotifyTask(ctx, typ, message, opts)
	case domain.CategoryAI:
		return h.orch.NotifyAI(ctx, typ, message, opts)
	case domain.CategoryDocument:
		return h.orch.NotifyDocument(ctx, typ, message, opts)
	default:
		return h.orch.Notify(ctx, typ, message, opts)
	}
}

type interactionRequest struct {
	NotificationID string `json:"notification_id" binding:"required"`
	Kind           string `json:"kind" binding:"required"`
	ActionLabel    string `json:"action_label"`
}

func (h *NotifyHandler) HandleInteraction(c *gin.Context) {
	ctx := c.Request.Context()

	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	spanCtx, span := tracing.StartInteractionSpan(ctx, req.Kind, req.NotificationID)
	defer span.End()

	switch req.Kind {
	case "click":
		h.orch.Click(spanCtx, req.NotificationID)
	case "dismiss":
		h.orch.Dismiss(spanCtx, req.NotificationID)
	case "action":
		if req.ActionLabel == "" {
			respondError(c, http.StatusBadRequest, "validation_error", "action_label is required for action interactions")
			return
		}
		h.orch.InvokeAction(spanCtx, req.NotificationID, req.ActionLabel)
	default:
		respondError(c, http.StatusBadRequest, "validation_error", "unknown interaction kind")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type configureRequest struct {
	MaxPerMinute    *int    `json:"max_per_minute"`
	MaxPer30s       *int    `json:"max_per_30s"`
	BatchingEnabled *bool   `json:"batching_enabled"`
	Mode            *string `json:"mode"`
}

func (h *NotifyHandler) HandleConfigure(c *gin.Context) {
	ctx := c.Request.Context()

	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if req.Mode != nil {
		switch batch.Mode(*req.Mode) {
		case batch.ModeNormal, batch.ModeBusy, batch.ModeFocus:
		default:
			respondError(c, http.StatusBadRequest, "validation_error", "unknown mode")
			return
		}
	}

	spanCtx, span := tracing.StartConfigureSpan(ctx)
	defer span.End()

	settings := h.orch.Settings()
	if req.MaxPerMinute != nil {
		settings.MaxPerMinute = *req.MaxPerMinute
	}
	if req.MaxPer30s != nil {
		settings.MaxPer30s = *req.MaxPer30s
	}
	if req.BatchingEnabled != nil {
		settings.BatchingEnabled = *req.BatchingEnabled
	}
	if req.Mode != nil {
		settings.Mode = *req.Mode
	}

	h.orch.Configure(spanCtx, settings)

	slog.InfoContext(ctx, "settings updated",
		slog.Int("max_per_minute", settings.MaxPerMinute),
		slog.Int("max_per_30s", settings.MaxPer30s),
		slog.Bool("batching_enabled", settings.BatchingEnabled),
		slog.String("mode", settings.Mode),
	)

	c.JSON(http.StatusOK, settings)
}

func (h *NotifyHandler) HandleViewport(c *gin.Context) {
	var state domain.ViewportState
	if err := c.ShouldBindJSON(&state); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if state.Width <= 0 || state.Height <= 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "viewport dimensions must be positive")
		return
	}

	h.orch.UpdateViewport(state)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "device": state.DeviceClass()})
}

func respondError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{
		"error":   errType,
		"message": message,
	})
}
