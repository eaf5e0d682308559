//go:build gcloud

package analyticsexporter

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

type bigQueryEvent struct {
	RecordedAt     time.Time `bigquery:"recorded_at"`
	EventTime      time.Time `bigquery:"event_time"`
	Type           string    `bigquery:"type"`
	NotificationID string    `bigquery:"notification_id"`
	Category       string    `bigquery:"category"`
	Priority       string    `bigquery:"priority"`
	Device         string    `bigquery:"device"`
	ViewportWidth  int64     `bigquery:"viewport_width"`
	ViewportHeight int64     `bigquery:"viewport_height"`
	SessionID      string    `bigquery:"session_id"`
	BatchSize      int64     `bigquery:"batch_size"`
}

type bigQuerySession struct {
	RecordedAt       time.Time `bigquery:"recorded_at"`
	SessionID        string    `bigquery:"session_id"`
	StartedAt        time.Time `bigquery:"started_at"`
	EndedAt          time.Time `bigquery:"ended_at"`
	DurationMS       int64     `bigquery:"duration_ms"`
	ActiveDurationMS int64     `bigquery:"active_duration_ms"`
	Interactions     int64     `bigquery:"interactions"`
}

type bigQueryExporter struct {
	client          *bigquery.Client
	eventInserter   *bigquery.Inserter
	sessionInserter *bigquery.Inserter
}

func NewExporter(ctx context.Context, cfg *Config) (domain.AnalyticsExporter, error) {
	if cfg.Disabled {
		slog.InfoContext(ctx, "analytics export disabled")
		return NewNoopExporter(), nil
	}

	if cfg.BigQueryProjectID == "" {
		slog.WarnContext(ctx, "BigQuery project ID not configured, analytics export disabled")
		return NewNoopExporter(), nil
	}

	client, err := bigquery.NewClient(ctx, cfg.BigQueryProjectID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create BigQuery client, analytics export disabled",
			slog.String("error", err.Error()),
			slog.String("project_id", cfg.BigQueryProjectID),
		)
		return NewNoopExporter(), nil
	}

	dataset := client.Dataset(cfg.BigQueryDataset)

	slog.InfoContext(ctx, "analytics exporter initialized",
		slog.String("type", "bigquery"),
		slog.String("project_id", cfg.BigQueryProjectID),
		slog.String("dataset", cfg.BigQueryDataset),
	)

	return &bigQueryExporter{
		client:          client,
		eventInserter:   dataset.Table(cfg.BigQueryEventTable).Inserter(),
		sessionInserter: dataset.Table(cfg.BigQuerySessions).Inserter(),
	}, nil
}

func (e *bigQueryExporter) RecordEvents(ctx context.Context, events []domain.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*bigQueryEvent, 0, len(events))
	for _, event := range events {
		rows = append(rows, &bigQueryEvent{
			RecordedAt:     now,
			EventTime:      event.Timestamp,
			Type:           event.Type.String(),
			NotificationID: event.NotificationID,
			Category:       event.Category.String(),
			Priority:       event.Priority.String(),
			Device:         event.Device.String(),
			ViewportWidth:  int64(event.Viewport.Width),
			ViewportHeight: int64(event.Viewport.Height),
			SessionID:      event.SessionID,
			BatchSize:      int64(event.BatchSize),
		})
	}

	if err := e.eventInserter.Put(ctx, rows); err != nil {
		slog.WarnContext(ctx, "failed to insert notification events to BigQuery",
			slog.String("error", err.Error()),
			slog.Int("record_count", len(events)),
		)
		return err
	}

	return nil
}

func (e *bigQueryExporter) RecordSessionSummary(ctx context.Context, summary domain.SessionSummary) error {
	row := &bigQuerySession{
		RecordedAt:       time.Now(),
		SessionID:        summary.SessionID,
		StartedAt:        summary.StartedAt,
		EndedAt:          summary.EndedAt,
		DurationMS:       summary.Duration.Milliseconds(),
		ActiveDurationMS: summary.ActiveDuration.Milliseconds(),
		Interactions:     int64(summary.Interactions),
	}

	if err := e.sessionInserter.Put(ctx, []*bigQuerySession{row}); err != nil {
		slog.WarnContext(ctx, "failed to insert session summary to BigQuery",
			slog.String("error", err.Error()),
			slog.String("session_id", summary.SessionID),
		)
		return err
	}
	return nil
}

func (e *bigQueryExporter) Flush(ctx context.Context) error {
	return nil
}

func (e *bigQueryExporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
