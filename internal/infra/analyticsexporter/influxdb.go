//go:build !gcloud

package analyticsexporter

import (
	"context"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

type influxDBExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
}

func NewExporter(ctx context.Context, cfg *Config) (domain.AnalyticsExporter, error) {
	if cfg.Disabled {
		slog.InfoContext(ctx, "analytics export disabled")
		return NewNoopExporter(), nil
	}

	if cfg.InfluxDBToken == "" || cfg.InfluxDBOrg == "" {
		slog.WarnContext(ctx, "InfluxDB token or org not configured, analytics export disabled",
			slog.String("url", cfg.InfluxDBURL),
		)
		return NewNoopExporter(), nil
	}

	client := influxdb2.NewClient(cfg.InfluxDBURL, cfg.InfluxDBToken)
	writeAPI := client.WriteAPIBlocking(cfg.InfluxDBOrg, cfg.InfluxDBBucket)

	slog.InfoContext(ctx, "analytics exporter initialized",
		slog.String("type", "influxdb"),
		slog.String("url", cfg.InfluxDBURL),
		slog.String("bucket", cfg.InfluxDBBucket),
	)

	return &influxDBExporter{
		client:   client,
		writeAPI: writeAPI,
		bucket:   cfg.InfluxDBBucket,
		org:      cfg.InfluxDBOrg,
	}, nil
}

func (e *influxDBExporter) RecordEvents(ctx context.Context, events []domain.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, event := range events {
		point := influxdb2.NewPoint(
			"notification_event",
			map[string]string{
				"type":     event.Type.String(),
				"category": event.Category.String(),
				"priority": event.Priority.String(),
				"device":   event.Device.String(),
				"session":  event.SessionID,
			},
			map[string]any{
				"notification_id": event.NotificationID,
				"viewport_width":  event.Viewport.Width,
				"viewport_height": event.Viewport.Height,
				"batch_size":      event.BatchSize,
			},
			event.Timestamp,
		)

		if err := e.writeAPI.WritePoint(ctx, point); err != nil {
			slog.WarnContext(ctx, "failed to write notification event to InfluxDB",
				slog.String("error", err.Error()),
				slog.String("type", event.Type.String()),
				slog.String("notification_id", event.NotificationID),
			)
			return err
		}
	}

	return nil
}

func (e *influxDBExporter) RecordSessionSummary(ctx context.Context, summary domain.SessionSummary) error {
	point := influxdb2.NewPoint(
		"notification_session",
		map[string]string{
			"session": summary.SessionID,
		},
		map[string]any{
			"duration_ms":        summary.Duration.Milliseconds(),
			"active_duration_ms": summary.ActiveDuration.Milliseconds(),
			"interactions":       summary.Interactions,
		},
		summary.EndedAt,
	)

	if err := e.writeAPI.WritePoint(ctx, point); err != nil {
		slog.WarnContext(ctx, "failed to write session summary to InfluxDB",
			slog.String("error", err.Error()),
			slog.String("session", summary.SessionID),
		)
		return err
	}
	return nil
}

func (e *influxDBExporter) Flush(ctx context.Context) error {
	return nil
}

func (e *influxDBExporter) Close() error {
	if e.client != nil {
		e.client.Close()
	}
	return nil
}
