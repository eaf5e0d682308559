package analyticsexporter

import (
	"context"

	"github.com/pulsedesk/notification-engine/internal/domain"
)

type noopExporter struct{}

func NewNoopExporter() domain.AnalyticsExporter {
	return &noopExporter{}
}

func (n *noopExporter) RecordEvents(_ context.Context, _ []domain.AnalyticsEvent) error {
	return nil
}

func (n *noopExporter) RecordSessionSummary(_ context.Context, _ domain.SessionSummary) error {
	return nil
}

func (n *noopExporter) Flush(_ context.Context) error {
	return nil
}

func (n *noopExporter) Close() error {
	return nil
}
