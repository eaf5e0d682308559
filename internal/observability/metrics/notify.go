package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	notifyMeterName = "notify.orchestrator"
)

type NotifyMetrics struct {
	admissionDecisions metric.Int64Counter
	deferredRetries    metric.Int64Counter
	batchesFormed      metric.Int64Counter
	batchSize          metric.Int64Histogram
	batchFlushDuration metric.Float64Histogram
	syncOutbound       metric.Int64Counter
	syncQueueDepth     metric.Int64UpDownCounter
	analyticsFlush     metric.Float64Histogram
}

func NewNotifyMetrics() (*NotifyMetrics, error) {
	meter := otel.Meter(notifyMeterName)

	admissionDecisions, err := meter.Int64Counter(
		"notify_admission_decisions_total",
		metric.WithDescription("Admission decisions by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	deferredRetries, err := meter.Int64Counter(
		"notify_deferred_retries_total",
		metric.WithDescription("Retry attempts for deferred high-priority requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	batchesFormed, err := meter.Int64Counter(
		"notify_batches_total",
		metric.WithDescription("Batch groups rendered as a single notification"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram(
		"notify_batch_size",
		metric.WithDescription("Number of notifications merged into one batch"),
		metric.WithUnit("{notification}"),
		metric.WithExplicitBucketBoundaries(2, 3, 4, 5, 8, 12, 20),
	)
	if err != nil {
		return nil, err
	}

	batchFlushDuration, err := meter.Float64Histogram(
		"notify_batch_flush_duration_seconds",
		metric.WithDescription("Time spent clustering and rendering a debounce window"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1,
		),
	)
	if err != nil {
		return nil, err
	}

	syncOutbound, err := meter.Int64Counter(
		"notify_sync_outbound_total",
		metric.WithDescription("Outbound sync mirror writes by outcome"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	syncQueueDepth, err := meter.Int64UpDownCounter(
		"notify_sync_offline_queue_depth",
		metric.WithDescription("Items waiting in the offline sync queue"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	analyticsFlush, err := meter.Float64Histogram(
		"notify_analytics_flush_duration_seconds",
		metric.WithDescription("Metrics snapshot persistence duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1,
		),
	)
	if err != nil {
		return nil, err
	}

	return &NotifyMetrics{
		admissionDecisions: admissionDecisions,
		deferredRetries:    deferredRetries,
		batchesFormed:      batchesFormed,
		batchSize:          batchSize,
		batchFlushDuration: batchFlushDuration,
		syncOutbound:       syncOutbound,
		syncQueueDepth:     syncQueueDepth,
		analyticsFlush:     analyticsFlush,
	}, nil
}

func (m *NotifyMetrics) RecordAdmissionDecision(ctx context.Context, outcome, category, priority, reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
		attribute.String("category", category),
		attribute.String("priority", priority),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String("reason", reason))
	}
	m.admissionDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *NotifyMetrics) RecordDeferredRetry(ctx context.Context, category, outcome string) {
	m.deferredRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("outcome", outcome),
	))
}

func (m *NotifyMetrics) RecordBatch(ctx context.Context, category string, size int) {
	m.batchesFormed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
	))
	m.batchSize.Record(ctx, int64(size), metric.WithAttributes(
		attribute.String("category", category),
	))
}

func (m *NotifyMetrics) RecordBatchFlushDuration(ctx context.Context, duration time.Duration) {
	m.batchFlushDuration.Record(ctx, duration.Seconds())
}

func (m *NotifyMetrics) RecordSyncOutbound(ctx context.Context, outcome string) {
	m.syncOutbound.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *NotifyMetrics) AddSyncQueueDepth(ctx context.Context, delta int64) {
	m.syncQueueDepth.Add(ctx, delta)
}

func (m *NotifyMetrics) RecordAnalyticsFlushDuration(ctx context.Context, duration time.Duration, outcome string) {
	m.analyticsFlush.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
