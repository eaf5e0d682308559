package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const notifyTracerName = "github.com/pulsedesk/notification-engine/internal/service/orchestrator"

func NotifyTracer() trace.Tracer {
	return otel.Tracer(notifyTracerName)
}

func StartNotifySpan(ctx context.Context, category, notifType, priority string) (context.Context, trace.Span) {
	return NotifyTracer().Start(ctx, "notify.submit",
		trace.WithAttributes(
			attribute.String("notification.category", category),
			attribute.String("notification.type", notifType),
			attribute.String("notification.priority", priority),
		),
	)
}

func RecordNotifyResult(span trace.Span, notificationID string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.String("notification.id", notificationID))
	span.SetStatus(codes.Ok, "")
}

func StartInteractionSpan(ctx context.Context, kind, notificationID string) (context.Context, trace.Span) {
	return NotifyTracer().Start(ctx, "notify.interaction."+kind,
		trace.WithAttributes(
			attribute.String("notification.id", notificationID),
		),
	)
}

func StartConfigureSpan(ctx context.Context) (context.Context, trace.Span) {
	return NotifyTracer().Start(ctx, "notify.configure")
}
