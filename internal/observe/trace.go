package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/glyphchat"

// Span attribute keys for chat spans.
const (
	AttrGuildID   = attribute.Key("discord.guild_id")
	AttrChannelID = attribute.Key("discord.channel_id")
	AttrMessageID = attribute.Key("discord.message_id")
	AttrOutcome   = attribute.Key("chat.outcome")
)

// Tracer returns the glyphchat tracer from the global [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartMessageSpan starts the "chat.pipeline" span covering one addressed
// message. Stage spans started from the returned context become its
// children.
func StartMessageSpan(ctx context.Context, guildID, channelID, messageID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "chat.pipeline", trace.WithAttributes(
		AttrGuildID.String(guildID),
		AttrChannelID.String(channelID),
		AttrMessageID.String(messageID),
	))
}

// EndSpan marks span as failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CorrelationID returns the trace ID of the span in ctx, or "" when there is
// none. Log lines and HTTP responses use it to tie related work together.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
