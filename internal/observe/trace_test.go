package observe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
)

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestStartMessageSpan(t *testing.T) {
	exp := withTracing(t)

	ctx, span := StartMessageSpan(context.Background(), "g1", "c1", "m1")
	_, stage := StartSpan(ctx, "chat.MetaDecision")
	stage.End()
	span.SetAttributes(AttrOutcome.String("commit"))
	EndSpan(span, nil)

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	child, parent := spans[0], spans[1]
	if parent.Name != "chat.pipeline" || child.Name != "chat.MetaDecision" {
		t.Fatalf("span names = %q, %q", parent.Name, child.Name)
	}
	if child.Parent.SpanID() != parent.SpanContext.SpanID() {
		t.Error("stage span is not a child of the message span")
	}
	want := map[string]string{
		"discord.guild_id":   "g1",
		"discord.channel_id": "c1",
		"discord.message_id": "m1",
		"chat.outcome":       "commit",
	}
	for _, a := range parent.Attributes {
		if w, ok := want[string(a.Key)]; ok {
			if a.Value.AsString() != w {
				t.Errorf("%s = %q, want %q", a.Key, a.Value.AsString(), w)
			}
			delete(want, string(a.Key))
		}
	}
	if len(want) != 0 {
		t.Errorf("missing attributes: %v", want)
	}
	if parent.Status.Code != codes.Unset {
		t.Errorf("status = %v, want unset for a successful message", parent.Status.Code)
	}
}

func TestEndSpan_RecordsError(t *testing.T) {
	exp := withTracing(t)

	_, span := StartMessageSpan(context.Background(), "g1", "c1", "m2")
	EndSpan(span, errors.New("generation timed out"))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Status.Code != codes.Error || s.Status.Description != "generation timed out" {
		t.Errorf("status = %+v, want error", s.Status)
	}
	if len(s.Events) == 0 || s.Events[0].Name != "exception" {
		t.Errorf("events = %v, want a recorded exception", s.Events)
	}
}

func TestLogger(t *testing.T) {
	withTracing(t)

	t.Run("with span", func(t *testing.T) {
		logs := withLogs(t)
		ctx, span := StartSpan(context.Background(), "chat.pipeline")
		defer span.End()

		Logger(ctx).Info("reply sent")
		out := logs.String()
		if !strings.Contains(out, "trace_id="+CorrelationID(ctx)) || !strings.Contains(out, "span_id=") {
			t.Errorf("log line missing trace context: %s", out)
		}
	})

	t.Run("without span", func(t *testing.T) {
		logs := withLogs(t)
		Logger(context.Background()).Info("reply sent")
		if strings.Contains(logs.String(), "trace_id") {
			t.Errorf("log line has trace_id without a span: %s", logs.String())
		}
	})
}
