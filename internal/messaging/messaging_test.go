package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type placed struct {
	OrderID int64 `json:"order_id"`
}

func (placed) EventType() string { return "order.placed" }

func TestEncode(t *testing.T) {
	msg, err := encode("42", placed{OrderID: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(msg.Key) != "42" {
		t.Errorf("expected key 42, got %s", msg.Key)
	}
	var decoded placed
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.OrderID != 42 {
		t.Errorf("unexpected payload %s", msg.Value)
	}
	if v, _ := header(&msg, HeaderEventType); string(v) != "order.placed" {
		t.Errorf("expected event type header, got %q", v)
	}
	if v, _ := header(&msg, HeaderContentType); string(v) != "application/json" {
		t.Errorf("expected content type header, got %q", v)
	}

	plain, err := encode("k", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := header(&plain, HeaderEventType); ok {
		t.Error("untyped events must not carry an event type")
	}

	if _, err := encode("k", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{}
	carrier := headerCarrier{msg: &msg}

	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")
	carrier.Set("baggage", "k=v")

	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(msg.Headers))
	}
	if carrier.Get("traceparent") != "b" {
		t.Errorf("expected replaced value, got %q", carrier.Get("traceparent"))
	}
	if carrier.Get("missing") != "" {
		t.Error("expected empty value for a missing header")
	}
	if keys := carrier.Keys(); len(keys) != 2 || keys[0] != "traceparent" || keys[1] != "baggage" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestHeaderCarrier_PropagatesTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	msg := kafka.Message{}
	prop.Inject(ctx, headerCarrier{msg: &msg})

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), headerCarrier{msg: &msg}))
	if extracted.TraceID() != traceID || extracted.SpanID() != spanID {
		t.Errorf("trace context lost: %v", extracted)
	}
}

func TestPermanent(t *testing.T) {
	cause := errors.New("bad json")
	err := Permanent(cause)

	if !errors.Is(err, ErrPermanent) || !errors.Is(err, cause) {
		t.Errorf("expected both sentinel and cause, got %v", err)
	}
}
