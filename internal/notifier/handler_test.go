package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHandler_HandleSend(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	h, err := NewHandler(meter, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"email", `{"to":"owner@shop.test","subject":"New order #1","body":"Total: 10.00"}`, http.StatusOK},
		{"sms", `{"to":"9876543210","subject":"New order #2","body":"Total: 20.00"}`, http.StatusOK},
		{"missing recipient", `{"subject":"s","body":"b"}`, http.StatusBadRequest},
		{"missing body", `{"to":"a@b.c","subject":"s"}`, http.StatusBadRequest},
		{"malformed", `{"to":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.HandleSend(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp sendResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != "sent" {
				t.Errorf("expected sent, got %s", resp.Status)
			}
			if _, err := uuid.Parse(resp.ID); err != nil {
				t.Errorf("expected a uuid message id, got %q", resp.ID)
			}
		})
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "notifier.sent" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 2 {
		t.Errorf("expected 2 messages counted, got %d", total)
	}
}

func TestChannel(t *testing.T) {
	if channel("a@b.c") != "email" || channel("9876543210") != "sms" {
		t.Error("unexpected channel classification")
	}
}
