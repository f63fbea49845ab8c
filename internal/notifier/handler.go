// Package notifier is the delivery sink for outgoing messages. It stands in
// for an SMS or email gateway: messages are validated, logged and counted.
package notifier

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/shopfront/internal/httpx"
)

type Handler struct {
	logger *slog.Logger
	sent   metric.Int64Counter
}

func NewHandler(meter metric.Meter, logger *slog.Logger) (*Handler, error) {
	sent, err := meter.Int64Counter("notifier.sent",
		metric.WithDescription("Messages accepted for delivery"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		logger: logger,
		sent:   sent,
	}, nil
}

type sendRequest struct {
	To      string `json:"to" validate:"required"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := httpx.Decode(r, &req); err != nil {
		var verr *httpx.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "fields": verr.Fields})
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := uuid.NewString()
	h.sent.Add(r.Context(), 1, metric.WithAttributes(attribute.String("channel", channel(req.To))))
	h.logger.Info("message sent", "id", id, "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{ID: id, Status: "sent"})
}

// channel guesses the delivery channel from the address.
func channel(to string) string {
	if strings.Contains(to, "@") {
		return "email"
	}
	return "sms"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
