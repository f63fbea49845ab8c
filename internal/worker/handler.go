package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopfront/internal/domain"
	"github.com/joao-fontenele/shopfront/internal/messaging"
)

// NotificationHandler tells the shopkeeper about every placed order.
type NotificationHandler struct {
	notifierURL string
	recipient   string
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewNotificationHandler(notifierURL, recipient string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifierURL: notifierURL,
		recipient:   recipient,
		httpClient:  client,
		logger:      logger,
	}
}

type notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order placed event: %w", err))
	}
	if event.OrderID <= 0 {
		return messaging.Permanent(fmt.Errorf("order placed event %q has no order id", event.EventID))
	}

	h.logger.Info("processing order placed event", "order_id", event.OrderID, "event_id", event.EventID)

	if err := h.send(ctx, newOrderNotification(h.recipient, event)); err != nil {
		h.logger.Error("failed to notify shopkeeper", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("notify shopkeeper: %w", err)
	}

	h.logger.Info("shopkeeper notified", "order_id", event.OrderID)
	return nil
}

func newOrderNotification(to string, event domain.OrderPlacedEvent) notification {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d from customer %d\n", event.OrderID, event.UserID)
	for _, line := range event.Items {
		name := line.Name
		if name == "" {
			name = fmt.Sprintf("item %d", line.ItemID)
		}
		fmt.Fprintf(&b, "- %s x%d @ %s\n", name, line.Quantity, line.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s", event.TotalAmount.StringFixed(2))

	return notification{
		To:      to,
		Subject: fmt.Sprintf("New order #%d", event.OrderID),
		Body:    b.String(),
	}
}

func (h *NotificationHandler) send(ctx context.Context, n notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifierURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}

	return nil
}
