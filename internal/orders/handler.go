package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopfront/internal/auth"
	"github.com/joao-fontenele/shopfront/internal/domain"
	"github.com/joao-fontenele/shopfront/internal/httpx"
)

type Placer interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, next domain.OrderStatus) (*domain.Order, error)
}

type Reader interface {
	ListForUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error)
}

type Handler struct {
	engine Placer
	reader Reader
	logger *slog.Logger
}

func NewHandler(engine Placer, reader Reader, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		reader: reader,
		logger: logger,
	}
}

type placeOrderRequest struct {
	Items           []domain.CartLine `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string            `json:"delivery_address" validate:"required"`
	DeliveryFee     *decimal.Decimal  `json:"delivery_fee" validate:"omitempty,gte=0"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "access token required")
		return
	}

	var req placeOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	order, err := h.engine.PlaceOrder(r.Context(), PlaceOrderInput{
		UserID:          id.UserID,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryFee:     req.DeliveryFee,
		Lines:           req.Items,
	})
	if err != nil {
		if isRejection(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to place order", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "error creating order")
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "access token required")
		return
	}

	orders, err := h.reader.ListForUser(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", id.UserID)
		h.writeError(w, http.StatusInternalServerError, "error fetching orders")
		return
	}

	h.logger.Info("orders listed", "count", len(orders), "user_id", id.UserID)
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.reader.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list all orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "error fetching orders")
		return
	}

	h.logger.Info("all orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandlePendingCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.reader.CountByStatus(r.Context(), domain.OrderStatusPending)
	if err != nil {
		h.logger.Error("failed to count pending orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "error counting orders")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int{"pending": count})
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=pending processing delivered cancelled"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	order, err := h.engine.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrInvalidTransition):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidStatus):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to update order status", "error", err, "order_id", id)
			h.writeError(w, http.StatusInternalServerError, "error updating order status")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) writeDecodeError(w http.ResponseWriter, err error) {
	var verr *httpx.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": verr.Error(), "fields": verr.Fields})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
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
