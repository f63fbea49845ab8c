package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopfront/internal/domain"
	"github.com/joao-fontenele/shopfront/internal/httpx"
)

type ItemStore interface {
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	List(ctx context.Context, filter Filter) ([]domain.Item, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, item *domain.Item) error
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id int64) error
}

type Handler struct {
	repo   ItemStore
	logger *slog.Logger
}

func NewHandler(repo ItemStore, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList serves the storefront: only items that can still be ordered.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Category:    r.URL.Query().Get("category"),
		Search:      r.URL.Query().Get("search"),
		InStockOnly: true,
	}

	items, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "error fetching items")
		return
	}

	h.logger.Info("items listed", "count", len(items), "category", filter.Category)
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleShopkeeperList(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.List(r.Context(), Filter{})
	if err != nil {
		h.logger.Error("failed to list items", "error", err)
		h.writeError(w, http.StatusInternalServerError, "error fetching items")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	item, err := h.repo.GetItem(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get item", "error", err, "item_id", id)
		h.writeError(w, http.StatusInternalServerError, "error fetching item")
		return
	}

	if item == nil {
		h.writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.Categories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "error fetching categories")
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}

type itemRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Category    string           `json:"category"`
	Stock       *int             `json:"stock" validate:"required,gte=0"`
	ImageURL    string           `json:"image_url"`
}

func (req itemRequest) toItem() *domain.Item {
	return &domain.Item{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Category:    req.Category,
		Stock:       *req.Stock,
		ImageURL:    req.ImageURL,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	item := req.toItem()
	if err := h.repo.Create(r.Context(), item); err != nil {
		h.logger.Error("failed to create item", "error", err)
		h.writeError(w, http.StatusInternalServerError, "error creating item")
		return
	}

	h.logger.Info("item created", "item_id", item.ID, "stock", item.Stock)
	h.writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	item := req.toItem()
	item.ID = id
	if err := h.repo.Update(r.Context(), item); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			h.writeError(w, http.StatusNotFound, "item not found")
			return
		}
		h.logger.Error("failed to update item", "error", err, "item_id", id)
		h.writeError(w, http.StatusInternalServerError, "error updating item")
		return
	}

	h.logger.Info("item updated", "item_id", id, "stock", item.Stock)
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.itemID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrItemNotFound):
			h.writeError(w, http.StatusNotFound, "item not found")
		case errors.Is(err, ErrItemInUse):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("failed to delete item", "error", err, "item_id", id)
			h.writeError(w, http.StatusInternalServerError, "error deleting item")
		}
		return
	}

	h.logger.Info("item deleted", "item_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted successfully"})
}

func (h *Handler) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
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
