package orders

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopfront/internal/catalog"
	"github.com/joao-fontenele/shopfront/internal/domain"
	"github.com/joao-fontenele/shopfront/internal/telemetry"
)

// CatalogStore is the slice of the catalog the engine touches while placing
// an order.
type CatalogStore interface {
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
	DecrementStock(ctx context.Context, id int64, quantity int) error
}

type OrderStore interface {
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error
}

// UnitOfWork exposes stores bound to one transaction.
type UnitOfWork interface {
	Catalog() CatalogStore
	Orders() OrderStore
}

// Transactor runs fn inside a transaction. The transaction commits only when
// fn returns nil and is rolled back on every other path.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

type StatusStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	TransitionStatus(ctx context.Context, id int64, next domain.OrderStatus, from []domain.OrderStatus) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type EngineOption func(*Engine)

func WithFeePolicy(policy FeePolicy) EngineOption {
	return func(e *Engine) {
		e.fees = policy
	}
}

func WithPublisher(publisher Publisher) EngineOption {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithMetrics(metrics *telemetry.OrderMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

type Engine struct {
	tx        Transactor
	statuses  StatusStore
	fees      FeePolicy
	publisher Publisher
	metrics   *telemetry.OrderMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewEngine(tx Transactor, statuses StatusStore, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		tx:       tx,
		statuses: statuses,
		fees:     DefaultFeePolicy(),
		logger:   logger,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

type PlaceOrderInput struct {
	UserID          int64
	DeliveryAddress string
	// DeliveryFee is the fee the customer was shown. When set it must match
	// the fee computed from the subtotal.
	DeliveryFee *decimal.Decimal
	Lines       []domain.CartLine
}

func (in PlaceOrderInput) validate() error {
	if in.UserID <= 0 {
		return &ValidationError{Reason: "user is required"}
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return &ValidationError{Reason: "delivery address is required"}
	}
	if len(in.Lines) == 0 {
		return &ValidationError{Reason: "at least one item is required"}
	}
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return &ValidationError{Reason: fmt.Sprintf("quantity for item %d must be positive", line.ItemID)}
		}
	}
	if in.DeliveryFee != nil && in.DeliveryFee.IsNegative() {
		return &ValidationError{Reason: "delivery fee cannot be negative"}
	}
	return nil
}

// PlaceOrder validates the cart against live stock, prices it, and commits
// the order, its lines and the stock decrements as one transaction. Lines are
// checked in the order given and the first failure is reported.
func (e *Engine) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		e.metrics.RecordFailed(ctx, "validation")
		return nil, err
	}

	var order *domain.Order
	err := e.tx.InTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		lines, subtotal, err := e.price(ctx, uow.Catalog(), in.Lines)
		if err != nil {
			return err
		}

		fee := e.fees.DeliveryFee(subtotal)
		if in.DeliveryFee != nil && !in.DeliveryFee.Equal(fee) {
			return &ValidationError{Reason: fmt.Sprintf("delivery fee %s does not match %s for subtotal %s",
				in.DeliveryFee.StringFixed(2), fee.StringFixed(2), subtotal.StringFixed(2))}
		}

		order = &domain.Order{
			UserID:          in.UserID,
			Status:          domain.OrderStatusPending,
			DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
			DeliveryFee:     fee,
			TotalAmount:     subtotal.Add(fee),
			CreatedAt:       e.now().UTC().Truncate(time.Microsecond),
			Items:           lines,
		}

		if err := uow.Orders().InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if err := uow.Orders().InsertLines(ctx, order.ID, order.Items); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}

		for _, line := range decrementPlan(order.Items) {
			if err := e.decrement(ctx, uow.Catalog(), line); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, in, err)
	}

	e.metrics.RecordPlaced(ctx, order.TotalAmount)
	e.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID,
		"lines", len(order.Items), "total_amount", order.TotalAmount.StringFixed(2))

	e.publishPlaced(ctx, order)

	return order, nil
}

// price resolves every line against the catalog. Quantities for an item that
// appears on several lines accumulate, so the cart as a whole must fit in stock.
func (e *Engine) price(ctx context.Context, items CatalogStore, cart []domain.CartLine) ([]domain.OrderLine, decimal.Decimal, error) {
	lines := make([]domain.OrderLine, 0, len(cart))
	claimed := make(map[int64]int, len(cart))
	subtotal := decimal.Zero

	for _, cl := range cart {
		item, err := items.GetItem(ctx, cl.ItemID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("get item %d: %w", cl.ItemID, err)
		}
		if item == nil {
			return nil, decimal.Zero, &ItemNotFoundError{ItemID: cl.ItemID}
		}

		available := item.Stock - claimed[item.ID]
		if available < cl.Quantity {
			return nil, decimal.Zero, &InsufficientStockError{
				ItemID:    item.ID,
				Name:      item.Name,
				Available: available,
				Requested: cl.Quantity,
			}
		}
		claimed[item.ID] += cl.Quantity

		line := domain.OrderLine{
			ItemID:   item.ID,
			Quantity: cl.Quantity,
			Price:    item.Price,
			Name:     item.Name,
		}
		subtotal = subtotal.Add(line.Amount())
		lines = append(lines, line)
	}

	return lines, subtotal, nil
}

// decrementPlan merges lines per item and sorts them by item id. Concurrent
// orders then lock item rows in the same order and cannot deadlock.
func decrementPlan(lines []domain.OrderLine) []domain.OrderLine {
	merged := make(map[int64]domain.OrderLine, len(lines))
	for _, line := range lines {
		if m, ok := merged[line.ItemID]; ok {
			m.Quantity += line.Quantity
			merged[line.ItemID] = m
			continue
		}
		merged[line.ItemID] = line
	}

	plan := make([]domain.OrderLine, 0, len(merged))
	for _, line := range merged {
		plan = append(plan, line)
	}
	slices.SortFunc(plan, func(a, b domain.OrderLine) int { return cmp.Compare(a.ItemID, b.ItemID) })
	return plan
}

// decrement applies the conditional stock update for one line. Losing a race
// against a concurrent order shows up here even though validation passed.
func (e *Engine) decrement(ctx context.Context, items CatalogStore, line domain.OrderLine) error {
	err := items.DecrementStock(ctx, line.ItemID, line.Quantity)
	if err == nil {
		return nil
	}

	if !errors.Is(err, catalog.ErrInsufficientStock) {
		return fmt.Errorf("decrement stock for item %d: %w", line.ItemID, err)
	}

	stockErr := &InsufficientStockError{ItemID: line.ItemID, Name: line.Name, Requested: line.Quantity}
	if item, getErr := items.GetItem(ctx, line.ItemID); getErr == nil && item != nil {
		stockErr.Available = item.Stock
	}
	return stockErr
}

func (e *Engine) fail(ctx context.Context, in PlaceOrderInput, err error) error {
	if isRejection(err) {
		e.metrics.RecordFailed(ctx, rejectionReason(err))
		e.logger.Info("order rejected", "user_id", in.UserID, "reason", err.Error())
		return err
	}

	e.metrics.RecordFailed(ctx, "commit")
	e.logger.Error("order rolled back", "error", err, "user_id", in.UserID)
	return &CommitError{Err: err}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "validation"
	}
}

// publishPlaced is best effort: the order is already committed. It outlives
// the request so a client disconnect does not drop the event.
func (e *Engine) publishPlaced(ctx context.Context, order *domain.Order) {
	if e.publisher == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		EventID:     uuid.NewString(),
		OrderID:     order.ID,
		UserID:      order.UserID,
		Items:       order.Items,
		TotalAmount: order.TotalAmount,
		Timestamp:   order.CreatedAt,
	}
	if err := e.publisher.Publish(context.WithoutCancel(ctx), strconv.FormatInt(order.ID, 10), event); err != nil {
		e.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
	}
}

// UpdateStatus moves an order along the status graph. The check and the write
// happen in one conditional update so two concurrent updates cannot both
// leave a terminal state.
func (e *Engine) UpdateStatus(ctx context.Context, id int64, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}

	updated, err := e.statuses.TransitionStatus(ctx, id, next, domain.Predecessors(next))
	if err != nil {
		return nil, fmt.Errorf("transition order %d: %w", id, err)
	}

	order, err := e.statuses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	if !updated {
		return nil, &TransitionError{From: order.Status, To: next}
	}

	e.logger.Info("order status updated", "order_id", id, "status", next)
	return order, nil
}
