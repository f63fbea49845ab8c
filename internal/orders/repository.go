package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/shopfront/internal/database"
	"github.com/joao-fontenele/shopfront/internal/domain"
)

type OrderRepository struct {
	db database.DBTX
}

func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) InsertOrder(ctx context.Context, order *domain.Order) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, total_amount, status, delivery_address, delivery_fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, order.UserID, order.TotalAmount, order.Status, order.DeliveryAddress, order.DeliveryFee, order.CreatedAt).
		Scan(&order.ID)
}

// InsertLines stores the lines with their snapshot prices and fills in the
// generated ids.
func (r *OrderRepository) InsertLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error {
	for i := range lines {
		lines[i].OrderID = orderID
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, item_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, orderID, lines[i].ItemID, lines[i].Quantity, lines[i].Price).Scan(&lines[i].ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	orders, err := r.list(ctx, false, `
		SELECT o.id, o.user_id, o.status, o.delivery_address, o.delivery_fee, o.total_amount, o.created_at
		FROM orders o
		WHERE o.id = $1
	`, id)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return nil, nil
	}

	return &orders[0], nil
}

func (r *OrderRepository) ListForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return r.list(ctx, false, `
		SELECT o.id, o.user_id, o.status, o.delivery_address, o.delivery_fee, o.total_amount, o.created_at
		FROM orders o
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC
	`, userID)
}

// ListAll returns every order with the customer's contact details.
func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, true, `
		SELECT o.id, o.user_id, o.status, o.delivery_address, o.delivery_fee, o.total_amount, o.created_at,
			u.username, u.email, u.phone_number
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC, o.id DESC
	`)
}

func (r *OrderRepository) list(ctx context.Context, withCustomer bool, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[int64]*domain.Order)
	var orderIDs []int64

	for rows.Next() {
		order := &domain.Order{Items: []domain.OrderLine{}}
		dest := []any{&order.ID, &order.UserID, &order.Status, &order.DeliveryAddress,
			&order.DeliveryFee, &order.TotalAmount, &order.CreatedAt}
		if withCustomer {
			order.Customer = &domain.Customer{}
			dest = append(dest, &order.Customer.Username, &order.Customer.Email, &order.Customer.PhoneNumber)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadLines(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orderMap map[int64]*domain.Order, orderIDs []int64) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.item_id, oi.quantity, oi.price, i.name
		FROM order_items oi
		JOIN items i ON i.id = oi.item_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Quantity, &line.Price, &line.Name); err != nil {
			return err
		}
		order := orderMap[line.OrderID]
		order.Items = append(order.Items, line)
	}

	return rows.Err()
}

// TransitionStatus sets the status only if the current status is one of from.
// It reports false when no row matched.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id int64, next domain.OrderStatus, from []domain.OrderStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1
		WHERE id = $2 AND status = ANY($3)
	`, next, id, pq.Array(allowed))
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *OrderRepository) CountByStatus(ctx context.Context, status domain.OrderStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return count, nil
}
