//go:build integration

package orders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/shopfront/internal/domain"
	"github.com/joao-fontenele/shopfront/internal/orders"
	"github.com/joao-fontenele/shopfront/internal/testutil"
)

func TestEngine_Postgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db := testutil.Postgres(ctx, t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := orders.NewOrderRepository(db)
	engine := orders.NewEngine(orders.NewTxRunner(db), repo, logger)

	userID := testutil.SeedUser(ctx, t, db, "asha")

	t.Run("commits order, lines and stock together", func(t *testing.T) {
		rice := testutil.SeedItem(ctx, t, db, "Rice 1kg", "50.00", 10)
		oil := testutil.SeedItem(ctx, t, db, "Oil 1L", "100.00", 3)

		order, err := engine.PlaceOrder(ctx, orders.PlaceOrderInput{
			UserID:          userID,
			DeliveryAddress: "12 Main Road",
			Lines:           []domain.CartLine{{ItemID: rice, Quantity: 2}, {ItemID: oil, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("place order: %v", err)
		}

		if !order.TotalAmount.Equal(decimal.NewFromInt(210)) {
			t.Errorf("expected total 210, got %s", order.TotalAmount)
		}
		if got := testutil.Stock(ctx, t, db, rice); got != 8 {
			t.Errorf("expected rice stock 8, got %d", got)
		}
		if got := testutil.Stock(ctx, t, db, oil); got != 2 {
			t.Errorf("expected oil stock 2, got %d", got)
		}

		stored, err := repo.GetByID(ctx, order.ID)
		if err != nil || stored == nil {
			t.Fatalf("get order: %v", err)
		}
		if len(stored.Items) != 2 || stored.Items[0].Name != "Rice 1kg" {
			t.Errorf("unexpected stored lines: %+v", stored.Items)
		}
		if !stored.TotalAmount.Equal(decimal.NewFromInt(210)) || !stored.DeliveryFee.Equal(decimal.NewFromInt(10)) {
			t.Errorf("unexpected stored amounts: %s / %s", stored.TotalAmount, stored.DeliveryFee)
		}

		if _, err := db.ExecContext(ctx, `UPDATE items SET price = 75 WHERE id = $1`, rice); err != nil {
			t.Fatalf("reprice: %v", err)
		}
		stored, _ = repo.GetByID(ctx, order.ID)
		if !stored.Items[0].Price.Equal(decimal.NewFromInt(50)) {
			t.Errorf("expected snapshot price 50 after reprice, got %s", stored.Items[0].Price)
		}

		mine, err := repo.ListForUser(ctx, userID)
		if err != nil {
			t.Fatalf("list for user: %v", err)
		}
		if len(mine) == 0 || mine[0].ID != order.ID {
			t.Errorf("expected newest order first, got %+v", mine)
		}

		all, err := repo.ListAll(ctx)
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if len(all) == 0 || all[0].Customer == nil || all[0].Customer.Username != "asha" {
			t.Errorf("expected customer details on privileged listing, got %+v", all)
		}
	})

	t.Run("unknown item leaves stock untouched", func(t *testing.T) {
		rice := testutil.SeedItem(ctx, t, db, "Rice", "50.00", 10)

		_, err := engine.PlaceOrder(ctx, orders.PlaceOrderInput{
			UserID:          userID,
			DeliveryAddress: "addr",
			Lines:           []domain.CartLine{{ItemID: rice, Quantity: 2}, {ItemID: 999999, Quantity: 1}},
		})
		if !errors.Is(err, orders.ErrItemNotFound) {
			t.Fatalf("expected ErrItemNotFound, got %v", err)
		}
		if got := testutil.Stock(ctx, t, db, rice); got != 10 {
			t.Errorf("expected stock 10, got %d", got)
		}
	})

	t.Run("failure after writes rolls back everything", func(t *testing.T) {
		if _, err := db.ExecContext(ctx, `
			CREATE OR REPLACE FUNCTION refuse_cursed() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'cursed item';
			END;
			$$ LANGUAGE plpgsql;
			DROP TRIGGER IF EXISTS refuse_cursed ON items;
			CREATE TRIGGER refuse_cursed BEFORE UPDATE ON items
				FOR EACH ROW WHEN (OLD.name = 'Cursed') EXECUTE FUNCTION refuse_cursed();
		`); err != nil {
			t.Fatalf("create trigger: %v", err)
		}
		t.Cleanup(func() { _, _ = db.ExecContext(context.Background(), `DROP TRIGGER IF EXISTS refuse_cursed ON items`) })

		plain := testutil.SeedItem(ctx, t, db, "Plain", "20.00", 5)
		cursed := testutil.SeedItem(ctx, t, db, "Cursed", "20.00", 5)

		var before int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&before); err != nil {
			t.Fatalf("count orders: %v", err)
		}

		_, err := engine.PlaceOrder(ctx, orders.PlaceOrderInput{
			UserID:          userID,
			DeliveryAddress: "addr",
			Lines:           []domain.CartLine{{ItemID: plain, Quantity: 1}, {ItemID: cursed, Quantity: 1}},
		})
		if !errors.Is(err, orders.ErrCommitFailed) {
			t.Fatalf("expected ErrCommitFailed, got %v", err)
		}

		if got := testutil.Stock(ctx, t, db, plain); got != 5 {
			t.Errorf("expected first decrement rolled back, stock %d", got)
		}
		var after int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&after); err != nil {
			t.Fatalf("count orders: %v", err)
		}
		if after != before {
			t.Errorf("expected no new orders, got %d more", after-before)
		}
	})

	t.Run("concurrent orders never oversell", func(t *testing.T) {
		item := testutil.SeedItem(ctx, t, db, "Last Batch", "10.00", 5)

		const workers = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.PlaceOrder(ctx, orders.PlaceOrderInput{
					UserID:          userID,
					DeliveryAddress: "addr",
					Lines:           []domain.CartLine{{ItemID: item, Quantity: 3}},
				})
				switch {
				case err == nil:
					mu.Lock()
					succeeded++
					mu.Unlock()
				case errors.Is(err, orders.ErrInsufficientStock):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if succeeded != 1 {
			t.Errorf("expected exactly one order to succeed, got %d", succeeded)
		}
		if got := testutil.Stock(ctx, t, db, item); got != 2 {
			t.Errorf("expected stock 2, got %d", got)
		}
	})

	t.Run("crossing carts do not deadlock", func(t *testing.T) {
		a := testutil.SeedItem(ctx, t, db, "Tea", "10.00", 100)
		b := testutil.SeedItem(ctx, t, db, "Sugar", "10.00", 100)

		const rounds = 20
		var wg sync.WaitGroup
		errs := make(chan error, 2*rounds)
		for i := 0; i < rounds; i++ {
			for _, cart := range [][]domain.CartLine{
				{{ItemID: a, Quantity: 1}, {ItemID: b, Quantity: 1}},
				{{ItemID: b, Quantity: 1}, {ItemID: a, Quantity: 1}},
			} {
				wg.Add(1)
				go func(cart []domain.CartLine) {
					defer wg.Done()
					_, err := engine.PlaceOrder(ctx, orders.PlaceOrderInput{
						UserID:          userID,
						DeliveryAddress: "addr",
						Lines:           cart,
					})
					errs <- err
				}(cart)
			}
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("expected every crossing order to succeed, got %v", err)
			}
		}
		if got := testutil.Stock(ctx, t, db, a); got != 100-2*rounds {
			t.Errorf("expected tea stock %d, got %d", 100-2*rounds, got)
		}
		if got := testutil.Stock(ctx, t, db, b); got != 100-2*rounds {
			t.Errorf("expected sugar stock %d, got %d", 100-2*rounds, got)
		}
	})

	t.Run("repeated reads return the same orders", func(t *testing.T) {
		first, err := repo.ListForUser(ctx, userID)
		if err != nil {
			t.Fatalf("list for user: %v", err)
		}
		second, err := repo.ListForUser(ctx, userID)
		if err != nil {
			t.Fatalf("list for user: %v", err)
		}
		if len(first) == 0 {
			t.Fatal("expected orders for the seeded user")
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical results across reads:\n%+v\n%+v", first, second)
		}
	})

	t.Run("concurrent status changes from one state", func(t *testing.T) {
		item := testutil.SeedItem(ctx, t, db, "Soap", "10.00", 5)
		order, err := engine.PlaceOrder(ctx, orders.PlaceOrderInput{
			UserID:          userID,
			DeliveryAddress: "addr",
			Lines:           []domain.CartLine{{ItemID: item, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("place order: %v", err)
		}
		if _, err := engine.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing); err != nil {
			t.Fatalf("to processing: %v", err)
		}

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i, next := range []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled} {
			wg.Add(1)
			go func(i int, next domain.OrderStatus) {
				defer wg.Done()
				_, results[i] = engine.UpdateStatus(ctx, order.ID, next)
			}(i, next)
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, orders.ErrInvalidTransition):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("expected exactly one transition to win, got %d", wins)
		}

		count, err := repo.CountByStatus(ctx, domain.OrderStatusPending)
		if err != nil {
			t.Fatalf("count pending: %v", err)
		}
		if count < 2 {
			t.Errorf("expected at least the two untouched orders pending, got %d", count)
		}
	})
}
