package orders

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/shopfront/internal/catalog"
)

// TxRunner implements Transactor on a Postgres pool.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

type unitOfWork struct {
	catalog *catalog.ItemRepository
	orders  *OrderRepository
}

func (u *unitOfWork) Catalog() CatalogStore { return u.catalog }

func (u *unitOfWork) Orders() OrderStore { return u.orders }

func (t *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	uow := &unitOfWork{
		catalog: catalog.NewItemRepository(tx),
		orders:  NewOrderRepository(tx),
	}

	if err := fn(ctx, uow); err != nil {
		return err
	}

	return tx.Commit()
}
