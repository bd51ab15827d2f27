// internal/adapters/memory/unit_of_work.go
package memory

import (
	"context"
	"fmt"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// memTx holds the writes staged by one unit of work
type memTx struct {
	products map[int64]*domain.Product
	sales    []*domain.Sale
}

// UnitOfWork stages stock changes and sales and applies them together
// when fn returns nil. Ids consumed by a rolled back unit are not reused.
type UnitOfWork struct {
	store *Store
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// Execute runs fn against staged repositories
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos ports.TxRepositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{products: make(map[int64]*domain.Product)}
	repos := ports.TxRepositories{
		Ledger: &ProductRepository{store: u.store, tx: tx},
		Sales:  &SaleRepository{store: u.store, tx: tx},
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unit of work panicked: %v", p)
		}
	}()

	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	u.commit(tx)
	return nil
}

func (u *UnitOfWork) commit(tx *memTx) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for id, staged := range tx.products {
		committed, ok := u.store.products[id]
		if !ok {
			continue
		}
		committed.StockQuantity = staged.StockQuantity
		committed.UpdatedAt = staged.UpdatedAt
	}
	u.store.sales = append(u.store.sales, tx.sales...)
}
