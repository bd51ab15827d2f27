// internal/adapters/db/unit_of_work.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// UnitOfWork runs sale writes in one READ COMMITTED transaction. Row
// locks taken by FindLocked wait at most lockTimeout before postgres
// aborts the statement with 55P03.
type UnitOfWork struct {
	db          *Database
	products    *ProductRepository
	sales       *SaleRepository
	lockTimeout time.Duration
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork creates a unit of work bound to the given repositories
func NewUnitOfWork(db *Database, products *ProductRepository, sales *SaleRepository, lockTimeout time.Duration) *UnitOfWork {
	return &UnitOfWork{
		db:          db,
		products:    products,
		sales:       sales,
		lockTimeout: lockTimeout,
	}
}

// Execute runs fn inside a transaction
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos ports.TxRepositories) error) error {
	return u.db.TransactionWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if u.lockTimeout > 0 {
			// SET LOCAL does not accept bind parameters.
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}
		return fn(ctx, ports.TxRepositories{
			Ledger: u.products.withTx(tx),
			Sales:  u.sales.withTx(tx),
		})
	})
}
