// internal/core/ports/unit_of_work.go
package ports

import "context"

// TxRepositories are repositories bound to one atomic unit
type TxRepositories struct {
	Ledger StockLedger
	Sales  SaleRepository
}

// UnitOfWork runs fn atomically. Returning an error rolls back every write
// made through repos.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}
