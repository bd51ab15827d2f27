// test/benchmarks/helpers.go
package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/salesflow-be/internal/adapters/memory"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/services"
)

// benchEnv is an in-memory sale engine with a seeded catalog
type benchEnv struct {
	store      *memory.Store
	sales      *services.SaleService
	reconciler *services.BatchReconciler
	products   []*domain.Product
}

func newBenchEnv(numProducts, stock, concurrency int) (*benchEnv, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	products := make([]*domain.Product, numProducts)
	for i := range products {
		p := &domain.Product{
			SKU:               fmt.Sprintf("BENCH-%04d", i+1),
			Name:              fmt.Sprintf("Bench Product %d", i+1),
			Price:             decimal.NewFromInt(int64(1 + i%20)).Add(decimal.RequireFromString("0.49")),
			StockQuantity:     stock,
			LowStockThreshold: 1,
		}
		if err := store.Products().Create(context.Background(), p); err != nil {
			return nil, err
		}
		products[i] = p
	}

	sales := services.NewSaleService(store.Products(), store.Sales(), store.UnitOfWork(),
		memory.NewKeyedLocker(10*time.Second), logger)

	return &benchEnv{
		store:      store,
		sales:      sales,
		reconciler: services.NewBatchReconciler(sales, store.SyncLogs(), services.ReconcilerConfig{Concurrency: concurrency}, logger),
		products:   products,
	}, nil
}

// basket returns a sale request touching lines consecutive products
// starting at offset
func (e *benchEnv) basket(offset, lines int) *domain.CreateSaleRequest {
	req := &domain.CreateSaleRequest{Items: make([]domain.SaleLineRequest, lines)}
	for i := range req.Items {
		p := e.products[(offset+i)%len(e.products)]
		id := p.ID
		req.Items[i] = domain.SaleLineRequest{ProductID: &id, Quantity: 1}
	}
	return req
}
