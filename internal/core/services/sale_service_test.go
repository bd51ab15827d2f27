// internal/core/services/sale_service_test.go
package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/salesflow-be/internal/adapters/memory"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/core/services"
	"github.com/ammerola/salesflow-be/test/helpers"
	"github.com/ammerola/salesflow-be/test/mocks"
)

type memoryEnv struct {
	store    *memory.Store
	products *memory.ProductRepository
	service  *services.SaleService
}

func newMemoryEnv(t *testing.T, opts ...services.SaleServiceOption) *memoryEnv {
	t.Helper()
	store := memory.NewStore()
	products := store.Products()
	return &memoryEnv{
		store:    store,
		products: products,
		service: services.NewSaleService(products, store.Sales(), store.UnitOfWork(),
			memory.NewKeyedLocker(5*time.Second), helpers.TestLogger(), opts...),
	}
}

func (e *memoryEnv) addProduct(t *testing.T, sku, price string, stock int) *domain.Product {
	t.Helper()
	p := helpers.CreateTestProduct(func(p *domain.Product) {
		p.SKU = sku
		p.Name = "Product " + sku
		p.Price = decimal.RequireFromString(price)
		p.StockQuantity = stock
		p.LowStockThreshold = 1
	})
	require.NoError(t, e.products.Create(context.Background(), p))
	return p
}

func (e *memoryEnv) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := e.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.StockQuantity
}

func line(id int64, qty int) domain.SaleLineRequest {
	return domain.SaleLineRequest{ProductID: &id, Quantity: qty}
}

func TestSaleService_CreateSale_PricesAndSnapshotsLines(t *testing.T) {
	env := newMemoryEnv(t)
	p1 := env.addProduct(t, "P1", "10.00", 5)
	p2 := env.addProduct(t, "P2", "5.00", 5)

	sale, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p1.ID, 2), line(p2.ID, 1)},
		Actor: "cashier-1",
	})
	require.NoError(t, err)

	assert.NotZero(t, sale.ID)
	assert.Equal(t, "25.00", sale.TotalAmount.StringFixed(2))
	assert.Equal(t, domain.SourcePOS, sale.Source)
	assert.Equal(t, "cashier-1", sale.CreatedBy)
	require.Len(t, sale.Items, 2)

	assert.Equal(t, "P1", sale.Items[0].ProductSKU)
	assert.Equal(t, "Product P1", sale.Items[0].ProductName)
	assert.True(t, sale.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, sale.Items[0].Subtotal.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, sale.Items[1].Subtotal.Equal(decimal.RequireFromString("5.00")))

	assert.Equal(t, 3, env.stock(t, p1.ID))
	assert.Equal(t, 4, env.stock(t, p2.ID))

	stored, err := env.service.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	helpers.CompareSales(t, sale, stored)
}

func TestSaleService_CreateSale_ResolvesBySKU(t *testing.T) {
	env := newMemoryEnv(t)
	p := env.addProduct(t, "OAT-1L", "2.40", 3)

	sale, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{{SKU: "oat-1l", Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, sale.Items[0].ProductID)
	assert.Equal(t, 0, env.stock(t, p.ID))
}

func TestSaleService_CreateSale_InsufficientStockLeavesStock(t *testing.T) {
	env := newMemoryEnv(t)
	p := env.addProduct(t, "P1", "10.00", 3)

	_, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p.ID, 4)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var se *domain.SaleError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "P1", se.SKU)
	assert.Equal(t, 0, se.Line)

	assert.Equal(t, 3, env.stock(t, p.ID))
}

func TestSaleService_CreateSale_IsAllOrNothing(t *testing.T) {
	env := newMemoryEnv(t)
	p1 := env.addProduct(t, "P1", "10.00", 5)
	p2 := env.addProduct(t, "P2", "5.00", 1)

	_, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p1.ID, 2), line(p2.ID, 2)},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var se *domain.SaleError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Line)

	assert.Equal(t, 5, env.stock(t, p1.ID), "first line must be rolled back")
	assert.Equal(t, 1, env.stock(t, p2.ID))

	recent, err := env.store.Sales().ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSaleService_CreateSale_RejectsAmountsBeyondMaximum(t *testing.T) {
	ctx := context.Background()
	env := newMemoryEnv(t)
	p1 := env.addProduct(t, "BULK1", "1000.00", 20_000_000)
	p2 := env.addProduct(t, "BULK2", "1000.00", 20_000_000)

	_, err := env.service.CreateSale(ctx, &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p2.ID, 1), line(p1.ID, 10_000_000)},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, domain.IsConflict(err))
	var se *domain.SaleError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Line)
	assert.Contains(t, err.Error(), "subtotal 10000000000.00")

	_, err = env.service.CreateSale(ctx, &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p1.ID, 6_000_000), line(p2.ID, 6_000_000)},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, -1, se.Line)
	assert.Contains(t, err.Error(), "total")

	assert.Equal(t, 20_000_000, env.stock(t, p1.ID))
	assert.Equal(t, 20_000_000, env.stock(t, p2.ID))
	recent, err := env.store.Sales().ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSaleService_CreateSale_RepeatedProductCountsAgainstStock(t *testing.T) {
	env := newMemoryEnv(t)
	p := env.addProduct(t, "P1", "1.00", 3)

	_, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p.ID, 2), line(p.ID, 2)},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 3, env.stock(t, p.ID))

	sale, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p.ID, 2), line(p.ID, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, "3.00", sale.TotalAmount.StringFixed(2))
	assert.Equal(t, 0, env.stock(t, p.ID))
}

func TestSaleService_CreateSale_SnapshotSurvivesProductEdits(t *testing.T) {
	ctx := context.Background()
	env := newMemoryEnv(t)
	p := env.addProduct(t, "P1", "10.00", 5)

	sale, err := env.service.CreateSale(ctx, &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(p.ID, 1)},
	})
	require.NoError(t, err)

	edited, err := env.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	edited.SKU = "P1-NEW"
	edited.Name = "Renamed"
	edited.Price = decimal.RequireFromString("99.00")
	require.NoError(t, env.products.Update(ctx, edited))

	stored, err := env.service.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "P1", stored.Items[0].ProductSKU)
	assert.Equal(t, "Product P1", stored.Items[0].ProductName)
	assert.Equal(t, "10.00", stored.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "10.00", stored.TotalAmount.StringFixed(2))
}

func TestSaleService_CreateSale_ConcurrentSalesNeverOversell(t *testing.T) {
	const (
		initialStock = 40
		buyers       = 60
	)
	env := newMemoryEnv(t)
	p := env.addProduct(t, "HOT", "3.50", initialStock)

	var (
		wg   sync.WaitGroup
		sold atomic.Int64
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			_, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
				Items: []domain.SaleLineRequest{line(p.ID, qty)},
			})
			switch {
			case err == nil:
				sold.Add(int64(qty))
			case errors.Is(err, domain.ErrInsufficientStock):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i%3 + 1)
	}
	wg.Wait()

	final := env.stock(t, p.ID)
	assert.GreaterOrEqual(t, final, 0)
	assert.LessOrEqual(t, sold.Load(), int64(initialStock))
	assert.Equal(t, int64(initialStock-final), sold.Load())
}

func TestSaleService_CreateSale_LastUnitGoesToOneBuyer(t *testing.T) {
	for round := 0; round < 20; round++ {
		env := newMemoryEnv(t)
		p := env.addProduct(t, "LAST", "9.99", 1)

		start := make(chan struct{})
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, errs[i] = env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
					Items: []domain.SaleLineRequest{line(p.ID, 1)},
				})
			}()
		}
		close(start)
		wg.Wait()

		var ok, short int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				short++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.Equal(t, 1, ok, "round %d", round)
		require.Equal(t, 1, short, "round %d", round)
		require.Equal(t, 0, env.stock(t, p.ID))
	}
}

func TestSaleService_CreateSale_RaisesLowStockAlert(t *testing.T) {
	ctrl := gomock.NewController(t)
	alerter := mocks.NewMockStockAlerter(ctrl)
	env := newMemoryEnv(t, services.WithStockAlerter(alerter))
	low := env.addProduct(t, "LOW", "1.00", 3)
	plenty := env.addProduct(t, "PLENTY", "1.00", 100)

	alerter.EXPECT().
		LowStock(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, products []*domain.Product) error {
			require.Len(t, products, 1)
			assert.Equal(t, low.ID, products[0].ID)
			assert.Equal(t, 1, products[0].StockQuantity)
			return errors.New("queue down")
		})

	_, err := env.service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{line(low.ID, 2), line(plenty.ID, 1)},
	})
	assert.NoError(t, err, "alert failures must not fail the sale")
}

func TestSaleService_CreateSale_Errors(t *testing.T) {
	beans := helpers.CreateTestProduct(func(p *domain.Product) { p.ID = 3; p.SKU = "BEANS" })
	milk := helpers.CreateTestProduct(func(p *domain.Product) { p.ID = 7; p.SKU = "MILK" })

	tests := []struct {
		name       string
		req        *domain.CreateSaleRequest
		setupMocks func(ledger *mocks.MockStockLedger, locks *mocks.MockLockManager, uow *mocks.MockUnitOfWork)
		wantKind   error
		wantLine   int
	}{
		{
			name:       "zero_quantity_is_rejected_before_any_lookup",
			req:        &domain.CreateSaleRequest{Items: []domain.SaleLineRequest{{SKU: "BEANS", Quantity: 0}}},
			setupMocks: func(*mocks.MockStockLedger, *mocks.MockLockManager, *mocks.MockUnitOfWork) {},
			wantKind:   domain.ErrValidation,
			wantLine:   0,
		},
		{
			name:       "missing_identifier",
			req:        &domain.CreateSaleRequest{Items: []domain.SaleLineRequest{{SKU: "BEANS", Quantity: 1}, {Quantity: 1}}},
			setupMocks: func(*mocks.MockStockLedger, *mocks.MockLockManager, *mocks.MockUnitOfWork) {},
			wantKind:   domain.ErrValidation,
			wantLine:   1,
		},
		{
			name:       "unknown_source",
			req:        &domain.CreateSaleRequest{Source: "fax", Items: []domain.SaleLineRequest{{SKU: "BEANS", Quantity: 1}}},
			setupMocks: func(*mocks.MockStockLedger, *mocks.MockLockManager, *mocks.MockUnitOfWork) {},
			wantKind:   domain.ErrValidation,
			wantLine:   -1,
		},
		{
			name: "unknown_product_names_the_line",
			req:  &domain.CreateSaleRequest{Items: []domain.SaleLineRequest{{SKU: "BEANS", Quantity: 1}, {SKU: "NOPE", Quantity: 1}}},
			setupMocks: func(ledger *mocks.MockStockLedger, _ *mocks.MockLockManager, _ *mocks.MockUnitOfWork) {
				ledger.EXPECT().Resolve(gomock.Any(), domain.ProductRef{SKU: "BEANS"}).Return(beans, nil)
				ledger.EXPECT().Resolve(gomock.Any(), domain.ProductRef{SKU: "NOPE"}).Return(nil, domain.ErrNotFound)
			},
			wantKind: domain.ErrNotFound,
			wantLine: 1,
		},
		{
			name: "resolve_failure_is_persistence",
			req:  &domain.CreateSaleRequest{Items: []domain.SaleLineRequest{{SKU: "BEANS", Quantity: 1}}},
			setupMocks: func(ledger *mocks.MockStockLedger, _ *mocks.MockLockManager, _ *mocks.MockUnitOfWork) {
				ledger.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			wantKind: domain.ErrPersistence,
			wantLine: -1,
		},
		{
			name: "lock_timeout",
			req:  &domain.CreateSaleRequest{Items: []domain.SaleLineRequest{{SKU: "BEANS", Quantity: 1}}},
			setupMocks: func(ledger *mocks.MockStockLedger, locks *mocks.MockLockManager, _ *mocks.MockUnitOfWork) {
				ledger.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(beans, nil)
				locks.EXPECT().Acquire(gomock.Any(), []int64{3}).Return(nil, domain.ErrLockTimeout)
			},
			wantKind: domain.ErrLockTimeout,
			wantLine: -1,
		},
		{
			name: "locks_are_sorted_and_unique_and_storage_errors_become_persistence",
			req: &domain.CreateSaleRequest{Items: []domain.SaleLineRequest{
				{SKU: "MILK", Quantity: 1}, {SKU: "BEANS", Quantity: 1}, {SKU: "MILK", Quantity: 1},
			}},
			setupMocks: func(ledger *mocks.MockStockLedger, locks *mocks.MockLockManager, uow *mocks.MockUnitOfWork) {
				ledger.EXPECT().Resolve(gomock.Any(), domain.ProductRef{SKU: "MILK"}).Return(milk, nil).Times(2)
				ledger.EXPECT().Resolve(gomock.Any(), domain.ProductRef{SKU: "BEANS"}).Return(beans, nil)

				released := false
				locks.EXPECT().Acquire(gomock.Any(), []int64{3, 7}).Return(func() { released = true }, nil)
				uow.EXPECT().
					Execute(gomock.Any(), gomock.Any()).
					DoAndReturn(func(context.Context, func(context.Context, ports.TxRepositories) error) error {
						assert.False(t, released, "locks must be held while the unit runs")
						return errors.New("could not serialize access")
					})
			},
			wantKind: domain.ErrPersistence,
			wantLine: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ledger := mocks.NewMockStockLedger(ctrl)
			locks := mocks.NewMockLockManager(ctrl)
			uow := mocks.NewMockUnitOfWork(ctrl)
			tt.setupMocks(ledger, locks, uow)

			service := services.NewSaleService(ledger, mocks.NewMockSaleRepository(ctrl), uow, locks, helpers.TestLogger())

			sale, err := service.CreateSale(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, sale)
			assert.ErrorIs(t, err, tt.wantKind)

			var se *domain.SaleError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantLine, se.Line)
		})
	}
}

func TestSaleService_CreateSale_SaveFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockStockLedger(ctrl)
	txLedger := mocks.NewMockStockLedger(ctrl)
	txSales := mocks.NewMockSaleRepository(ctrl)
	locks := mocks.NewMockLockManager(ctrl)
	uow := mocks.NewMockUnitOfWork(ctrl)

	product := helpers.CreateTestProduct(func(p *domain.Product) { p.ID = 1; p.StockQuantity = 5 })

	ledger.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(product, nil)
	locks.EXPECT().Acquire(gomock.Any(), []int64{1}).Return(func() {}, nil)
	uow.EXPECT().
		Execute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, ports.TxRepositories) error) error {
			return fn(ctx, ports.TxRepositories{Ledger: txLedger, Sales: txSales})
		})
	txLedger.EXPECT().FindLocked(gomock.Any(), []int64{1}).Return(map[int64]*domain.Product{1: product.Clone()}, nil)
	txLedger.EXPECT().ReduceStock(gomock.Any(), gomock.Any(), 2).Return(nil)
	txSales.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))

	service := services.NewSaleService(ledger, mocks.NewMockSaleRepository(ctrl), uow, locks, helpers.TestLogger())

	_, err := service.CreateSale(context.Background(), &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{{ProductID: &product.ID, Quantity: 2}},
	})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorContains(t, err, "disk full")
}

func TestSaleService_Queries(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		run        func(s *services.SaleService) error
		setupMocks func(repo *mocks.MockSaleRepository)
		wantErr    error
	}{
		{
			name: "sales_today_spans_the_utc_day",
			run: func(s *services.SaleService) error {
				_, err := s.SalesToday(context.Background())
				return err
			},
			setupMocks: func(repo *mocks.MockSaleRepository) {
				repo.EXPECT().ListByDateRange(gomock.Any(), midnight, midnight.AddDate(0, 0, 1)).Return(nil, nil)
			},
		},
		{
			name: "last_days_starts_at_midnight",
			run: func(s *services.SaleService) error {
				_, err := s.SalesLastDays(context.Background(), 7)
				return err
			},
			setupMocks: func(repo *mocks.MockSaleRepository) {
				repo.EXPECT().ListByDateRange(gomock.Any(), midnight.AddDate(0, 0, -7), now.Add(time.Nanosecond)).Return(nil, nil)
			},
		},
		{
			name: "negative_days",
			run: func(s *services.SaleService) error {
				_, err := s.SalesLastDays(context.Background(), -1)
				return err
			},
			setupMocks: func(*mocks.MockSaleRepository) {},
			wantErr:    domain.ErrValidation,
		},
		{
			name: "inverted_range",
			run: func(s *services.SaleService) error {
				_, err := s.SalesBetween(context.Background(), now, now.Add(-time.Hour))
				return err
			},
			setupMocks: func(*mocks.MockSaleRepository) {},
			wantErr:    domain.ErrValidation,
		},
		{
			name: "recent_needs_positive_limit",
			run: func(s *services.SaleService) error {
				_, err := s.RecentSales(context.Background(), 0)
				return err
			},
			setupMocks: func(*mocks.MockSaleRepository) {},
			wantErr:    domain.ErrValidation,
		},
		{
			name: "missing_sale",
			run: func(s *services.SaleService) error {
				_, err := s.GetSale(context.Background(), 99)
				return err
			},
			setupMocks: func(repo *mocks.MockSaleRepository) {
				repo.EXPECT().FindByID(gomock.Any(), int64(99)).Return(nil, nil)
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "history_since_midnight_days_ago",
			run: func(s *services.SaleService) error {
				_, err := s.ProductSalesHistory(context.Background(), 4, 30)
				return err
			},
			setupMocks: func(repo *mocks.MockSaleRepository) {
				repo.EXPECT().
					ProductHistory(gomock.Any(), int64(4), midnight.AddDate(0, 0, -30)).
					Return([]domain.DailySales{{Date: "2026-03-01", Quantity: 2}}, nil)
			},
		},
		{
			name: "history_needs_product",
			run: func(s *services.SaleService) error {
				_, err := s.ProductSalesHistory(context.Background(), 0, 30)
				return err
			},
			setupMocks: func(*mocks.MockSaleRepository) {},
			wantErr:    domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockSaleRepository(ctrl)
			tt.setupMocks(repo)

			service := services.NewSaleService(
				mocks.NewMockStockLedger(ctrl), repo, mocks.NewMockUnitOfWork(ctrl), mocks.NewMockLockManager(ctrl),
				helpers.TestLogger(), services.WithClock(func() time.Time { return now }))

			err := tt.run(service)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
