//go:build integration
// +build integration

package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ammerola/salesflow-be/internal/adapters/db"
	"github.com/ammerola/salesflow-be/internal/adapters/memory"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
	"github.com/ammerola/salesflow-be/internal/core/services"
	"github.com/ammerola/salesflow-be/test/helpers"
)

type noLocks struct{}

func (noLocks) Acquire(context.Context, []int64) (func(), error) { return func() {}, nil }

type SalesRepositorySuite struct {
	suite.Suite
	testDB   *helpers.TestDB
	products *db.ProductRepository
	sales    *db.SaleRepository
	logs     *db.SyncLogRepository
	reports  *db.ReportRepository
	uow      *db.UnitOfWork
	service  *services.SaleService
	ctx      context.Context
}

func (s *SalesRepositorySuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	logger := helpers.TestLogger()

	s.products = db.NewProductRepository(s.testDB.Database, logger)
	s.sales = db.NewSaleRepository(s.testDB.Database, logger)
	s.logs = db.NewSyncLogRepository(s.testDB.Database, logger)
	s.reports = db.NewReportRepository(s.testDB.Database.SQLDB())
	s.uow = db.NewUnitOfWork(s.testDB.Database, s.products, s.sales, 2*time.Second)
	s.service = services.NewSaleService(s.products, s.sales, s.uow, memory.NewKeyedLocker(5*time.Second), logger)
	s.ctx = context.Background()
}

func (s *SalesRepositorySuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
}

func (s *SalesRepositorySuite) createProduct(sku string, price string, stock int) *domain.Product {
	p := helpers.CreateTestProduct(func(p *domain.Product) {
		p.SKU = sku
		p.Name = "Product " + sku
		p.Price = decimal.RequireFromString(price)
		p.StockQuantity = stock
	})
	s.Require().NoError(s.products.Create(s.ctx, p))
	return p
}

func (s *SalesRepositorySuite) TestCreateSale_TotalsAndSnapshots() {
	p1 := s.createProduct("P1", "10.00", 10)
	p2 := s.createProduct("P2", "5.00", 10)

	sale, err := s.service.CreateSale(s.ctx, &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{
			{ProductID: &p1.ID, Quantity: 2},
			{SKU: "p2", Quantity: 1},
		},
		Actor: "cashier",
	})
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("25.00").Equal(sale.TotalAmount))

	// Re-price and rename after the sale.
	p1.Price = decimal.RequireFromString("99.00")
	p1.Name = "Renamed"
	s.Require().NoError(s.products.Update(s.ctx, p1))

	stored, err := s.sales.FindByID(s.ctx, sale.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Items, 2)
	s.Equal("Product P1", stored.Items[0].ProductName)
	s.True(decimal.RequireFromString("10.00").Equal(stored.Items[0].UnitPrice))
	s.True(decimal.RequireFromString("20.00").Equal(stored.Items[0].Subtotal))
	s.True(decimal.RequireFromString("5.00").Equal(stored.Items[1].Subtotal))

	got, err := s.products.FindByID(s.ctx, p2.ID)
	s.Require().NoError(err)
	s.Equal(9, got.StockQuantity)
}

func (s *SalesRepositorySuite) TestCreateSale_SecondLineFailsRollsBackFirst() {
	p1 := s.createProduct("A", "1.00", 10)
	p2 := s.createProduct("B", "1.00", 1)

	_, err := s.service.CreateSale(s.ctx, &domain.CreateSaleRequest{
		Items: []domain.SaleLineRequest{
			{ProductID: &p1.ID, Quantity: 3},
			{ProductID: &p2.ID, Quantity: 2},
		},
	})
	s.ErrorIs(err, domain.ErrInsufficientStock)

	got, err := s.products.FindByID(s.ctx, p1.ID)
	s.Require().NoError(err)
	s.Equal(10, got.StockQuantity)

	recent, err := s.sales.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(recent)
}

func (s *SalesRepositorySuite) TestConcurrentSales_NeverOversell() {
	p := s.createProduct("HOT", "2.50", 20)

	// No app-level locks: FOR UPDATE alone must serialize the decrements.
	svc := services.NewSaleService(s.products, s.sales, s.uow, noLocks{}, helpers.TestLogger())

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSale(s.ctx, &domain.CreateSaleRequest{
				Items: []domain.SaleLineRequest{{ProductID: &p.ID, Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.products.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(20, sold)
	s.Equal(0, got.StockQuantity)
}

func (s *SalesRepositorySuite) TestFindLocked_TimesOutWhileRowHeld() {
	p := s.createProduct("LOCKED", "1.00", 5)
	short := db.NewUnitOfWork(s.testDB.Database, s.products, s.sales, 100*time.Millisecond)

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.uow.Execute(s.ctx, func(ctx context.Context, repos ports.TxRepositories) error {
			_, err := repos.Ledger.FindLocked(ctx, []int64{p.ID})
			close(held)
			<-done
			return err
		})
	}()
	<-held

	err := short.Execute(s.ctx, func(ctx context.Context, repos ports.TxRepositories) error {
		_, err := repos.Ledger.FindLocked(ctx, []int64{p.ID})
		return err
	})
	close(done)

	s.ErrorIs(err, domain.ErrLockTimeout)
}

func (s *SalesRepositorySuite) TestQueries() {
	p := s.createProduct("Q", "3.00", 100)
	day := func(d, h int) time.Time { return time.Date(2024, 5, d, h, 0, 0, 0, time.UTC) }

	for _, at := range []struct {
		when time.Time
		qty  int
	}{{day(1, 9), 2}, {day(1, 18), 1}, {day(3, 12), 4}} {
		when := at.when
		_, err := s.service.CreateSale(s.ctx, &domain.CreateSaleRequest{
			Items:    []domain.SaleLineRequest{{ProductID: &p.ID, Quantity: at.qty}},
			SaleDate: &when,
		})
		s.Require().NoError(err)
	}

	ranged, err := s.sales.ListByDateRange(s.ctx, day(1, 0), day(3, 12))
	s.Require().NoError(err)
	s.Require().Len(ranged, 2)
	s.True(ranged[0].SaleDate.After(ranged[1].SaleDate))

	history, err := s.sales.ProductHistory(s.ctx, p.ID, day(1, 0))
	s.Require().NoError(err)
	s.Equal([]domain.DailySales{
		{Date: "2024-05-01", Quantity: 3},
		{Date: "2024-05-03", Quantity: 4},
	}, history)

	top, err := s.reports.TopProducts(s.ctx, day(1, 0), day(4, 0), 5)
	s.Require().NoError(err)
	s.Require().Len(top, 1)
	s.Equal(7, top[0].Quantity)
	s.True(decimal.RequireFromString("21.00").Equal(top[0].Revenue))
}

func (s *SalesRepositorySuite) TestSyncLogs() {
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.logs.Record(s.ctx, &domain.SyncLog{
			Actor:         "clerk",
			Source:        domain.SourceOfflineSync,
			SyncTimestamp: now.Add(time.Duration(i) * time.Second),
			Status:        domain.BatchPartial,
			SuccessCount:  i,
		}))
	}

	logs, err := s.logs.ListRecent(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal(2, logs[0].SuccessCount)
	s.Equal(domain.BatchPartial, logs[0].Status)
}

func TestSalesRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(SalesRepositorySuite))
}
