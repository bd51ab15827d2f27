// internal/adapters/memory/store.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// Store keeps products, sales and audit entries in process memory. It has
// no row locks: callers serialize stock changes through a LockManager,
// and units of work stage their writes until commit.
type Store struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
	skus     map[string]int64
	sales    []*domain.Sale
	logs     []*domain.SyncLog

	nextProductID int64
	nextSaleID    int64
	nextItemID    int64
	nextLogID     int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		products: make(map[int64]*domain.Product),
		skus:     make(map[string]int64),
	}
}

// Products returns the committed product repository
func (s *Store) Products() *ProductRepository {
	return &ProductRepository{store: s}
}

// Sales returns the committed sale repository
func (s *Store) Sales() *SaleRepository {
	return &SaleRepository{store: s}
}

// SyncLogs returns the audit repository
func (s *Store) SyncLogs() *SyncLogRepository {
	return &SyncLogRepository{store: s}
}

// UnitOfWork returns a unit of work over the store
func (s *Store) UnitOfWork() *UnitOfWork {
	return &UnitOfWork{store: s}
}

func skuKey(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

func cloneSale(s *domain.Sale) *domain.Sale {
	c := *s
	c.Items = append([]domain.SaleItem(nil), s.Items...)
	return &c
}

// ProductRepository reads and writes committed products
type ProductRepository struct {
	store *Store
	tx    *memTx
}

var (
	_ ports.ProductRepository = (*ProductRepository)(nil)
	_ ports.StockLedger       = (*ProductRepository)(nil)
)

// Create inserts a product and assigns its id
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	p.PrepareForStorage()

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := skuKey(p.SKU)
	if _, exists := r.store.skus[key]; exists {
		return fmt.Errorf("%w: sku %s already exists", domain.ErrValidation, p.SKU)
	}
	r.store.nextProductID++
	p.ID = r.store.nextProductID
	r.store.products[p.ID] = p.Clone()
	r.store.skus[key] = p.ID
	return nil
}

// Update overwrites a product. It bypasses the sale path and exists for
// catalogue edits.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.products[p.ID]
	if !ok {
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrNotFound)
	}
	p.CreatedAt = current.CreatedAt
	p.PrepareForStorage()
	delete(r.store.skus, skuKey(current.SKU))
	r.store.skus[skuKey(p.SKU)] = p.ID
	r.store.products[p.ID] = p.Clone()
	return nil
}

// FindByID returns nil when the product does not exist
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	if r.tx != nil {
		if p, ok := r.tx.products[id]; ok {
			return p.Clone(), nil
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if p, ok := r.store.products[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

// FindBySKU returns nil when the product does not exist
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	r.store.mu.RLock()
	id, ok := r.store.skus[skuKey(sku)]
	r.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

// FindByName returns nil when no product has the name
func (r *ProductRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var found *domain.Product
	for _, p := range r.store.products {
		if strings.ToLower(strings.TrimSpace(p.Name)) != key {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: product name %q is ambiguous", domain.ErrValidation, name)
		}
		found = p
	}
	if found == nil {
		return nil, nil
	}
	return found.Clone(), nil
}

// Resolve looks up by id first and falls back to SKU
func (r *ProductRepository) Resolve(ctx context.Context, ref domain.ProductRef) (*domain.Product, error) {
	if ref.ID != nil {
		p, err := r.FindByID(ctx, *ref.ID)
		if err != nil || p != nil {
			return p, err
		}
	}
	if strings.TrimSpace(ref.SKU) != "" {
		p, err := r.FindBySKU(ctx, ref.SKU)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, fmt.Errorf("product %s: %w", ref, domain.ErrNotFound)
}

// FindLocked returns staged copies of the products. The store itself has
// no row locks; the caller must hold the LockManager locks for ids.
func (r *ProductRepository) FindLocked(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("FindLocked requires a unit of work")
	}
	out := make(map[int64]*domain.Product, len(ids))
	for _, id := range sortedUnique(ids) {
		p, ok := r.tx.products[id]
		if !ok {
			r.store.mu.RLock()
			committed, exists := r.store.products[id]
			r.store.mu.RUnlock()
			if !exists {
				return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
			}
			p = committed.Clone()
			r.tx.products[id] = p
		}
		out[id] = p
	}
	return out, nil
}

// ReduceStock decrements the staged product
func (r *ProductRepository) ReduceStock(ctx context.Context, p *domain.Product, quantity int) error {
	if r.tx == nil {
		return fmt.Errorf("ReduceStock requires a unit of work")
	}
	staged, ok := r.tx.products[p.ID]
	if !ok {
		return fmt.Errorf("product %d was not locked in this unit", p.ID)
	}
	if err := staged.Deduct(quantity); err != nil {
		return err
	}
	if staged != p {
		p.StockQuantity = staged.StockQuantity
		p.UpdatedAt = staged.UpdatedAt
	}
	return nil
}

// ListUpdatedSince returns products changed after since, oldest change first
func (r *ProductRepository) ListUpdatedSince(ctx context.Context, since time.Time) ([]*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Product
	for _, p := range r.store.products {
		if p.UpdatedAt.After(since) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// ListLowStock returns products at or below their threshold, lowest stock first
func (r *ProductRepository) ListLowStock(ctx context.Context, limit int) ([]*domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Product
	for _, p := range r.store.products {
		if p.IsLowStock() {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQuantity == out[j].StockQuantity {
			return out[i].ID < out[j].ID
		}
		return out[i].StockQuantity < out[j].StockQuantity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaleRepository stores sales in memory
type SaleRepository struct {
	store *Store
	tx    *memTx
}

var _ ports.SaleRepository = (*SaleRepository)(nil)

// Save assigns ids and stages the sale until the unit commits. Outside a
// unit the sale is committed at once.
func (r *SaleRepository) Save(ctx context.Context, sale *domain.Sale) (*domain.Sale, error) {
	r.store.mu.Lock()
	r.store.nextSaleID++
	sale.ID = r.store.nextSaleID
	for i := range sale.Items {
		r.store.nextItemID++
		sale.Items[i].ID = r.store.nextItemID
		sale.Items[i].SaleID = sale.ID
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if r.tx == nil {
		r.store.sales = append(r.store.sales, cloneSale(sale))
	}
	r.store.mu.Unlock()

	if r.tx != nil {
		r.tx.sales = append(r.tx.sales, cloneSale(sale))
	}
	return sale, nil
}

// FindByID returns nil when the sale does not exist
func (r *SaleRepository) FindByID(ctx context.Context, id int64) (*domain.Sale, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, s := range r.store.sales {
		if s.ID == id {
			return cloneSale(s), nil
		}
	}
	return nil, nil
}

// ListByDateRange returns sales in [from, to), newest first
func (r *SaleRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Sale, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Sale
	for _, s := range r.store.sales {
		if !s.SaleDate.Before(from) && s.SaleDate.Before(to) {
			out = append(out, cloneSale(s))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListRecent returns the newest limit sales
func (r *SaleRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Sale, error) {
	r.store.mu.RLock()
	out := make([]*domain.Sale, 0, len(r.store.sales))
	for _, s := range r.store.sales {
		out = append(out, cloneSale(s))
	}
	r.store.mu.RUnlock()

	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProductHistory sums quantities per UTC day, ascending
func (r *SaleRepository) ProductHistory(ctx context.Context, productID int64, since time.Time) ([]domain.DailySales, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	byDay := make(map[string]int)
	for _, s := range r.store.sales {
		if s.SaleDate.Before(since) {
			continue
		}
		day := s.SaleDate.UTC().Format(time.DateOnly)
		for _, item := range s.Items {
			if item.ProductID == productID {
				byDay[day] += item.Quantity
			}
		}
	}

	out := make([]domain.DailySales, 0, len(byDay))
	for day, qty := range byDay {
		out = append(out, domain.DailySales{Date: day, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func sortNewestFirst(sales []*domain.Sale) {
	sort.SliceStable(sales, func(i, j int) bool {
		if sales[i].SaleDate.Equal(sales[j].SaleDate) {
			return sales[i].ID > sales[j].ID
		}
		return sales[i].SaleDate.After(sales[j].SaleDate)
	})
}

// Reports returns the aggregate read repository
func (s *Store) Reports() *ReportRepository {
	return &ReportRepository{store: s}
}

// ReportRepository aggregates committed sales
type ReportRepository struct {
	store *Store
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

// TopProducts ranks products by units sold, then by id
func (r *ReportRepository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]domain.ProductSalesTotal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	totals := make(map[int64]*domain.ProductSalesTotal)
	for _, s := range r.store.sales {
		if s.SaleDate.Before(from) || !s.SaleDate.Before(to) {
			continue
		}
		for _, item := range s.Items {
			t, ok := totals[item.ProductID]
			if !ok {
				t = &domain.ProductSalesTotal{ProductID: item.ProductID, Revenue: decimal.Zero}
				totals[item.ProductID] = t
			}
			t.SKU = item.ProductSKU
			t.Name = item.ProductName
			t.Quantity += item.Quantity
			t.Revenue = t.Revenue.Add(item.Subtotal)
		}
	}

	out := make([]domain.ProductSalesTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity == out[j].Quantity {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Quantity > out[j].Quantity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SyncLogRepository stores audit entries in memory
type SyncLogRepository struct {
	store *Store
}

var _ ports.SyncLogRepository = (*SyncLogRepository)(nil)

// Record appends an entry and assigns its id
func (r *SyncLogRepository) Record(ctx context.Context, entry *domain.SyncLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextLogID++
	entry.ID = r.store.nextLogID
	c := *entry
	r.store.logs = append(r.store.logs, &c)
	return nil
}

// ListRecent returns the newest limit entries
func (r *SyncLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SyncLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.SyncLog, 0, limit)
	for i := len(r.store.logs) - 1; i >= 0 && len(out) < limit; i-- {
		c := *r.store.logs[i]
		out = append(out, &c)
	}
	return out, nil
}

// DeleteOlderThan drops entries synced before cutoff
func (r *SyncLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.logs[:0]
	var removed int64
	for _, l := range r.store.logs {
		if l.SyncTimestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.store.logs = kept
	return removed, nil
}
