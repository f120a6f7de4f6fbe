package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/store"
	"github.com/harjot96/POS/internal/xid"
)

type codeKey struct {
	shopkeeperID string
	code         string
}

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	productOrder []string
	bySKU        map[codeKey]string
	byBarcode    map[codeKey]string
	inventories  map[string]domain.InventoryRecord
	sales        map[string]domain.SaleRecord
	saleOrder    []string
	expenses     []domain.ExpenseRecord
	shopkeepers  map[string]domain.Shopkeeper
	categories   map[string]domain.Category
}

func New() *Store {
	return &Store{
		products:    make(map[string]domain.Product),
		bySKU:       make(map[codeKey]string),
		byBarcode:   make(map[codeKey]string),
		inventories: make(map[string]domain.InventoryRecord),
		sales:       make(map[string]domain.SaleRecord),
		expenses:    make([]domain.ExpenseRecord, 0, 64),
		shopkeepers: make(map[string]domain.Shopkeeper),
		categories:  make(map[string]domain.Category),
	}
}

// NewSeeded returns a store with reference categories and two demo
// shopkeepers, one per subscription plan.
func NewSeeded() *Store {
	s := New()
	for _, c := range []domain.Category{
		{ID: "cat-grocery", Name: "Grocery"},
		{ID: "cat-dairy", Name: "Dairy"},
		{ID: "cat-beverage", Name: "Beverage"},
		{ID: "cat-household", Name: "Household"},
		{ID: "cat-snack", Name: "Snack"},
	} {
		s.categories[c.ID] = c
	}
	s.shopkeepers["shop-basic"] = domain.Shopkeeper{ID: "shop-basic", ShopName: "Corner Store", SubscriptionPlan: domain.PlanBasic}
	s.shopkeepers["shop-premium"] = domain.Shopkeeper{ID: "shop-premium", ShopName: "City Mart", SubscriptionPlan: domain.PlanPremium}
	return s
}

// UpsertShopkeeper records a profile owned by the auth provider.
func (s *Store) UpsertShopkeeper(_ context.Context, shopkeeper domain.Shopkeeper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shopkeepers[shopkeeper.ID] = shopkeeper
	return nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ShopkeeperID == "" || product.SKU == "" || product.Barcode == "" || product.Name == "" {
		return nil, &store.ValidationError{Fields: []string{"product"}}
	}
	skuKey := codeKey{product.ShopkeeperID, product.SKU}
	barcodeKey := codeKey{product.ShopkeeperID, product.Barcode}
	if _, exists := s.bySKU[skuKey]; exists {
		return nil, store.ErrDuplicateProduct
	}
	if _, exists := s.byBarcode[barcodeKey]; exists {
		return nil, store.ErrDuplicateProduct
	}

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := store.NowUTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	s.products[product.ID] = product
	s.productOrder = append(s.productOrder, product.ID)
	s.bySKU[skuKey] = product.ID
	s.byBarcode[barcodeKey] = product.ID

	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) FindProductByCode(_ context.Context, shopkeeperID string, sku string, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.bySKU[codeKey{shopkeeperID, sku}]; ok && sku != "" {
		product := s.products[id]
		return &product, nil
	}
	if id, ok := s.byBarcode[codeKey{shopkeeperID, barcode}]; ok && barcode != "" {
		product := s.products[id]
		return &product, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	existing.Name = product.Name
	existing.CategoryID = product.CategoryID
	existing.Price = product.Price
	existing.Description = product.Description
	existing.ImageRef = product.ImageRef
	existing.UpdatedAt = store.NowUTC()
	s.products[existing.ID] = existing

	updated := existing
	return &updated, nil
}

func (s *Store) EnsureInventory(_ context.Context, shopkeeperID string) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := s.ensureInventoryLocked(shopkeeperID)
	out := inv.Clone()
	return &out, nil
}

func (s *Store) ensureInventoryLocked(shopkeeperID string) domain.InventoryRecord {
	inv, exists := s.inventories[shopkeeperID]
	if exists {
		return inv
	}
	now := store.NowUTC()
	inv = domain.InventoryRecord{
		ShopkeeperID: shopkeeperID,
		Lines:        []domain.StockLine{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.inventories[shopkeeperID] = inv
	return inv
}

func (s *Store) GetInventory(_ context.Context, shopkeeperID string) (*domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.inventories[shopkeeperID]
	if !exists {
		return nil, store.ErrInventoryNotFound
	}
	out := inv.Clone()
	return &out, nil
}

func (s *Store) AddStockLine(_ context.Context, shopkeeperID string, line domain.StockLine) (*domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line.StockQuantity < 0 {
		return nil, &store.ValidationError{Fields: []string{"stock_quantity"}}
	}
	inv := s.ensureInventoryLocked(shopkeeperID).Clone()
	if inv.Line(line.ProductID) >= 0 {
		return nil, store.ErrAlreadyInInventory
	}
	inv.Lines = append(inv.Lines, line)
	inv.Version++
	inv.UpdatedAt = store.NowUTC()
	s.inventories[shopkeeperID] = inv

	out := inv.Clone()
	return &out, nil
}

// CommitSale holds the write lock across check, decrement and insert, which
// serializes every sale against the same inventory.
func (s *Store) CommitSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, exists := s.inventories[sale.ShopkeeperID]
	if !exists {
		return nil, store.ErrInventoryNotFound
	}

	lines, prepared, err := store.ReserveStock(&inv, sale)
	if err != nil {
		return nil, err
	}

	if prepared.ID == "" {
		prepared.ID = xid.New("sale")
	}
	if prepared.CreatedAt.IsZero() {
		prepared.CreatedAt = store.NowUTC()
	}

	next := inv.Clone()
	next.Lines = lines
	next.Version++
	next.UpdatedAt = prepared.CreatedAt
	s.inventories[sale.ShopkeeperID] = next

	s.sales[prepared.ID] = cloneSale(prepared)
	s.saleOrder = append(s.saleOrder, prepared.ID)

	out := cloneSale(prepared)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[saleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := cloneSale(sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, shopkeeperID string, r domain.DateRange) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.salesLocked(shopkeeperID, r), nil
}

// salesLocked returns matching sales, newest first.
func (s *Store) salesLocked(shopkeeperID string, r domain.DateRange) []domain.SaleRecord {
	out := make([]domain.SaleRecord, 0, 16)
	for _, id := range s.saleOrder {
		sale := s.sales[id]
		if sale.ShopkeeperID != shopkeeperID || !r.Contains(sale.CreatedAt) {
			continue
		}
		out = append(out, cloneSale(sale))
	}
	slices.SortStableFunc(out, func(a, b domain.SaleRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (s *Store) CreateExpense(_ context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = store.NowUTC()
	}
	if expense.Date.IsZero() {
		expense.Date = expense.CreatedAt
	}
	s.expenses = append(s.expenses, expense)

	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, shopkeeperID string, r domain.DateRange) ([]domain.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expensesLocked(shopkeeperID, r), nil
}

func (s *Store) expensesLocked(shopkeeperID string, r domain.DateRange) []domain.ExpenseRecord {
	out := make([]domain.ExpenseRecord, 0, 16)
	for _, expense := range s.expenses {
		if expense.ShopkeeperID != shopkeeperID || !r.Contains(expense.Date) {
			continue
		}
		out = append(out, expense)
	}
	slices.SortStableFunc(out, func(a, b domain.ExpenseRecord) int {
		return b.Date.Compare(a.Date)
	})
	return out
}

func (s *Store) GetShopkeeper(_ context.Context, shopkeeperID string) (*domain.Shopkeeper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shopkeeper, exists := s.shopkeepers[shopkeeperID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &shopkeeper, nil
}

func (s *Store) GetCategories(_ context.Context, ids []string) (map[string]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Category, len(ids))
	for _, id := range ids {
		if c, ok := s.categories[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// ReportSnapshot reads everything under one read lock.
func (s *Store) ReportSnapshot(_ context.Context, shopkeeperID string, q domain.SnapshotQuery) (*domain.ReportSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &domain.ReportSnapshot{
		Products:   make(map[string]domain.Product),
		Categories: make(map[string]domain.Category),
	}
	if shopkeeper, ok := s.shopkeepers[shopkeeperID]; ok {
		snap.Shopkeeper = &shopkeeper
	}
	if inv, ok := s.inventories[shopkeeperID]; ok {
		clone := inv.Clone()
		snap.Inventory = &clone
	}
	for _, id := range s.productOrder {
		product := s.products[id]
		if product.ShopkeeperID != shopkeeperID {
			continue
		}
		snap.Products[id] = product
		if c, ok := s.categories[product.CategoryID]; ok {
			snap.Categories[c.ID] = c
		}
	}
	if q.IncludeSales {
		snap.Sales = s.salesLocked(shopkeeperID, q.Range)
	}
	if q.IncludeExpenses {
		snap.Expenses = s.expensesLocked(shopkeeperID, q.Range)
	}
	return snap, nil
}

// BackdateSale rewrites a stored sale's timestamp. Used by fixtures that need
// history older than the current day.
func (s *Store) BackdateSale(saleID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sale, ok := s.sales[saleID]; ok {
		sale.CreatedAt = at.UTC()
		s.sales[saleID] = sale
	}
}

func cloneSale(sale domain.SaleRecord) domain.SaleRecord {
	out := sale
	out.Items = make([]domain.LineItem, len(sale.Items))
	copy(out.Items, sale.Items)
	return out
}

var _ store.Repository = (*Store)(nil)
