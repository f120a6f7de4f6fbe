package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/store"
)

func seedProduct(t *testing.T, s *Store, shopkeeperID string, sku string, qty int) domain.Product {
	t.Helper()
	ctx := context.Background()
	product, err := s.CreateProduct(ctx, domain.Product{
		ShopkeeperID: shopkeeperID,
		Name:         "Item " + sku,
		SKU:          sku,
		Barcode:      sku + "-BC",
		Price:        decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	if _, err := s.AddStockLine(ctx, shopkeeperID, domain.StockLine{
		ProductID:     product.ID,
		StockQuantity: qty,
		SellingPrice:  decimal.NewFromInt(2),
		Name:          product.Name,
	}); err != nil {
		t.Fatalf("add stock line %s: %v", sku, err)
	}
	return *product
}

func TestCreateProductRejectsDuplicateCodes(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedProduct(t, s, "shop-1", "SKU1", 1)

	_, err := s.CreateProduct(ctx, domain.Product{ShopkeeperID: "shop-1", Name: "x", SKU: "SKU1", Barcode: "fresh"})
	if !errors.Is(err, store.ErrDuplicateProduct) {
		t.Fatalf("expected duplicate on sku, got %v", err)
	}
	_, err = s.CreateProduct(ctx, domain.Product{ShopkeeperID: "shop-1", Name: "x", SKU: "fresh", Barcode: "SKU1-BC"})
	if !errors.Is(err, store.ErrDuplicateProduct) {
		t.Fatalf("expected duplicate on barcode, got %v", err)
	}
	if _, err := s.CreateProduct(ctx, domain.Product{ShopkeeperID: "shop-2", Name: "x", SKU: "SKU1", Barcode: "SKU1-BC"}); err != nil {
		t.Fatalf("expected codes scoped per shopkeeper, got %v", err)
	}
}

func TestAddStockLineRejectsSecondLine(t *testing.T) {
	s := New()
	product := seedProduct(t, s, "shop-1", "SKU1", 3)

	_, err := s.AddStockLine(context.Background(), "shop-1", domain.StockLine{ProductID: product.ID, StockQuantity: 1})
	if !errors.Is(err, store.ErrAlreadyInInventory) {
		t.Fatalf("expected ErrAlreadyInInventory, got %v", err)
	}
}

func TestCommitSaleIsAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedProduct(t, s, "shop-1", "A", 5)
	b := seedProduct(t, s, "shop-1", "B", 1)

	_, err := s.CommitSale(ctx, domain.SaleRecord{
		ShopkeeperID: "shop-1",
		Items: []domain.LineItem{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 2},
		},
		PaymentMethod: domain.PaymentCash,
	})
	var stockErr *store.StockError
	if !errors.As(err, &stockErr) || !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if stockErr.ProductID != b.ID {
		t.Fatalf("expected failing product %s, got %s", b.ID, stockErr.ProductID)
	}

	inv, err := s.GetInventory(ctx, "shop-1")
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if inv.Lines[0].StockQuantity != 5 || inv.Lines[1].StockQuantity != 1 {
		t.Fatalf("expected untouched stock, got %d and %d", inv.Lines[0].StockQuantity, inv.Lines[1].StockQuantity)
	}
	sales, _ := s.ListSales(ctx, "shop-1", domain.DateRange{})
	if len(sales) != 0 {
		t.Fatalf("expected no sale recorded, got %d", len(sales))
	}
}

func TestReportSnapshotIsDetached(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	product := seedProduct(t, s, "shop-basic", "A", 4)

	snap, err := s.ReportSnapshot(ctx, "shop-basic", domain.SnapshotQuery{IncludeSales: true})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Shopkeeper == nil || snap.Shopkeeper.SubscriptionPlan != domain.PlanBasic {
		t.Fatalf("expected seeded basic shopkeeper, got %+v", snap.Shopkeeper)
	}

	if _, err := s.CommitSale(ctx, domain.SaleRecord{
		ShopkeeperID:  "shop-basic",
		Items:         []domain.LineItem{{ProductID: product.ID, Quantity: 4}},
		PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if snap.Inventory.Lines[0].StockQuantity != 4 {
		t.Fatalf("expected snapshot unaffected by later commit, got %d", snap.Inventory.Lines[0].StockQuantity)
	}
	if len(snap.Sales) != 0 {
		t.Fatalf("expected empty sales in earlier snapshot, got %d", len(snap.Sales))
	}
}
