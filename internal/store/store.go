package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harjot96/POS/internal/domain"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrDuplicateProduct      = errors.New("product already exists")
	ErrAlreadyInInventory    = errors.New("product already exists in inventory")
	ErrInventoryNotFound     = errors.New("inventory not found for this shopkeeper")
	ErrProductNotInInventory = errors.New("product not found in inventory")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrConflict              = errors.New("concurrent update conflict")
)

// ValidationError lists every offending field of a request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StockError names the product a sale was rejected for.
type StockError struct {
	Err         error
	ProductID   string
	ProductName string
}

func (e *StockError) Error() string {
	label := e.ProductName
	if label == "" {
		label = e.ProductID
	}
	return fmt.Sprintf("%s: %s", e.Err, label)
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// Unavailable marks an infrastructure error. Domain sentinels pass through.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrValidation, ErrNotFound, ErrDuplicateProduct, ErrAlreadyInInventory,
		ErrInventoryNotFound, ErrProductNotInInventory, ErrInsufficientStock,
		ErrStorageUnavailable, ErrConflict,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	FindProductByCode(ctx context.Context, shopkeeperID string, sku string, barcode string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	EnsureInventory(ctx context.Context, shopkeeperID string) (*domain.InventoryRecord, error)
	GetInventory(ctx context.Context, shopkeeperID string) (*domain.InventoryRecord, error)
	AddStockLine(ctx context.Context, shopkeeperID string, line domain.StockLine) (*domain.InventoryRecord, error)

	CommitSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	GetSale(ctx context.Context, saleID string) (*domain.SaleRecord, error)
	ListSales(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.SaleRecord, error)

	CreateExpense(ctx context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error)
	ListExpenses(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.ExpenseRecord, error)

	GetShopkeeper(ctx context.Context, shopkeeperID string) (*domain.Shopkeeper, error)
	UpsertShopkeeper(ctx context.Context, shopkeeper domain.Shopkeeper) error
	GetCategories(ctx context.Context, ids []string) (map[string]domain.Category, error)

	ReportSnapshot(ctx context.Context, shopkeeperID string, q domain.SnapshotQuery) (*domain.ReportSnapshot, error)
}
