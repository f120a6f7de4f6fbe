package store

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harjot96/POS/internal/domain"
)

func inventoryOf(lines ...domain.StockLine) *domain.InventoryRecord {
	return &domain.InventoryRecord{ShopkeeperID: "shop-1", Lines: lines}
}

func TestReserveStockSumsRepeatedProducts(t *testing.T) {
	inv := inventoryOf(domain.StockLine{ProductID: "p1", StockQuantity: 5, SellingPrice: decimal.NewFromInt(3), Name: "Tea"})

	_, _, err := ReserveStock(inv, domain.SaleRecord{Items: []domain.LineItem{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p1", Quantity: 3},
	}})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, inv.Lines[0].StockQuantity)

	next, sale, err := ReserveStock(inv, domain.SaleRecord{Items: []domain.LineItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: 3, Price: decimal.NewFromInt(1), PriceSet: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, next[0].StockQuantity)
	assert.Equal(t, 5, inv.Lines[0].StockQuantity)
	assert.Equal(t, "Tea", sale.Items[0].ProductName)
	assert.True(t, sale.Items[0].LineTotal.Equal(decimal.NewFromInt(6)))
	assert.True(t, sale.Items[1].LineTotal.Equal(decimal.NewFromInt(3)))
}

func TestReserveStockRejectsOverflowingDemand(t *testing.T) {
	inv := inventoryOf(domain.StockLine{ProductID: "p1", StockQuantity: 5, Name: "Tea"})

	_, _, err := ReserveStock(inv, domain.SaleRecord{Items: []domain.LineItem{
		{ProductID: "p1", ProductName: "Tea", Quantity: math.MaxInt},
		{ProductID: "p1", ProductName: "Tea", Quantity: math.MaxInt},
	}})
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 5, inv.Lines[0].StockQuantity)
}

func TestReserveStockKeepsExplicitZeroPrice(t *testing.T) {
	inv := inventoryOf(domain.StockLine{ProductID: "p1", StockQuantity: 5, SellingPrice: decimal.NewFromInt(3)})

	_, sale, err := ReserveStock(inv, domain.SaleRecord{Items: []domain.LineItem{
		{ProductID: "p1", Quantity: 2, PriceSet: true},
		{ProductID: "p1", Quantity: 1},
	}})
	require.NoError(t, err)
	assert.True(t, sale.Items[0].Price.IsZero())
	assert.True(t, sale.Items[0].LineTotal.IsZero())
	assert.True(t, sale.Items[1].Price.Equal(decimal.NewFromInt(3)))
}

func TestReserveStockNamesMissingProduct(t *testing.T) {
	inv := inventoryOf(domain.StockLine{ProductID: "p1", StockQuantity: 5})

	_, _, err := ReserveStock(inv, domain.SaleRecord{Items: []domain.LineItem{
		{ProductID: "ghost", ProductName: "Ghost", Quantity: 1},
	}})
	var stockErr *StockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, ErrProductNotInInventory)
	assert.Equal(t, "ghost", stockErr.ProductID)
	assert.Contains(t, err.Error(), "Ghost")
}

func TestReserveStockWithoutInventory(t *testing.T) {
	_, _, err := ReserveStock(nil, domain.SaleRecord{})
	assert.ErrorIs(t, err, ErrInventoryNotFound)
}

func TestChangedLines(t *testing.T) {
	before := []domain.StockLine{{ProductID: "a", StockQuantity: 1}, {ProductID: "b", StockQuantity: 2}}
	after := []domain.StockLine{{ProductID: "a", StockQuantity: 1}, {ProductID: "b", StockQuantity: 0}}
	assert.Equal(t, []string{"b"}, ChangedLines(before, after))
}

func TestUnavailableKeepsDomainErrors(t *testing.T) {
	assert.ErrorIs(t, Unavailable(ErrNotFound), ErrNotFound)
	assert.NotErrorIs(t, Unavailable(ErrNotFound), ErrStorageUnavailable)
	assert.ErrorIs(t, Unavailable(assert.AnError), ErrStorageUnavailable)
	assert.NoError(t, Unavailable(nil))
}
