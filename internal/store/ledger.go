package store

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harjot96/POS/internal/domain"
)

// ReserveStock checks every line item of sale against inv and returns the
// decremented stock lines together with the sale whose line items carry the
// snapshotted name, price and line total. inv is never modified, so a failed
// reservation leaves the caller's snapshot exactly as loaded.
//
// Quantities for a product listed more than once are summed before the check.
// An item without PriceSet takes the stock line's selling price.
func ReserveStock(inv *domain.InventoryRecord, sale domain.SaleRecord) ([]domain.StockLine, domain.SaleRecord, error) {
	if inv == nil {
		return nil, sale, ErrInventoryNotFound
	}

	names := make(map[string]string, len(sale.Items))
	for _, item := range sale.Items {
		if _, ok := names[item.ProductID]; !ok {
			names[item.ProductID] = item.ProductName
		}
	}

	demand := make(map[string]int, len(sale.Items))
	order := make([]string, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, sale, &ValidationError{Fields: []string{"items.quantity"}}
		}
		if _, seen := demand[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		// No stock line can hold a sum past MaxInt.
		if demand[item.ProductID] > math.MaxInt-item.Quantity {
			return nil, sale, &StockError{Err: ErrInsufficientStock, ProductID: item.ProductID, ProductName: names[item.ProductID]}
		}
		demand[item.ProductID] += item.Quantity
	}

	for _, productID := range order {
		idx := inv.Line(productID)
		if idx < 0 {
			return nil, sale, &StockError{Err: ErrProductNotInInventory, ProductID: productID, ProductName: names[productID]}
		}
		line := inv.Lines[idx]
		if line.StockQuantity < demand[productID] {
			name := names[productID]
			if name == "" {
				name = line.Name
			}
			return nil, sale, &StockError{Err: ErrInsufficientStock, ProductID: productID, ProductName: name}
		}
	}

	next := inv.Clone().Lines
	for _, productID := range order {
		next[inv.Line(productID)].StockQuantity -= demand[productID]
	}

	items := make([]domain.LineItem, len(sale.Items))
	for i, item := range sale.Items {
		line := inv.Lines[inv.Line(item.ProductID)]
		if strings.TrimSpace(item.ProductName) == "" {
			item.ProductName = line.Name
		}
		if !item.PriceSet {
			item.Price = line.SellingPrice
			item.PriceSet = true
		}
		item.LineTotal = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items[i] = item
	}
	sale.Items = items

	return next, sale, nil
}

// ChangedLines returns the product ids whose quantity differs between before
// and after, in before's order.
func ChangedLines(before []domain.StockLine, after []domain.StockLine) []string {
	changed := make([]string, 0, len(after))
	for i := range before {
		if i < len(after) && before[i].StockQuantity != after[i].StockQuantity {
			changed = append(changed, before[i].ProductID)
		}
	}
	return changed
}

func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
