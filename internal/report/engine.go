// Package report computes the read-side aggregates: inventory listing and
// stats, fast-selling rankings, the product finder, dashboard totals and the
// sales timeline. Every function works on one domain.ReportSnapshot and never
// mutates it.
package report

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harjot96/POS/internal/domain"
)

const (
	DefaultLowStockThreshold = 10
	FinderLowStockBelow      = 5
	BasicPlanWindow          = 7 * 24 * time.Hour
)

type Engine struct {
	loc *time.Location
	now func() time.Time
}

func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc, now: time.Now}
}

// WithClock returns a copy of the engine reading time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	out := *e
	out.now = now
	return &out
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

func (e *Engine) Now() time.Time {
	return e.now()
}

func Stats(inv *domain.InventoryRecord, threshold int) domain.InventoryStats {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	var stats domain.InventoryStats
	if inv == nil {
		return stats
	}
	for _, line := range inv.Lines {
		stats.TotalProducts++
		switch {
		case line.StockQuantity == 0:
			stats.OutOfStock++
		case line.StockQuantity < threshold:
			stats.LowInStock++
		}
	}
	return stats
}

// ListInventory joins every stock line with its current product and category.
// A line whose product is gone keeps its denormalized name and image.
func ListInventory(snap *domain.ReportSnapshot) []domain.InventoryItem {
	if snap == nil || snap.Inventory == nil {
		return []domain.InventoryItem{}
	}
	items := make([]domain.InventoryItem, 0, len(snap.Inventory.Lines))
	for _, line := range snap.Inventory.Lines {
		item := domain.InventoryItem{StockLine: line}
		product, ok := snap.Products[line.ProductID]
		if !ok {
			item.Stale = true
			items = append(items, item)
			continue
		}
		if product.Name != "" {
			item.Name = product.Name
		}
		if product.ImageRef != "" {
			item.ImageRef = product.ImageRef
		}
		item.SKU = product.SKU
		item.Barcode = product.Barcode
		item.Description = product.Description
		item.CategoryID = product.CategoryID
		if category, ok := snap.Categories[product.CategoryID]; ok {
			item.CategoryName = category.Name
		}
		items = append(items, item)
	}
	return items
}

type soldTotal struct {
	productID string
	name      string
	qty       int
}

// soldTotals groups line items by product in discovery order.
func soldTotals(sales []domain.SaleRecord) []soldTotal {
	index := make(map[string]int)
	totals := make([]soldTotal, 0, 32)
	for _, sale := range sales {
		for _, item := range sale.Items {
			i, ok := index[item.ProductID]
			if !ok {
				i = len(totals)
				index[item.ProductID] = i
				totals = append(totals, soldTotal{productID: item.ProductID, name: item.ProductName})
			}
			totals[i].qty += item.Quantity
		}
	}
	return totals
}

// FastSelling ranks products by total quantity sold, highest first. Ties are
// broken by product id ascending so the order does not depend on storage.
func FastSelling(snap *domain.ReportSnapshot) []domain.ProductView {
	if snap == nil {
		return []domain.ProductView{}
	}
	totals := soldTotals(snap.Sales)
	slices.SortStableFunc(totals, func(a, b soldTotal) int {
		if a.qty != b.qty {
			return b.qty - a.qty
		}
		return strings.Compare(a.productID, b.productID)
	})

	views := make([]domain.ProductView, 0, len(totals))
	for _, total := range totals {
		views = append(views, productView(snap, total.productID, total.name, total.qty))
	}
	return views
}

// FindProducts serves both the inventory listing path and the "Most Selling"
// path; both emit the same ProductView shape.
func FindProducts(snap *domain.ReportSnapshot, q domain.FinderQuery) []domain.ProductView {
	term := strings.ToLower(strings.TrimSpace(q.SearchTerm))

	var candidates []domain.ProductView
	if q.Filter == domain.FilterMostSelling {
		candidates = FastSelling(snap)
	} else {
		candidates = inventoryViews(snap, q.Filter)
	}

	out := make([]domain.ProductView, 0, len(candidates))
	for _, view := range candidates {
		if term != "" && !matches(snap, view, term) {
			continue
		}
		out = append(out, view)
	}
	return out
}

func inventoryViews(snap *domain.ReportSnapshot, filter domain.ProductFilter) []domain.ProductView {
	if snap == nil || snap.Inventory == nil {
		return []domain.ProductView{}
	}
	sold := make(map[string]int)
	for _, total := range soldTotals(snap.Sales) {
		sold[total.productID] = total.qty
	}

	views := make([]domain.ProductView, 0, len(snap.Inventory.Lines))
	for _, line := range snap.Inventory.Lines {
		switch filter {
		case domain.FilterLowStock:
			if line.StockQuantity >= FinderLowStockBelow {
				continue
			}
		case domain.FilterAchieved:
			if line.StockQuantity <= 0 {
				continue
			}
		}
		views = append(views, productView(snap, line.ProductID, line.Name, sold[line.ProductID]))
	}
	return views
}

func productView(snap *domain.ReportSnapshot, productID string, fallbackName string, totalSold int) domain.ProductView {
	view := domain.ProductView{ID: productID, Name: fallbackName, TotalSold: totalSold, Price: decimal.Zero}

	var line *domain.StockLine
	if snap.Inventory != nil {
		if idx := snap.Inventory.Line(productID); idx >= 0 {
			line = &snap.Inventory.Lines[idx]
		}
	}
	if line != nil {
		view.Quantity = line.StockQuantity
		view.Price = line.SellingPrice
		view.Image = line.ImageRef
		if line.Name != "" {
			view.Name = line.Name
		}
	}

	if product, ok := snap.Products[productID]; ok {
		if product.Name != "" {
			view.Name = product.Name
		}
		if product.ImageRef != "" {
			view.Image = product.ImageRef
		}
		view.Code = product.SKU
		if view.Code == "" {
			view.Code = product.Barcode
		}
		view.Description = product.Description
		if line == nil {
			view.Price = product.Price
		}
	}
	return view
}

func matches(snap *domain.ReportSnapshot, view domain.ProductView, term string) bool {
	if strings.Contains(strings.ToLower(view.Name), term) || strings.Contains(strings.ToLower(view.Code), term) {
		return true
	}
	if product, ok := snap.Products[view.ID]; ok {
		return strings.Contains(strings.ToLower(product.SKU), term) ||
			strings.Contains(strings.ToLower(product.Barcode), term)
	}
	return false
}

// Dashboard totals the snapshot's sales and expenses. Profit is sales minus
// expenses; discounts are reported separately and not deducted.
func (e *Engine) Dashboard(snap *domain.ReportSnapshot, r domain.DateRange) domain.DashboardSummary {
	summary := domain.DashboardSummary{
		TotalSales:       decimal.Zero,
		TotalDiscount:    decimal.Zero,
		TotalExpenses:    decimal.Zero,
		InventoryValue:   decimal.Zero,
		PaymentBreakdown: make(map[domain.PaymentMethod]decimal.Decimal, len(domain.PaymentMethods)),
		Range:            r,
		GeneratedAt:      e.now().UTC(),
	}
	for _, method := range domain.PaymentMethods {
		summary.PaymentBreakdown[method] = decimal.Zero
	}
	if snap == nil {
		summary.TotalProfit = decimal.Zero
		return summary
	}
	summary.Shopkeeper = snap.Shopkeeper

	for _, sale := range snap.Sales {
		summary.SaleCount++
		summary.TotalSales = summary.TotalSales.Add(sale.TotalAmount)
		summary.TotalDiscount = summary.TotalDiscount.Add(sale.Discount)
		method := sale.PaymentMethod
		if !method.Valid() {
			method = domain.PaymentOther
		}
		summary.PaymentBreakdown[method] = summary.PaymentBreakdown[method].Add(sale.TotalAmount)
	}
	for _, expense := range snap.Expenses {
		summary.TotalExpenses = summary.TotalExpenses.Add(expense.Amount)
	}
	summary.TotalProfit = summary.TotalSales.Sub(summary.TotalExpenses)

	if snap.Inventory != nil {
		for _, line := range snap.Inventory.Lines {
			summary.InventoryValue = summary.InventoryValue.Add(line.PurchasePrice.Mul(decimal.NewFromInt(int64(line.StockQuantity))))
		}
	}
	return summary
}

// TimelineRange applies the plan default when the caller gave no bounds:
// Basic sees the trailing seven days, Premium sees everything.
func (e *Engine) TimelineRange(plan domain.SubscriptionPlan, explicit domain.DateRange) domain.DateRange {
	if !explicit.IsZero() {
		return explicit
	}
	if plan == domain.PlanPremium {
		return domain.DateRange{}
	}
	from := e.now().Add(-BasicPlanWindow).UTC()
	return domain.DateRange{From: &from}
}

// Timeline groups sales by calendar day in the engine's location, newest day
// first and newest sale first within a day.
func (e *Engine) Timeline(sales []domain.SaleRecord, plan domain.SubscriptionPlan, r domain.DateRange) domain.SalesTimeline {
	byDay := make(map[string]*domain.DayBucket)
	keys := make([]string, 0, 16)
	for _, sale := range sales {
		if !r.Contains(sale.CreatedAt) {
			continue
		}
		key := sale.CreatedAt.In(e.loc).Format(time.DateOnly)
		bucket, ok := byDay[key]
		if !ok {
			bucket = &domain.DayBucket{Date: key, Total: decimal.Zero, Sales: make([]domain.SaleRecord, 0, 4)}
			byDay[key] = bucket
			keys = append(keys, key)
		}
		bucket.Sales = append(bucket.Sales, sale)
		bucket.Total = bucket.Total.Add(sale.FinalAmount)
	}

	slices.Sort(keys)
	slices.Reverse(keys)

	days := make([]domain.DayBucket, 0, len(keys))
	for _, key := range keys {
		bucket := byDay[key]
		slices.SortStableFunc(bucket.Sales, func(a, b domain.SaleRecord) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
		days = append(days, *bucket)
	}
	return domain.SalesTimeline{Plan: plan, Range: r, Days: days}
}

// MonthlyTrend buckets sales and expenses by calendar month, oldest first.
func (e *Engine) MonthlyTrend(snap *domain.ReportSnapshot, r domain.DateRange) domain.MonthlyTrend {
	byMonth := make(map[string]*domain.MonthBucket)
	bucket := func(t time.Time) *domain.MonthBucket {
		key := t.In(e.loc).Format("2006-01")
		b, ok := byMonth[key]
		if !ok {
			b = &domain.MonthBucket{Month: key, TotalSales: decimal.Zero, TotalExpenses: decimal.Zero}
			byMonth[key] = b
		}
		return b
	}

	if snap != nil {
		for _, sale := range snap.Sales {
			b := bucket(sale.CreatedAt)
			b.TotalSales = b.TotalSales.Add(sale.TotalAmount)
			b.SaleCount++
		}
		for _, expense := range snap.Expenses {
			b := bucket(expense.Date)
			b.TotalExpenses = b.TotalExpenses.Add(expense.Amount)
		}
	}

	keys := make([]string, 0, len(byMonth))
	for key := range byMonth {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	months := make([]domain.MonthBucket, 0, len(keys))
	for _, key := range keys {
		b := byMonth[key]
		b.Profit = b.TotalSales.Sub(b.TotalExpenses)
		months = append(months, *b)
	}
	return domain.MonthlyTrend{Range: r, Months: months}
}
