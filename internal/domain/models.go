package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentCard   PaymentMethod = "Card"
	PaymentUPI    PaymentMethod = "UPI"
	PaymentWallet PaymentMethod = "Wallet"
	PaymentOther  PaymentMethod = "Other"
)

// PaymentMethods is the fixed bucket order used by the dashboard breakdown.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentUPI, PaymentWallet, PaymentOther}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "Paid"
	PaymentPending PaymentStatus = "Pending"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentPaid || s == PaymentPending
}

type SubscriptionPlan string

const (
	PlanBasic   SubscriptionPlan = "Basic"
	PlanPremium SubscriptionPlan = "Premium"
)

type Shopkeeper struct {
	ID               string           `json:"id"`
	ShopName         string           `json:"shop_name"`
	SubscriptionPlan SubscriptionPlan `json:"subscription_plan"`
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Product struct {
	ID           string          `json:"id"`
	ShopkeeperID string          `json:"shopkeeper_id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	Barcode      string          `json:"barcode"`
	CategoryID   string          `json:"category_id"`
	Price        decimal.Decimal `json:"price"`
	Description  string          `json:"description,omitempty"`
	ImageRef     string          `json:"image,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ProductInput struct {
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode"`
	CategoryID  string          `json:"category_id"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	ImageRef    string          `json:"image,omitempty"`
}

type ProductCreateRequest struct {
	ShopkeeperID string `json:"shopkeeper_id"`
	ProductInput
	Strict bool `json:"strict,omitempty"`
}

type ProductUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	CategoryID  *string          `json:"category_id,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Description *string          `json:"description,omitempty"`
	ImageRef    *string          `json:"image,omitempty"`
}

// StockLine is one product's entry in a shopkeeper's inventory. Name and
// ImageRef are copies taken at intake and may be stale.
type StockLine struct {
	ProductID      string          `json:"product_id"`
	StockQuantity  int             `json:"stock_quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
	Name           string          `json:"name"`
	ImageRef       string          `json:"image,omitempty"`
}

type InventoryRecord struct {
	ShopkeeperID string      `json:"shopkeeper_id"`
	Version      int64       `json:"version"`
	Lines        []StockLine `json:"products"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Line returns the index of the stock line for productID, or -1.
func (r *InventoryRecord) Line(productID string) int {
	for i := range r.Lines {
		if r.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (r InventoryRecord) Clone() InventoryRecord {
	out := r
	out.Lines = make([]StockLine, len(r.Lines))
	copy(out.Lines, r.Lines)
	for i := range out.Lines {
		if r.Lines[i].ExpirationDate != nil {
			exp := *r.Lines[i].ExpirationDate
			out.Lines[i].ExpirationDate = &exp
		}
	}
	return out
}

type StockInput struct {
	Quantity       int             `json:"stock_quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	ExpirationDate *time.Time      `json:"expiration_date,omitempty"`
}

type StockIntakeRequest struct {
	ProductInput
	StockInput
}

type InventoryItem struct {
	StockLine
	SKU          string `json:"sku,omitempty"`
	Barcode      string `json:"barcode,omitempty"`
	Description  string `json:"description,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	// Stale is set when the catalog product could not be joined and the
	// denormalized line fields were used instead.
	Stale bool `json:"stale,omitempty"`
}

type InventoryStats struct {
	TotalProducts int `json:"total_products"`
	OutOfStock    int `json:"out_of_stock"`
	LowInStock    int `json:"low_in_stock"`
}

type LineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"total"`
	// PriceSet distinguishes an explicit zero price from an omitted one.
	PriceSet bool `json:"-"`
}

type SaleRecord struct {
	ID            string          `json:"id"`
	ShopkeeperID  string          `json:"shopkeeper_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []LineItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleItemRequest struct {
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name,omitempty"`
	Quantity    int              `json:"quantity"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

// CommitSaleRequest carries pointer amounts so a missing field can be told
// apart from an explicit zero.
type CommitSaleRequest struct {
	ShopkeeperID  string            `json:"shopkeeper_id"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	Items         []SaleItemRequest `json:"items"`
	TotalAmount   *decimal.Decimal  `json:"total_amount"`
	Discount      *decimal.Decimal  `json:"discount,omitempty"`
	Tax           *decimal.Decimal  `json:"tax,omitempty"`
	FinalAmount   *decimal.Decimal  `json:"final_amount"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	PaymentStatus PaymentStatus     `json:"payment_status,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

type ExpenseRecord struct {
	ID            string          `json:"id"`
	ShopkeeperID  string          `json:"shopkeeper_id"`
	Amount        decimal.Decimal `json:"amount"`
	CategoryID    string          `json:"category_id"`
	Description   string          `json:"description,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Date          time.Time       `json:"date"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ExpenseRequest struct {
	ShopkeeperID  string           `json:"shopkeeper_id"`
	Amount        *decimal.Decimal `json:"amount"`
	CategoryID    string           `json:"category_id"`
	Description   string           `json:"description,omitempty"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	Date          *time.Time       `json:"date,omitempty"`
}

// DateRange bounds are inclusive of From and exclusive of To. A nil bound is
// open.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}

// ReportSnapshot is everything one aggregate needs, read in one consistent
// pass over the store.
type ReportSnapshot struct {
	Shopkeeper *Shopkeeper
	Inventory  *InventoryRecord
	Products   map[string]Product
	Categories map[string]Category
	Sales      []SaleRecord
	Expenses   []ExpenseRecord
}

type SnapshotQuery struct {
	Range           DateRange
	IncludeSales    bool
	IncludeExpenses bool
}

// ProductView is the single output shape of the product finder, whichever
// path produced it.
type ProductView struct {
	ID          string          `json:"id"`
	Image       string          `json:"image"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	TotalSold   int             `json:"totalSold"`
}

type ProductFilter string

const (
	FilterNone        ProductFilter = ""
	FilterMostSelling ProductFilter = "Most Selling"
	FilterLowStock    ProductFilter = "Low stock"
	FilterAchieved    ProductFilter = "Achieved"
)

type FinderQuery struct {
	Filter     ProductFilter `json:"filter"`
	SearchTerm string        `json:"searchTerm"`
}

type DashboardSummary struct {
	Shopkeeper       *Shopkeeper                       `json:"shopkeeper,omitempty"`
	TotalSales       decimal.Decimal                   `json:"total_sales"`
	TotalDiscount    decimal.Decimal                   `json:"total_discount"`
	TotalExpenses    decimal.Decimal                   `json:"total_expenses"`
	TotalProfit      decimal.Decimal                   `json:"total_profit"`
	InventoryValue   decimal.Decimal                   `json:"inventory_value"`
	SaleCount        int                               `json:"sale_count"`
	PaymentBreakdown map[PaymentMethod]decimal.Decimal `json:"payment_breakdown"`
	Range            DateRange                         `json:"range"`
	GeneratedAt      time.Time                         `json:"generated_at"`
}

type DayBucket struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
	Sales []SaleRecord    `json:"sales"`
}

type SalesTimeline struct {
	Plan  SubscriptionPlan `json:"plan"`
	Range DateRange        `json:"range"`
	Days  []DayBucket      `json:"days"`
}

type MonthBucket struct {
	Month         string          `json:"month"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Profit        decimal.Decimal `json:"profit"`
	SaleCount     int             `json:"sale_count"`
}

type MonthlyTrend struct {
	Range  DateRange     `json:"range"`
	Months []MonthBucket `json:"months"`
}

type Actor struct {
	ShopkeeperID string `json:"shopkeeper_id"`
	Role         string `json:"role"`
}
