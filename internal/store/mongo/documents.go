package mongo

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harjot96/POS/internal/domain"
)

func toD128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromD128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

type productDoc struct {
	ID           string               `bson:"_id"`
	ShopkeeperID string               `bson:"shopkeeper_id"`
	Name         string               `bson:"name"`
	SKU          string               `bson:"sku"`
	Barcode      string               `bson:"barcode"`
	CategoryID   string               `bson:"category_id"`
	Price        primitive.Decimal128 `bson:"price"`
	Description  string               `bson:"description,omitempty"`
	ImageRef     string               `bson:"image,omitempty"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func newProductDoc(p domain.Product) productDoc {
	return productDoc{
		ID:           p.ID,
		ShopkeeperID: p.ShopkeeperID,
		Name:         p.Name,
		SKU:          p.SKU,
		Barcode:      p.Barcode,
		CategoryID:   p.CategoryID,
		Price:        toD128(p.Price),
		Description:  p.Description,
		ImageRef:     p.ImageRef,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product{
		ID:           d.ID,
		ShopkeeperID: d.ShopkeeperID,
		Name:         d.Name,
		SKU:          d.SKU,
		Barcode:      d.Barcode,
		CategoryID:   d.CategoryID,
		Price:        fromD128(d.Price),
		Description:  d.Description,
		ImageRef:     d.ImageRef,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type stockLineDoc struct {
	ProductID      string               `bson:"product_id"`
	StockQuantity  int                  `bson:"stock_quantity"`
	PurchasePrice  primitive.Decimal128 `bson:"purchase_price"`
	SellingPrice   primitive.Decimal128 `bson:"selling_price"`
	ExpirationDate *time.Time           `bson:"expiration_date,omitempty"`
	Name           string               `bson:"name"`
	ImageRef       string               `bson:"image,omitempty"`
}

func newStockLineDoc(l domain.StockLine) stockLineDoc {
	return stockLineDoc{
		ProductID:      l.ProductID,
		StockQuantity:  l.StockQuantity,
		PurchasePrice:  toD128(l.PurchasePrice),
		SellingPrice:   toD128(l.SellingPrice),
		ExpirationDate: l.ExpirationDate,
		Name:           l.Name,
		ImageRef:       l.ImageRef,
	}
}

func newStockLineDocs(lines []domain.StockLine) []stockLineDoc {
	docs := make([]stockLineDoc, 0, len(lines))
	for _, l := range lines {
		docs = append(docs, newStockLineDoc(l))
	}
	return docs
}

type inventoryDoc struct {
	ShopkeeperID string         `bson:"_id"`
	Version      int64          `bson:"version"`
	Products     []stockLineDoc `bson:"products"`
	CreatedAt    time.Time      `bson:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
}

func (d inventoryDoc) toDomain() *domain.InventoryRecord {
	inv := &domain.InventoryRecord{
		ShopkeeperID: d.ShopkeeperID,
		Version:      d.Version,
		Lines:        make([]domain.StockLine, 0, len(d.Products)),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	for _, l := range d.Products {
		line := domain.StockLine{
			ProductID:     l.ProductID,
			StockQuantity: l.StockQuantity,
			PurchasePrice: fromD128(l.PurchasePrice),
			SellingPrice:  fromD128(l.SellingPrice),
			Name:          l.Name,
			ImageRef:      l.ImageRef,
		}
		if l.ExpirationDate != nil {
			exp := l.ExpirationDate.UTC()
			line.ExpirationDate = &exp
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv
}

type lineItemDoc struct {
	ProductID   string               `bson:"product_id"`
	ProductName string               `bson:"product_name"`
	Quantity    int                  `bson:"quantity"`
	Price       primitive.Decimal128 `bson:"price"`
	LineTotal   primitive.Decimal128 `bson:"total"`
}

type saleDoc struct {
	ID            string               `bson:"_id"`
	ShopkeeperID  string               `bson:"shopkeeper_id"`
	CustomerName  string               `bson:"customer_name,omitempty"`
	CustomerPhone string               `bson:"customer_phone,omitempty"`
	Items         []lineItemDoc        `bson:"items"`
	TotalAmount   primitive.Decimal128 `bson:"total_amount"`
	Discount      primitive.Decimal128 `bson:"discount"`
	Tax           primitive.Decimal128 `bson:"tax"`
	FinalAmount   primitive.Decimal128 `bson:"final_amount"`
	PaymentMethod string               `bson:"payment_method"`
	PaymentStatus string               `bson:"payment_status"`
	TransactionID string               `bson:"transaction_id,omitempty"`
	Notes         string               `bson:"notes,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
}

func newSaleDoc(s domain.SaleRecord) saleDoc {
	items := make([]lineItemDoc, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, lineItemDoc{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       toD128(it.Price),
			LineTotal:   toD128(it.LineTotal),
		})
	}
	return saleDoc{
		ID:            s.ID,
		ShopkeeperID:  s.ShopkeeperID,
		CustomerName:  s.CustomerName,
		CustomerPhone: s.CustomerPhone,
		Items:         items,
		TotalAmount:   toD128(s.TotalAmount),
		Discount:      toD128(s.Discount),
		Tax:           toD128(s.Tax),
		FinalAmount:   toD128(s.FinalAmount),
		PaymentMethod: string(s.PaymentMethod),
		PaymentStatus: string(s.PaymentStatus),
		TransactionID: s.TransactionID,
		Notes:         s.Notes,
		CreatedAt:     s.CreatedAt,
	}
}

func (d saleDoc) toDomain() domain.SaleRecord {
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.LineItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       fromD128(it.Price),
			LineTotal:   fromD128(it.LineTotal),
		})
	}
	return domain.SaleRecord{
		ID:            d.ID,
		ShopkeeperID:  d.ShopkeeperID,
		CustomerName:  d.CustomerName,
		CustomerPhone: d.CustomerPhone,
		Items:         items,
		TotalAmount:   fromD128(d.TotalAmount),
		Discount:      fromD128(d.Discount),
		Tax:           fromD128(d.Tax),
		FinalAmount:   fromD128(d.FinalAmount),
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		TransactionID: d.TransactionID,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

type expenseDoc struct {
	ID            string               `bson:"_id"`
	ShopkeeperID  string               `bson:"shopkeeper_id"`
	Amount        primitive.Decimal128 `bson:"amount"`
	CategoryID    string               `bson:"category_id"`
	Description   string               `bson:"description,omitempty"`
	PaymentMethod string               `bson:"payment_method"`
	Date          time.Time            `bson:"date"`
	CreatedAt     time.Time            `bson:"created_at"`
}

func (d expenseDoc) toDomain() domain.ExpenseRecord {
	return domain.ExpenseRecord{
		ID:            d.ID,
		ShopkeeperID:  d.ShopkeeperID,
		Amount:        fromD128(d.Amount),
		CategoryID:    d.CategoryID,
		Description:   d.Description,
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		Date:          d.Date.UTC(),
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

type shopkeeperDoc struct {
	ID               string `bson:"_id"`
	ShopName         string `bson:"shop_name"`
	SubscriptionPlan string `bson:"subscription_plan"`
}

type categoryDoc struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	Description string `bson:"description,omitempty"`
}
