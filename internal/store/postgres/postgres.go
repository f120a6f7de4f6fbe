package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/store"
	"github.com/harjot96/POS/internal/xid"
)

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type productRow struct {
	ID           string          `db:"id"`
	ShopkeeperID string          `db:"shopkeeper_id"`
	Name         string          `db:"name"`
	SKU          string          `db:"sku"`
	Barcode      string          `db:"barcode"`
	CategoryID   string          `db:"category_id"`
	Price        decimal.Decimal `db:"price"`
	Description  string          `db:"description"`
	ImageRef     string          `db:"image_ref"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:           r.ID,
		ShopkeeperID: r.ShopkeeperID,
		Name:         r.Name,
		SKU:          r.SKU,
		Barcode:      r.Barcode,
		CategoryID:   r.CategoryID,
		Price:        r.Price,
		Description:  r.Description,
		ImageRef:     r.ImageRef,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const productColumns = `id, shopkeeper_id, name, sku, barcode, category_id, price, description, image_ref, created_at, updated_at`

type inventoryRow struct {
	ShopkeeperID string    `db:"shopkeeper_id"`
	Version      int64     `db:"version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type stockLineRow struct {
	ProductID      string          `db:"product_id"`
	StockQuantity  int             `db:"stock_quantity"`
	PurchasePrice  decimal.Decimal `db:"purchase_price"`
	SellingPrice   decimal.Decimal `db:"selling_price"`
	ExpirationDate sql.NullTime    `db:"expiration_date"`
	Name           string          `db:"name"`
	ImageRef       string          `db:"image_ref"`
}

type saleRow struct {
	ID            string          `db:"id"`
	ShopkeeperID  string          `db:"shopkeeper_id"`
	CustomerName  string          `db:"customer_name"`
	CustomerPhone string          `db:"customer_phone"`
	TotalAmount   decimal.Decimal `db:"total_amount"`
	Discount      decimal.Decimal `db:"discount"`
	Tax           decimal.Decimal `db:"tax"`
	FinalAmount   decimal.Decimal `db:"final_amount"`
	PaymentMethod string          `db:"payment_method"`
	PaymentStatus string          `db:"payment_status"`
	TransactionID string          `db:"transaction_id"`
	Notes         string          `db:"notes"`
	CreatedAt     time.Time       `db:"created_at"`
}

const saleColumns = `id, shopkeeper_id, customer_name, customer_phone, total_amount, discount, tax,
	final_amount, payment_method, payment_status, transaction_id, notes, created_at`

type saleItemRow struct {
	SaleID      string          `db:"sale_id"`
	ProductID   string          `db:"product_id"`
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	Price       decimal.Decimal `db:"price"`
	LineTotal   decimal.Decimal `db:"line_total"`
}

type expenseRow struct {
	ID            string          `db:"id"`
	ShopkeeperID  string          `db:"shopkeeper_id"`
	Amount        decimal.Decimal `db:"amount"`
	CategoryID    string          `db:"category_id"`
	Description   string          `db:"description"`
	PaymentMethod string          `db:"payment_method"`
	Date          time.Time       `db:"date"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ShopkeeperID == "" || product.SKU == "" || product.Barcode == "" || product.Name == "" {
		return nil, &store.ValidationError{Fields: []string{"product"}}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := store.NowUTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.ShopkeeperID, product.Name, product.SKU, product.Barcode, product.CategoryID,
		product.Price, product.Description, product.ImageRef, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateProduct
		}
		return nil, store.Unavailable(err)
	}

	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	product := row.toDomain()
	return &product, nil
}

// FindProductByCode prefers a SKU match over a barcode match.
func (s *Store) FindProductByCode(ctx context.Context, shopkeeperID string, sku string, barcode string) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+productColumns+`
		FROM products
		WHERE shopkeeper_id = $1 AND ((sku = $2 AND $2 <> '') OR (barcode = $3 AND $3 <> ''))
		ORDER BY (sku = $2) DESC
		LIMIT 1
	`, shopkeeperID, sku, barcode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	product := row.toDomain()
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE products
		SET name = $2, category_id = $3, price = $4, description = $5, image_ref = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.CategoryID, product.Price, product.Description, product.ImageRef, store.NowUTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	updated := row.toDomain()
	return &updated, nil
}

func (s *Store) EnsureInventory(ctx context.Context, shopkeeperID string) (*domain.InventoryRecord, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventories (shopkeeper_id, version, created_at, updated_at)
		VALUES ($1, 0, now(), now())
		ON CONFLICT (shopkeeper_id) DO NOTHING
	`, shopkeeperID); err != nil {
		return nil, store.Unavailable(err)
	}
	return s.GetInventory(ctx, shopkeeperID)
}

func (s *Store) GetInventory(ctx context.Context, shopkeeperID string) (*domain.InventoryRecord, error) {
	inv, err := loadInventory(ctx, s.db, shopkeeperID, false)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// loadInventory reads the inventory header and its lines. With lock set the
// header row is held FOR UPDATE until q's transaction ends.
func loadInventory(ctx context.Context, q sqlx.QueryerContext, shopkeeperID string, lock bool) (*domain.InventoryRecord, error) {
	query := `SELECT shopkeeper_id, version, created_at, updated_at FROM inventories WHERE shopkeeper_id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var head inventoryRow
	if err := sqlx.GetContext(ctx, q, &head, query, shopkeeperID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrInventoryNotFound
		}
		return nil, store.Unavailable(err)
	}

	var rows []stockLineRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT product_id, stock_quantity, purchase_price, selling_price, expiration_date, name, image_ref
		FROM stock_lines
		WHERE shopkeeper_id = $1
		ORDER BY position
	`, shopkeeperID); err != nil {
		return nil, store.Unavailable(err)
	}

	inv := &domain.InventoryRecord{
		ShopkeeperID: head.ShopkeeperID,
		Version:      head.Version,
		Lines:        make([]domain.StockLine, 0, len(rows)),
		CreatedAt:    head.CreatedAt.UTC(),
		UpdatedAt:    head.UpdatedAt.UTC(),
	}
	for _, row := range rows {
		line := domain.StockLine{
			ProductID:     row.ProductID,
			StockQuantity: row.StockQuantity,
			PurchasePrice: row.PurchasePrice,
			SellingPrice:  row.SellingPrice,
			Name:          row.Name,
			ImageRef:      row.ImageRef,
		}
		if row.ExpirationDate.Valid {
			exp := row.ExpirationDate.Time.UTC()
			line.ExpirationDate = &exp
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, nil
}

func (s *Store) AddStockLine(ctx context.Context, shopkeeperID string, line domain.StockLine) (*domain.InventoryRecord, error) {
	if line.StockQuantity < 0 {
		return nil, &store.ValidationError{Fields: []string{"stock_quantity"}}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, store.Unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO inventories (shopkeeper_id, version, created_at, updated_at)
		VALUES ($1, 0, now(), now())
		ON CONFLICT (shopkeeper_id) DO NOTHING
	`, shopkeeperID); err != nil {
		return nil, store.Unavailable(err)
	}

	inv, err := loadInventory(ctx, tx, shopkeeperID, true)
	if err != nil {
		return nil, err
	}
	if inv.Line(line.ProductID) >= 0 {
		return nil, store.ErrAlreadyInInventory
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_lines (
			shopkeeper_id, product_id, position, stock_quantity,
			purchase_price, selling_price, expiration_date, name, image_ref
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, shopkeeperID, line.ProductID, len(inv.Lines), line.StockQuantity,
		line.PurchasePrice, line.SellingPrice, nullTime(line.ExpirationDate), line.Name, line.ImageRef); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyInInventory
		}
		return nil, store.Unavailable(err)
	}

	now := store.NowUTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE inventories SET version = version + 1, updated_at = $2 WHERE shopkeeper_id = $1
	`, shopkeeperID, now); err != nil {
		return nil, store.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, store.Unavailable(err)
	}

	inv.Lines = append(inv.Lines, line)
	inv.Version++
	inv.UpdatedAt = now
	return inv, nil
}

// CommitSale locks the shopkeeper's inventory row, so concurrent commits for
// the same shopkeeper run one after another. The stock check, the decrements
// and the sale insert share one transaction.
func (s *Store) CommitSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, store.Unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	inv, err := loadInventory(ctx, tx, sale.ShopkeeperID, true)
	if err != nil {
		return nil, err
	}

	next, prepared, err := store.ReserveStock(inv, sale)
	if err != nil {
		return nil, err
	}
	if prepared.ID == "" {
		prepared.ID = xid.New("sale")
	}
	if prepared.CreatedAt.IsZero() {
		prepared.CreatedAt = store.NowUTC()
	}

	for _, productID := range store.ChangedLines(inv.Lines, next) {
		qty := next[inv.Line(productID)].StockQuantity
		if _, err := tx.ExecContext(ctx, `
			UPDATE stock_lines SET stock_quantity = $3
			WHERE shopkeeper_id = $1 AND product_id = $2
		`, sale.ShopkeeperID, productID, qty); err != nil {
			return nil, store.Unavailable(err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE inventories SET version = version + 1, updated_at = $2 WHERE shopkeeper_id = $1
	`, sale.ShopkeeperID, prepared.CreatedAt); err != nil {
		return nil, store.Unavailable(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, prepared.ID, prepared.ShopkeeperID, prepared.CustomerName, prepared.CustomerPhone,
		prepared.TotalAmount, prepared.Discount, prepared.Tax, prepared.FinalAmount,
		string(prepared.PaymentMethod), string(prepared.PaymentStatus), prepared.TransactionID,
		prepared.Notes, prepared.CreatedAt); err != nil {
		return nil, store.Unavailable(err)
	}
	for i, item := range prepared.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, position, product_id, product_name, quantity, price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, prepared.ID, i, item.ProductID, item.ProductName, item.Quantity, item.Price, item.LineTotal); err != nil {
			return nil, store.Unavailable(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, store.Unavailable(err)
	}
	return &prepared, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.SaleRecord, error) {
	var row saleRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, saleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	sales, err := attachItems(ctx, s.db, []saleRow{row})
	if err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.SaleRecord, error) {
	return listSales(ctx, s.db, shopkeeperID, r)
}

func listSales(ctx context.Context, q sqlx.QueryerContext, shopkeeperID string, r domain.DateRange) ([]domain.SaleRecord, error) {
	var rows []saleRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE shopkeeper_id = $1
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC, id
	`, shopkeeperID, nullTime(r.From), nullTime(r.To)); err != nil {
		return nil, store.Unavailable(err)
	}
	return attachItems(ctx, q, rows)
}

func attachItems(ctx context.Context, q sqlx.QueryerContext, rows []saleRow) ([]domain.SaleRecord, error) {
	sales := make([]domain.SaleRecord, 0, len(rows))
	if len(rows) == 0 {
		return sales, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var items []saleItemRow
	if err := sqlx.SelectContext(ctx, q, &items, `
		SELECT sale_id, product_id, product_name, quantity, price, line_total
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids); err != nil {
		return nil, store.Unavailable(err)
	}
	bySale := make(map[string][]domain.LineItem, len(rows))
	for _, item := range items {
		bySale[item.SaleID] = append(bySale[item.SaleID], domain.LineItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			LineTotal:   item.LineTotal,
		})
	}

	for _, row := range rows {
		lineItems := bySale[row.ID]
		if lineItems == nil {
			lineItems = []domain.LineItem{}
		}
		sales = append(sales, domain.SaleRecord{
			ID:            row.ID,
			ShopkeeperID:  row.ShopkeeperID,
			CustomerName:  row.CustomerName,
			CustomerPhone: row.CustomerPhone,
			Items:         lineItems,
			TotalAmount:   row.TotalAmount,
			Discount:      row.Discount,
			Tax:           row.Tax,
			FinalAmount:   row.FinalAmount,
			PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
			PaymentStatus: domain.PaymentStatus(row.PaymentStatus),
			TransactionID: row.TransactionID,
			Notes:         row.Notes,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return sales, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = store.NowUTC()
	}
	if expense.Date.IsZero() {
		expense.Date = expense.CreatedAt
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, shopkeeper_id, amount, category_id, description, payment_method, date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, expense.ID, expense.ShopkeeperID, expense.Amount, expense.CategoryID, expense.Description,
		string(expense.PaymentMethod), expense.Date, expense.CreatedAt); err != nil {
		return nil, store.Unavailable(err)
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.ExpenseRecord, error) {
	return listExpenses(ctx, s.db, shopkeeperID, r)
}

func listExpenses(ctx context.Context, q sqlx.QueryerContext, shopkeeperID string, r domain.DateRange) ([]domain.ExpenseRecord, error) {
	var rows []expenseRow
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT id, shopkeeper_id, amount, category_id, description, payment_method, date, created_at
		FROM expenses
		WHERE shopkeeper_id = $1
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date < $3)
		ORDER BY date DESC, id
	`, shopkeeperID, nullTime(r.From), nullTime(r.To)); err != nil {
		return nil, store.Unavailable(err)
	}
	out := make([]domain.ExpenseRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ExpenseRecord{
			ID:            row.ID,
			ShopkeeperID:  row.ShopkeeperID,
			Amount:        row.Amount,
			CategoryID:    row.CategoryID,
			Description:   row.Description,
			PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
			Date:          row.Date.UTC(),
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *Store) GetShopkeeper(ctx context.Context, shopkeeperID string) (*domain.Shopkeeper, error) {
	return getShopkeeper(ctx, s.db, shopkeeperID)
}

func getShopkeeper(ctx context.Context, q sqlx.QueryerContext, shopkeeperID string) (*domain.Shopkeeper, error) {
	var row struct {
		ID               string `db:"id"`
		ShopName         string `db:"shop_name"`
		SubscriptionPlan string `db:"subscription_plan"`
	}
	err := sqlx.GetContext(ctx, q, &row, `SELECT id, shop_name, subscription_plan FROM shopkeepers WHERE id = $1`, shopkeeperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	return &domain.Shopkeeper{ID: row.ID, ShopName: row.ShopName, SubscriptionPlan: domain.SubscriptionPlan(row.SubscriptionPlan)}, nil
}

// UpsertShopkeeper mirrors a profile owned by the auth provider.
func (s *Store) UpsertShopkeeper(ctx context.Context, shopkeeper domain.Shopkeeper) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shopkeepers (id, shop_name, subscription_plan)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET shop_name = excluded.shop_name, subscription_plan = excluded.subscription_plan
	`, shopkeeper.ID, shopkeeper.ShopName, string(shopkeeper.SubscriptionPlan))
	return store.Unavailable(err)
}

func (s *Store) GetCategories(ctx context.Context, ids []string) (map[string]domain.Category, error) {
	return getCategories(ctx, s.db, ids)
}

func getCategories(ctx context.Context, q sqlx.QueryerContext, ids []string) (map[string]domain.Category, error) {
	out := make(map[string]domain.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, description FROM categories WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build category query: %w", err)
	}
	var rows []domain.Category
	if err := sqlx.SelectContext(ctx, q, &rows, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, store.Unavailable(err)
	}
	for _, c := range rows {
		out[c.ID] = c
	}
	return out, nil
}

// ReportSnapshot reads inside one read-only repeatable-read transaction, so
// every part of the snapshot reflects the same committed state.
func (s *Store) ReportSnapshot(ctx context.Context, shopkeeperID string, q domain.SnapshotQuery) (*domain.ReportSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, store.Unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	snap := &domain.ReportSnapshot{
		Products:   make(map[string]domain.Product),
		Categories: make(map[string]domain.Category),
	}

	shopkeeper, err := getShopkeeper(ctx, tx, shopkeeperID)
	switch {
	case err == nil:
		snap.Shopkeeper = shopkeeper
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	inv, err := loadInventory(ctx, tx, shopkeeperID, false)
	switch {
	case err == nil:
		snap.Inventory = inv
	case !errors.Is(err, store.ErrInventoryNotFound):
		return nil, err
	}

	var products []productRow
	if err := tx.SelectContext(ctx, &products, `
		SELECT `+productColumns+` FROM products WHERE shopkeeper_id = $1
	`, shopkeeperID); err != nil {
		return nil, store.Unavailable(err)
	}
	categoryIDs := make([]string, 0, len(products))
	for _, row := range products {
		snap.Products[row.ID] = row.toDomain()
		if row.CategoryID != "" {
			categoryIDs = append(categoryIDs, row.CategoryID)
		}
	}
	if snap.Categories, err = getCategories(ctx, tx, categoryIDs); err != nil {
		return nil, err
	}

	if q.IncludeSales {
		if snap.Sales, err = listSales(ctx, tx, shopkeeperID, q.Range); err != nil {
			return nil, err
		}
	}
	if q.IncludeExpenses {
		if snap.Expenses, err = listExpenses(ctx, tx, shopkeeperID, q.Range); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, store.Unavailable(err)
	}
	return snap, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return val.UTC()
}

var _ store.Repository = (*Store)(nil)
