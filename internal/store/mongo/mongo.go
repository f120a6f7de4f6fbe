// Package mongo is the document-store backend. An inventory is one document
// holding its stock lines, and sale commits are guarded by a compare-and-swap
// on the inventory's version field.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/metrics"
	"github.com/harjot96/POS/internal/store"
	"github.com/harjot96/POS/internal/xid"
)

const maxCommitAttempts = 8

type Store struct {
	client      *mongodrv.Client
	products    *mongodrv.Collection
	inventories *mongodrv.Collection
	sales       *mongodrv.Collection
	expenses    *mongodrv.Collection
	shopkeepers *mongodrv.Collection
	categories  *mongodrv.Collection
}

func New(ctx context.Context, uri string, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongodrv.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:      client,
		products:    db.Collection("products"),
		inventories: db.Collection("inventories"),
		sales:       db.Collection("sales"),
		expenses:    db.Collection("expenses"),
		shopkeepers: db.Collection("shopkeepers"),
		categories:  db.Collection("categories"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.products.Indexes().CreateMany(ctx, []mongodrv.IndexModel{
		{
			Keys:    bson.D{{Key: "shopkeeper_id", Value: 1}, {Key: "sku", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("shopkeeper_sku"),
		},
		{
			Keys:    bson.D{{Key: "shopkeeper_id", Value: 1}, {Key: "barcode", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("shopkeeper_barcode"),
		},
	}); err != nil {
		return fmt.Errorf("mongo: product indexes: %w", err)
	}
	if _, err := s.sales.Indexes().CreateOne(ctx, mongodrv.IndexModel{
		Keys: bson.D{{Key: "shopkeeper_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("mongo: sale indexes: %w", err)
	}
	if _, err := s.expenses.Indexes().CreateOne(ctx, mongodrv.IndexModel{
		Keys: bson.D{{Key: "shopkeeper_id", Value: 1}, {Key: "date", Value: -1}},
	}); err != nil {
		return fmt.Errorf("mongo: expense indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ShopkeeperID == "" || product.SKU == "" || product.Barcode == "" || product.Name == "" {
		return nil, &store.ValidationError{Fields: []string{"product"}}
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	now := store.NowUTC().Truncate(time.Millisecond)
	product.CreatedAt = now
	product.UpdatedAt = now

	if _, err := s.products.InsertOne(ctx, newProductDoc(product)); err != nil {
		if mongodrv.IsDuplicateKeyError(err) {
			return nil, store.ErrDuplicateProduct
		}
		return nil, store.Unavailable(err)
	}
	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return s.findProduct(ctx, bson.M{"_id": productID})
}

func (s *Store) findProduct(ctx context.Context, filter bson.M) (*domain.Product, error) {
	var doc productDoc
	if err := s.products.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	product := doc.toDomain()
	return &product, nil
}

// FindProductByCode prefers a SKU match over a barcode match.
func (s *Store) FindProductByCode(ctx context.Context, shopkeeperID string, sku string, barcode string) (*domain.Product, error) {
	if sku != "" {
		product, err := s.findProduct(ctx, bson.M{"shopkeeper_id": shopkeeperID, "sku": sku})
		if !errors.Is(err, store.ErrNotFound) {
			return product, err
		}
	}
	if barcode != "" {
		return s.findProduct(ctx, bson.M{"shopkeeper_id": shopkeeperID, "barcode": barcode})
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var doc productDoc
	err := s.products.FindOneAndUpdate(ctx,
		bson.M{"_id": product.ID},
		bson.M{"$set": bson.M{
			"name":        product.Name,
			"category_id": product.CategoryID,
			"price":       toD128(product.Price),
			"description": product.Description,
			"image":       product.ImageRef,
			"updated_at":  store.NowUTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	updated := doc.toDomain()
	return &updated, nil
}

func (s *Store) upsertInventory(ctx context.Context, shopkeeperID string) error {
	now := store.NowUTC()
	_, err := s.inventories.UpdateOne(ctx,
		bson.M{"_id": shopkeeperID},
		bson.M{"$setOnInsert": bson.M{
			"version":    int64(0),
			"products":   bson.A{},
			"created_at": now,
			"updated_at": now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongodrv.IsDuplicateKeyError(err) {
		return store.Unavailable(err)
	}
	return nil
}

func (s *Store) EnsureInventory(ctx context.Context, shopkeeperID string) (*domain.InventoryRecord, error) {
	if err := s.upsertInventory(ctx, shopkeeperID); err != nil {
		return nil, err
	}
	return s.GetInventory(ctx, shopkeeperID)
}

func (s *Store) GetInventory(ctx context.Context, shopkeeperID string) (*domain.InventoryRecord, error) {
	var doc inventoryDoc
	if err := s.inventories.FindOne(ctx, bson.M{"_id": shopkeeperID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return nil, store.ErrInventoryNotFound
		}
		return nil, store.Unavailable(err)
	}
	return doc.toDomain(), nil
}

// AddStockLine pushes the line only when no line for the product exists, so
// two concurrent intakes of the same product cannot both land.
func (s *Store) AddStockLine(ctx context.Context, shopkeeperID string, line domain.StockLine) (*domain.InventoryRecord, error) {
	if line.StockQuantity < 0 {
		return nil, &store.ValidationError{Fields: []string{"stock_quantity"}}
	}
	if err := s.upsertInventory(ctx, shopkeeperID); err != nil {
		return nil, err
	}

	res, err := s.inventories.UpdateOne(ctx,
		bson.M{"_id": shopkeeperID, "products.product_id": bson.M{"$ne": line.ProductID}},
		bson.M{
			"$push": bson.M{"products": newStockLineDoc(line)},
			"$inc":  bson.M{"version": 1},
			"$set":  bson.M{"updated_at": store.NowUTC()},
		},
	)
	if err != nil {
		return nil, store.Unavailable(err)
	}
	if res.MatchedCount == 0 {
		return nil, store.ErrAlreadyInInventory
	}
	return s.GetInventory(ctx, shopkeeperID)
}

// CommitSale reads the inventory, reserves stock against that read and writes
// the new lines back only if the version is unchanged. A lost race retries on
// a fresh read. If the sale insert then fails, the decrements are returned
// with $inc so concurrent commits made since are preserved.
func (s *Store) CommitSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		inv, err := s.GetInventory(ctx, sale.ShopkeeperID)
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
			prepared.CreatedAt = store.NowUTC().Truncate(time.Millisecond)
		}

		res, err := s.inventories.UpdateOne(ctx,
			bson.M{"_id": sale.ShopkeeperID, "version": inv.Version},
			bson.M{
				"$set": bson.M{"products": newStockLineDocs(next), "updated_at": prepared.CreatedAt},
				"$inc": bson.M{"version": 1},
			},
		)
		if err != nil {
			return nil, store.Unavailable(err)
		}
		if res.MatchedCount == 0 {
			metrics.CommitConflicts.Inc()
			continue
		}

		if _, err := s.sales.InsertOne(ctx, newSaleDoc(prepared)); err != nil {
			if restoreErr := s.restoreStock(context.WithoutCancel(ctx), inv, next); restoreErr != nil {
				return nil, store.Unavailable(fmt.Errorf("insert sale: %v; restore stock: %v", err, restoreErr))
			}
			return nil, store.Unavailable(err)
		}
		return &prepared, nil
	}
	return nil, fmt.Errorf("%w: %w after %d attempts", store.ErrStorageUnavailable, store.ErrConflict, maxCommitAttempts)
}

func (s *Store) restoreStock(ctx context.Context, before *domain.InventoryRecord, after []domain.StockLine) error {
	changed := store.ChangedLines(before.Lines, after)
	if len(changed) == 0 {
		return nil
	}
	inc := bson.M{"version": 1}
	filters := make([]any, 0, len(changed))
	for i, productID := range changed {
		idx := before.Line(productID)
		ident := "l" + strconv.Itoa(i)
		inc["products.$["+ident+"].stock_quantity"] = before.Lines[idx].StockQuantity - after[idx].StockQuantity
		filters = append(filters, bson.M{ident + ".product_id": productID})
	}
	_, err := s.inventories.UpdateOne(ctx,
		bson.M{"_id": before.ShopkeeperID},
		bson.M{"$inc": inc, "$set": bson.M{"updated_at": store.NowUTC()}},
		options.Update().SetArrayFilters(options.ArrayFilters{Filters: filters}),
	)
	return err
}

func (s *Store) GetSale(ctx context.Context, saleID string) (*domain.SaleRecord, error) {
	var doc saleDoc
	if err := s.sales.FindOne(ctx, bson.M{"_id": saleID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	sale := doc.toDomain()
	return &sale, nil
}

func rangeFilter(field string, shopkeeperID string, r domain.DateRange) bson.M {
	filter := bson.M{"shopkeeper_id": shopkeeperID}
	bounds := bson.M{}
	if r.From != nil {
		bounds["$gte"] = r.From.UTC()
	}
	if r.To != nil {
		bounds["$lt"] = r.To.UTC()
	}
	if len(bounds) > 0 {
		filter[field] = bounds
	}
	return filter
}

func (s *Store) ListSales(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.SaleRecord, error) {
	cur, err := s.sales.Find(ctx, rangeFilter("created_at", shopkeeperID, r),
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, store.Unavailable(err)
	}
	var docs []saleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, store.Unavailable(err)
	}
	out := make([]domain.SaleRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
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
	if _, err := s.expenses.InsertOne(ctx, expenseDoc{
		ID:            expense.ID,
		ShopkeeperID:  expense.ShopkeeperID,
		Amount:        toD128(expense.Amount),
		CategoryID:    expense.CategoryID,
		Description:   expense.Description,
		PaymentMethod: string(expense.PaymentMethod),
		Date:          expense.Date,
		CreatedAt:     expense.CreatedAt,
	}); err != nil {
		return nil, store.Unavailable(err)
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.ExpenseRecord, error) {
	cur, err := s.expenses.Find(ctx, rangeFilter("date", shopkeeperID, r),
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, store.Unavailable(err)
	}
	var docs []expenseDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, store.Unavailable(err)
	}
	out := make([]domain.ExpenseRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func (s *Store) GetShopkeeper(ctx context.Context, shopkeeperID string) (*domain.Shopkeeper, error) {
	var doc shopkeeperDoc
	if err := s.shopkeepers.FindOne(ctx, bson.M{"_id": shopkeeperID}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, store.Unavailable(err)
	}
	return &domain.Shopkeeper{ID: doc.ID, ShopName: doc.ShopName, SubscriptionPlan: domain.SubscriptionPlan(doc.SubscriptionPlan)}, nil
}

// UpsertShopkeeper mirrors a profile owned by the auth provider.
func (s *Store) UpsertShopkeeper(ctx context.Context, shopkeeper domain.Shopkeeper) error {
	_, err := s.shopkeepers.UpdateOne(ctx,
		bson.M{"_id": shopkeeper.ID},
		bson.M{"$set": bson.M{"shop_name": shopkeeper.ShopName, "subscription_plan": string(shopkeeper.SubscriptionPlan)}},
		options.Update().SetUpsert(true),
	)
	return store.Unavailable(err)
}

func (s *Store) GetCategories(ctx context.Context, ids []string) (map[string]domain.Category, error) {
	out := make(map[string]domain.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.categories.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, store.Unavailable(err)
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, store.Unavailable(err)
	}
	for _, doc := range docs {
		out[doc.ID] = domain.Category{ID: doc.ID, Name: doc.Name, Description: doc.Description}
	}
	return out, nil
}

// ReportSnapshot reads the inventory document first, then the catalog and the
// history. There is no multi-document snapshot here; each read is consistent
// on its own and sale documents are immutable once written.
func (s *Store) ReportSnapshot(ctx context.Context, shopkeeperID string, q domain.SnapshotQuery) (*domain.ReportSnapshot, error) {
	snap := &domain.ReportSnapshot{
		Products:   make(map[string]domain.Product),
		Categories: make(map[string]domain.Category),
	}

	shopkeeper, err := s.GetShopkeeper(ctx, shopkeeperID)
	switch {
	case err == nil:
		snap.Shopkeeper = shopkeeper
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	inv, err := s.GetInventory(ctx, shopkeeperID)
	switch {
	case err == nil:
		snap.Inventory = inv
	case !errors.Is(err, store.ErrInventoryNotFound):
		return nil, err
	}

	cur, err := s.products.Find(ctx, bson.M{"shopkeeper_id": shopkeeperID})
	if err != nil {
		return nil, store.Unavailable(err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, store.Unavailable(err)
	}
	categoryIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		snap.Products[doc.ID] = doc.toDomain()
		if doc.CategoryID != "" {
			categoryIDs = append(categoryIDs, doc.CategoryID)
		}
	}
	if snap.Categories, err = s.GetCategories(ctx, categoryIDs); err != nil {
		return nil, err
	}

	if q.IncludeSales {
		if snap.Sales, err = s.ListSales(ctx, shopkeeperID, q.Range); err != nil {
			return nil, err
		}
	}
	if q.IncludeExpenses {
		if snap.Expenses, err = s.ListExpenses(ctx, shopkeeperID, q.Range); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

var _ store.Repository = (*Store)(nil)
