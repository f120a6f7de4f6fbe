package service

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/metrics"
	"github.com/harjot96/POS/internal/report"
	"github.com/harjot96/POS/internal/store"
	"github.com/harjot96/POS/internal/xid"
)

// Upload is an image attached to a stock intake.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type IntakeResult struct {
	Product   domain.Product         `json:"product"`
	Created   bool                   `json:"created"`
	Inventory domain.InventoryRecord `json:"inventory"`
}

func (s *Service) EnsureInventory(ctx context.Context, shopkeeperID string) (domain.InventoryRecord, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return domain.InventoryRecord{}, err
	}
	inv, err := s.repo.EnsureInventory(ctx, shopkeeperID)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	return *inv, nil
}

func checkStockInput(fields *fieldErrors, in domain.StockInput) {
	if in.Quantity < 0 {
		fields.add("stock_quantity")
	}
	if in.PurchasePrice.IsNegative() {
		fields.add("purchase_price")
	}
	if in.SellingPrice.IsNegative() {
		fields.add("selling_price")
	}
}

// AddStockLine puts a catalog product into the shopkeeper's inventory,
// creating the inventory on first use. The product's name and image are
// copied onto the line.
func (s *Service) AddStockLine(ctx context.Context, shopkeeperID string, productID string, in domain.StockInput) (domain.InventoryRecord, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	var fields fieldErrors
	checkStockInput(&fields, in)
	if err := fields.err(); err != nil {
		return domain.InventoryRecord{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return domain.InventoryRecord{}, err
	}

	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	if product.ShopkeeperID != shopkeeperID {
		return domain.InventoryRecord{}, store.ErrNotFound
	}

	inv, err := s.repo.AddStockLine(ctx, shopkeeperID, domain.StockLine{
		ProductID:      product.ID,
		StockQuantity:  in.Quantity,
		PurchasePrice:  in.PurchasePrice,
		SellingPrice:   in.SellingPrice,
		ExpirationDate: in.ExpirationDate,
		Name:           product.Name,
		ImageRef:       product.ImageRef,
	})
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	s.invalidateDashboard(ctx, shopkeeperID)
	return *inv, nil
}

// IntakeProduct is the one-shot "new product on the shelf" flow: upload the
// image if any, register or reuse the catalog product, then stock it.
func (s *Service) IntakeProduct(ctx context.Context, shopkeeperID string, req domain.StockIntakeRequest, image *Upload) (IntakeResult, error) {
	shopkeeperID = strings.TrimSpace(shopkeeperID)
	req.ProductInput = normalizeProductInput(req.ProductInput)

	var fields fieldErrors
	checkProductInput(&fields, shopkeeperID, req.ProductInput)
	checkStockInput(&fields, req.StockInput)
	if err := fields.err(); err != nil {
		return IntakeResult{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return IntakeResult{}, err
	}

	if image != nil && len(image.Data) > 0 {
		ref, err := s.storeImage(ctx, shopkeeperID, image)
		if err != nil {
			return IntakeResult{}, err
		}
		req.ImageRef = ref
	}

	product, created, err := s.RegisterOrGetProduct(ctx, domain.ProductCreateRequest{
		ShopkeeperID: shopkeeperID,
		ProductInput: req.ProductInput,
	})
	if err != nil {
		return IntakeResult{}, err
	}

	inv, err := s.AddStockLine(ctx, shopkeeperID, product.ID, req.StockInput)
	if err != nil {
		return IntakeResult{}, err
	}
	return IntakeResult{Product: product, Created: created, Inventory: inv}, nil
}

func (s *Service) storeImage(ctx context.Context, shopkeeperID string, image *Upload) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("%w: no object storage configured", store.ErrStorageUnavailable)
	}
	contentType := image.ContentType
	ext := strings.ToLower(path.Ext(image.Filename))
	if ext == "" && contentType != "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", &store.ValidationError{Fields: []string{"image"}}
	}

	key := fmt.Sprintf("products/%s/%s%s", shopkeeperID, xid.New("img"), ext)
	ref, err := s.blobs.Put(ctx, key, contentType, image.Data)
	if err != nil {
		return "", fmt.Errorf("%w: upload image: %v", store.ErrStorageUnavailable, err)
	}
	return ref, nil
}

func (s *Service) ListInventory(ctx context.Context, shopkeeperID string) ([]domain.InventoryItem, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return nil, err
	}
	snap, err := s.repo.ReportSnapshot(ctx, shopkeeperID, domain.SnapshotQuery{})
	if err != nil {
		return nil, err
	}
	if snap.Inventory == nil {
		return nil, store.ErrInventoryNotFound
	}
	return report.ListInventory(snap), nil
}

// ComputeStats counts lines by stock level. threshold <= 0 uses the
// configured low-stock threshold.
func (s *Service) ComputeStats(ctx context.Context, shopkeeperID string, threshold int) (domain.InventoryStats, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return domain.InventoryStats{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return domain.InventoryStats{}, err
	}
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	inv, err := s.repo.GetInventory(ctx, shopkeeperID)
	if err != nil {
		return domain.InventoryStats{}, err
	}
	return report.Stats(inv, threshold), nil
}

func (s *Service) invalidateDashboard(ctx context.Context, shopkeeperID string) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.cache.Invalidate(ctx, shopkeeperID); err != nil {
		metrics.SideEffectFailures.WithLabelValues("cache_invalidate").Inc()
		s.log.Warn("dashboard cache invalidate failed", "shopkeeper_id", shopkeeperID, "error", err)
	}
}
