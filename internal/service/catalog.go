package service

import (
	"context"
	"errors"
	"strings"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/store"
)

func normalizeProductInput(in domain.ProductInput) domain.ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func checkProductInput(fields *fieldErrors, shopkeeperID string, in domain.ProductInput) {
	if shopkeeperID == "" {
		fields.add("shopkeeper_id")
	}
	if in.Name == "" {
		fields.add("name")
	}
	if in.SKU == "" {
		fields.add("sku")
	}
	if in.Barcode == "" {
		fields.add("barcode")
	}
	if in.Price.IsNegative() {
		fields.add("price")
	}
}

// RegisterOrGetProduct returns the shopkeeper's product matching the SKU or
// barcode, creating it when neither matches. created reports which happened.
// In strict mode an existing match is an ErrDuplicateProduct.
//
// Two concurrent registrations of the same code both resolve to the row that
// won the storage uniqueness check.
func (s *Service) RegisterOrGetProduct(ctx context.Context, req domain.ProductCreateRequest) (product domain.Product, created bool, err error) {
	req.ShopkeeperID = strings.TrimSpace(req.ShopkeeperID)
	req.ProductInput = normalizeProductInput(req.ProductInput)
	var fields fieldErrors
	checkProductInput(&fields, req.ShopkeeperID, req.ProductInput)
	if err := fields.err(); err != nil {
		return domain.Product{}, false, err
	}
	if err := s.authorize(ctx, req.ShopkeeperID); err != nil {
		return domain.Product{}, false, err
	}

	existing, err := s.repo.FindProductByCode(ctx, req.ShopkeeperID, req.SKU, req.Barcode)
	switch {
	case err == nil:
		if req.Strict {
			return domain.Product{}, false, store.ErrDuplicateProduct
		}
		return *existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return domain.Product{}, false, err
	}

	inserted, err := s.repo.CreateProduct(ctx, domain.Product{
		ShopkeeperID: req.ShopkeeperID,
		Name:         req.Name,
		SKU:          req.SKU,
		Barcode:      req.Barcode,
		CategoryID:   req.CategoryID,
		Price:        req.Price,
		Description:  req.Description,
		ImageRef:     req.ImageRef,
	})
	if err == nil {
		return *inserted, true, nil
	}
	if !errors.Is(err, store.ErrDuplicateProduct) || req.Strict {
		return domain.Product{}, false, err
	}

	winner, lookupErr := s.repo.FindProductByCode(ctx, req.ShopkeeperID, req.SKU, req.Barcode)
	if lookupErr != nil {
		return domain.Product{}, false, lookupErr
	}
	return *winner, false, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, &store.ValidationError{Fields: []string{"product_id"}}
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.authorize(ctx, product.ShopkeeperID); err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// UpdateProduct edits the catalog entry only. Stock lines keep their intake
// copies and committed sales keep their line item snapshots.
func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	var fields fieldErrors
	updated := existing
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			fields.add("name")
		}
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			fields.add("price")
		}
		updated.Price = *req.Price
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.ImageRef != nil {
		updated.ImageRef = strings.TrimSpace(*req.ImageRef)
	}
	if err := fields.err(); err != nil {
		return domain.Product{}, err
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}
