package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/metrics"
	"github.com/harjot96/POS/internal/store"
)

// ReceiptKey is where the JSON receipt of a committed sale is published.
func ReceiptKey(shopkeeperID string, saleID string) string {
	return fmt.Sprintf("receipts/%s/%s.json", shopkeeperID, saleID)
}

func buildSale(req domain.CommitSaleRequest) (domain.SaleRecord, error) {
	var fields fieldErrors

	shopkeeperID := strings.TrimSpace(req.ShopkeeperID)
	if shopkeeperID == "" {
		fields.add("shopkeeper_id")
	}
	if req.TotalAmount == nil {
		fields.add("total_amount")
	}
	if req.PaymentMethod == "" {
		fields.add("payment_method")
	}
	if req.FinalAmount == nil {
		fields.add("final_amount")
	}
	if len(req.Items) == 0 {
		fields.add("items")
	}

	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		fields.add("payment_method")
	}
	status := req.PaymentStatus
	if status == "" {
		status = domain.PaymentPaid
	}
	if !status.Valid() {
		fields.add("payment_status")
	}

	amount := func(field string, v *decimal.Decimal) decimal.Decimal {
		if v == nil {
			return decimal.Zero
		}
		if v.IsNegative() {
			fields.add(field)
		}
		return *v
	}
	total := amount("total_amount", req.TotalAmount)
	discount := amount("discount", req.Discount)
	tax := amount("tax", req.Tax)
	final := amount("final_amount", req.FinalAmount)
	if req.TotalAmount != nil && req.FinalAmount != nil && !final.Equal(total.Sub(discount).Add(tax)) {
		fields.add("final_amount")
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for _, in := range req.Items {
		productID := strings.TrimSpace(in.ProductID)
		if productID == "" {
			fields.add("items.product_id")
		}
		if in.Quantity < 1 {
			fields.add("items.quantity")
		}
		price := decimal.Zero
		if in.Price != nil {
			if in.Price.IsNegative() {
				fields.add("items.price")
			}
			price = *in.Price
		}
		items = append(items, domain.LineItem{
			ProductID:   productID,
			ProductName: strings.TrimSpace(in.ProductName),
			Quantity:    in.Quantity,
			Price:       price,
			PriceSet:    in.Price != nil,
		})
	}

	if err := fields.err(); err != nil {
		return domain.SaleRecord{}, err
	}

	return domain.SaleRecord{
		ShopkeeperID:  shopkeeperID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Items:         items,
		TotalAmount:   total,
		Discount:      discount,
		Tax:           tax,
		FinalAmount:   final,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: status,
		TransactionID: strings.TrimSpace(req.TransactionID),
		Notes:         strings.TrimSpace(req.Notes),
	}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, store.ErrValidation):
		return "validation"
	case errors.Is(err, store.ErrInventoryNotFound):
		return "inventory_not_found"
	case errors.Is(err, store.ErrProductNotInInventory):
		return "not_in_inventory"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "storage"
	}
}

// CommitSale validates the request, then decrements stock and records the
// sale atomically. Either every line is decremented and the sale exists, or
// nothing changed. The receipt and cache invalidation run after the commit
// and never fail it.
func (s *Service) CommitSale(ctx context.Context, req domain.CommitSaleRequest) (domain.SaleRecord, error) {
	sale, err := buildSale(req)
	if err != nil {
		metrics.SalesRejected.WithLabelValues(rejectReason(err)).Inc()
		return domain.SaleRecord{}, err
	}
	if err := s.authorize(ctx, sale.ShopkeeperID); err != nil {
		metrics.SalesRejected.WithLabelValues(rejectReason(err)).Inc()
		return domain.SaleRecord{}, err
	}

	committed, err := s.repo.CommitSale(ctx, sale)
	if err != nil {
		metrics.SalesRejected.WithLabelValues(rejectReason(err)).Inc()
		return domain.SaleRecord{}, err
	}
	metrics.SalesCommitted.WithLabelValues(string(committed.PaymentMethod)).Inc()

	s.publishReceipt(ctx, *committed)
	s.invalidateDashboard(ctx, committed.ShopkeeperID)

	return *committed, nil
}

func (s *Service) publishReceipt(ctx context.Context, sale domain.SaleRecord) {
	if s.blobs == nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()

	body, err := json.Marshal(sale)
	if err == nil {
		_, err = s.blobs.Put(ctx, ReceiptKey(sale.ShopkeeperID, sale.ID), "application/json", body)
	}
	if err != nil {
		metrics.SideEffectFailures.WithLabelValues("receipt").Inc()
		s.log.Warn("receipt publish failed",
			"sale_id", sale.ID,
			"shopkeeper_id", sale.ShopkeeperID,
			"error", err,
		)
	}
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.SaleRecord, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.SaleRecord{}, &store.ValidationError{Fields: []string{"sale_id"}}
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.SaleRecord{}, err
	}
	if err := s.authorize(ctx, sale.ShopkeeperID); err != nil {
		return domain.SaleRecord{}, err
	}
	return *sale, nil
}

// ListSales returns the shopkeeper's sales in r, newest first.
func (s *Service) ListSales(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.SaleRecord, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, shopkeeperID, r)
}

// ParseRange reads optional startDate/endDate query values. Both accept
// RFC 3339 or a plain date in the report location; a plain endDate covers the
// whole day.
func (s *Service) ParseRange(startDate string, endDate string) (domain.DateRange, error) {
	var (
		r      domain.DateRange
		fields fieldErrors
	)
	loc := s.reports.Location()

	if v := strings.TrimSpace(startDate); v != "" {
		from, _, err := parseBound(v, loc)
		if err != nil {
			fields.add("startDate")
		} else {
			from = from.UTC()
			r.From = &from
		}
	}
	if v := strings.TrimSpace(endDate); v != "" {
		to, dateOnly, err := parseBound(v, loc)
		if err != nil {
			fields.add("endDate")
		} else {
			if dateOnly {
				to = to.AddDate(0, 0, 1)
			}
			to = to.UTC()
			r.To = &to
		}
	}
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		fields.add("endDate")
	}
	if err := fields.err(); err != nil {
		return domain.DateRange{}, err
	}
	return r, nil
}

func parseBound(value string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}
