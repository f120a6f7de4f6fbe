package service

import (
	"context"
	"strings"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/store"
)

func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseRequest) (domain.ExpenseRecord, error) {
	var fields fieldErrors

	shopkeeperID := strings.TrimSpace(req.ShopkeeperID)
	if shopkeeperID == "" {
		fields.add("shopkeeper_id")
	}
	if req.Amount == nil || !req.Amount.IsPositive() {
		fields.add("amount")
	}
	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID == "" {
		fields.add("category_id")
	}
	if !req.PaymentMethod.Valid() {
		fields.add("payment_method")
	}
	if err := fields.err(); err != nil {
		return domain.ExpenseRecord{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return domain.ExpenseRecord{}, err
	}

	now := store.NowUTC()
	expense := domain.ExpenseRecord{
		ShopkeeperID:  shopkeeperID,
		Amount:        *req.Amount,
		CategoryID:    categoryID,
		Description:   strings.TrimSpace(req.Description),
		PaymentMethod: req.PaymentMethod,
		Date:          now,
		CreatedAt:     now,
	}
	if req.Date != nil {
		expense.Date = req.Date.UTC()
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.ExpenseRecord{}, err
	}
	s.invalidateDashboard(ctx, shopkeeperID)
	return *created, nil
}

// ListExpenses returns the shopkeeper's expenses in r, latest date first.
func (s *Service) ListExpenses(ctx context.Context, shopkeeperID string, r domain.DateRange) ([]domain.ExpenseRecord, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, shopkeeperID, r)
}
