package service

import (
	"context"
	"strings"

	"github.com/harjot96/POS/internal/domain"
)

// UpsertShopkeeper mirrors a profile from the auth provider. Admin only.
func (s *Service) UpsertShopkeeper(ctx context.Context, shopkeeper domain.Shopkeeper) (domain.Shopkeeper, error) {
	shopkeeper.ID = strings.TrimSpace(shopkeeper.ID)
	shopkeeper.ShopName = strings.TrimSpace(shopkeeper.ShopName)

	var fields fieldErrors
	if shopkeeper.ID == "" {
		fields.add("id")
	}
	switch shopkeeper.SubscriptionPlan {
	case domain.PlanBasic, domain.PlanPremium:
	default:
		fields.add("subscription_plan")
	}
	if err := fields.err(); err != nil {
		return domain.Shopkeeper{}, err
	}
	if actor, ok := ActorFromContext(ctx); !ok || actor.Role != RoleAdmin {
		return domain.Shopkeeper{}, ErrForbidden
	}

	if err := s.repo.UpsertShopkeeper(ctx, shopkeeper); err != nil {
		return domain.Shopkeeper{}, err
	}
	s.invalidateDashboard(ctx, shopkeeper.ID)
	return shopkeeper, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ready reports whether the backing store answers. Stores without a
// connection are always ready.
func (s *Service) Ready(ctx context.Context) error {
	p, ok := s.repo.(pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}
