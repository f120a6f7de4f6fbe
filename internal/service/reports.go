package service

import (
	"context"
	"errors"
	"time"

	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/metrics"
	"github.com/harjot96/POS/internal/report"
	"github.com/harjot96/POS/internal/store"
)

func (s *Service) FastSelling(ctx context.Context, shopkeeperID string) ([]domain.ProductView, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return nil, err
	}
	snap, err := s.repo.ReportSnapshot(ctx, shopkeeperID, domain.SnapshotQuery{IncludeSales: true})
	if err != nil {
		return nil, err
	}
	return report.FastSelling(snap), nil
}

func (s *Service) FindProducts(ctx context.Context, shopkeeperID string, q domain.FinderQuery) ([]domain.ProductView, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return nil, err
	}
	switch q.Filter {
	case domain.FilterNone, domain.FilterMostSelling, domain.FilterLowStock, domain.FilterAchieved:
	default:
		return nil, &store.ValidationError{Fields: []string{"filter"}}
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return nil, err
	}

	snap, err := s.repo.ReportSnapshot(ctx, shopkeeperID, domain.SnapshotQuery{IncludeSales: true})
	if err != nil {
		return nil, err
	}
	if q.Filter != domain.FilterMostSelling && snap.Inventory == nil {
		return nil, store.ErrInventoryNotFound
	}
	return report.FindProducts(snap, q), nil
}

// rangeVariant names a date range inside the shopkeeper's cache entry.
func rangeVariant(r domain.DateRange) string {
	bound := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return "summary:" + bound(r.From) + ":" + bound(r.To)
}

// planWindow resolves an empty range to the shopkeeper's plan window. The
// cache variant names the plan so the moving lower bound of the Basic window
// does not create a new entry per request.
func (s *Service) planWindow(ctx context.Context, shopkeeperID string, r domain.DateRange) (domain.DateRange, string, error) {
	if !r.IsZero() {
		return r, rangeVariant(r), nil
	}
	plan, err := s.plan(ctx, shopkeeperID)
	if err != nil {
		return domain.DateRange{}, "", err
	}
	variant := "summary:premium-all"
	if plan != domain.PlanPremium {
		variant = "summary:basic-7d"
	}
	return s.reports.TimelineRange(plan, r), variant, nil
}

// DashboardSummary serves from the dashboard cache when possible. Cache
// faults are logged and fall through to a fresh computation.
func (s *Service) DashboardSummary(ctx context.Context, shopkeeperID string, r domain.DateRange) (domain.DashboardSummary, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return domain.DashboardSummary{}, err
	}

	r, variant, err := s.planWindow(ctx, shopkeeperID, r)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	cached, ok, err := s.cache.Get(ctx, shopkeeperID, variant)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.log.Warn("dashboard cache read failed", "shopkeeper_id", shopkeeperID, "error", err)
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return *cached, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	snap, err := s.repo.ReportSnapshot(ctx, shopkeeperID, domain.SnapshotQuery{
		Range:           r,
		IncludeSales:    true,
		IncludeExpenses: true,
	})
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	summary := s.reports.Dashboard(snap, r)

	if err := s.cache.Set(ctx, shopkeeperID, variant, &summary, s.cacheTTL); err != nil {
		s.log.Warn("dashboard cache write failed", "shopkeeper_id", shopkeeperID, "error", err)
	}
	return summary, nil
}

func (s *Service) plan(ctx context.Context, shopkeeperID string) (domain.SubscriptionPlan, error) {
	shopkeeper, err := s.repo.GetShopkeeper(ctx, shopkeeperID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.PlanBasic, nil
	case err != nil:
		return "", err
	case shopkeeper.SubscriptionPlan == domain.PlanPremium:
		return domain.PlanPremium, nil
	default:
		return domain.PlanBasic, nil
	}
}

// SalesTimeline groups sales by day. Without explicit bounds a Basic plan
// sees the trailing seven days and a Premium plan sees all history.
func (s *Service) SalesTimeline(ctx context.Context, shopkeeperID string, explicit domain.DateRange) (domain.SalesTimeline, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return domain.SalesTimeline{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return domain.SalesTimeline{}, err
	}

	plan, err := s.plan(ctx, shopkeeperID)
	if err != nil {
		return domain.SalesTimeline{}, err
	}
	r := s.reports.TimelineRange(plan, explicit)

	sales, err := s.repo.ListSales(ctx, shopkeeperID, r)
	if err != nil {
		return domain.SalesTimeline{}, err
	}
	return s.reports.Timeline(sales, plan, r), nil
}

func (s *Service) MonthlyTrend(ctx context.Context, shopkeeperID string, r domain.DateRange) (domain.MonthlyTrend, error) {
	shopkeeperID, err := requireShopkeeper(shopkeeperID)
	if err != nil {
		return domain.MonthlyTrend{}, err
	}
	if err := s.authorize(ctx, shopkeeperID); err != nil {
		return domain.MonthlyTrend{}, err
	}
	r, _, err = s.planWindow(ctx, shopkeeperID, r)
	if err != nil {
		return domain.MonthlyTrend{}, err
	}
	snap, err := s.repo.ReportSnapshot(ctx, shopkeeperID, domain.SnapshotQuery{
		Range:           r,
		IncludeSales:    true,
		IncludeExpenses: true,
	})
	if err != nil {
		return domain.MonthlyTrend{}, err
	}
	return s.reports.MonthlyTrend(snap, r), nil
}
