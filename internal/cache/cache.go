package cache

import (
	"context"
	"time"

	"github.com/harjot96/POS/internal/domain"
)

// DashboardCache holds computed dashboard summaries per shopkeeper. A miss is
// reported as ok=false with a nil error.
type DashboardCache interface {
	Get(ctx context.Context, shopkeeperID string, variant string) (*domain.DashboardSummary, bool, error)
	Set(ctx context.Context, shopkeeperID string, variant string, value *domain.DashboardSummary, ttl time.Duration) error
	Invalidate(ctx context.Context, shopkeeperID string) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string, _ string) (*domain.DashboardSummary, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ string, _ *domain.DashboardSummary, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
