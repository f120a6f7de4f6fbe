package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/harjot96/POS/internal/blob"
	"github.com/harjot96/POS/internal/cache"
	"github.com/harjot96/POS/internal/domain"
	"github.com/harjot96/POS/internal/report"
	"github.com/harjot96/POS/internal/store"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleUser  = "user"
)

var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Reports           *report.Engine
	Cache             cache.DashboardCache
	CacheTTL          time.Duration
	Blobs             blob.Store
	Logger            *slog.Logger
	LowStockThreshold int
}

type Service struct {
	repo              store.Repository
	reports           *report.Engine
	cache             cache.DashboardCache
	cacheTTL          time.Duration
	blobs             blob.Store
	log               *slog.Logger
	lowStockThreshold int
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Reports == nil {
		opts.Reports = report.NewEngine(time.Local)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopDashboardCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = report.DefaultLowStockThreshold
	}

	return &Service{
		repo:              repo,
		reports:           opts.Reports,
		cache:             opts.Cache,
		cacheTTL:          opts.CacheTTL,
		blobs:             opts.Blobs,
		log:               opts.Logger,
		lowStockThreshold: opts.LowStockThreshold,
	}
}

// authorize allows admins everywhere and everyone else only on their own
// shopkeeper id.
func (s *Service) authorize(ctx context.Context, shopkeeperID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	if actor.Role == RoleAdmin || actor.ShopkeeperID == shopkeeperID {
		return nil
	}
	return ErrForbidden
}

// fieldErrors collects offending request fields in first-seen order.
type fieldErrors []string

func (f *fieldErrors) add(field string) {
	if !slices.Contains(*f, field) {
		*f = append(*f, field)
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &store.ValidationError{Fields: slices.Clone(f)}
}

func requireShopkeeper(shopkeeperID string) (string, error) {
	shopkeeperID = strings.TrimSpace(shopkeeperID)
	if shopkeeperID == "" {
		return "", &store.ValidationError{Fields: []string{"shopkeeper_id"}}
	}
	return shopkeeperID, nil
}

// detached keeps request values but drops cancellation, so post-commit side
// effects still run when the client has gone away.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}
