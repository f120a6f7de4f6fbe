package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harjot96/POS/internal/blob"
	"github.com/harjot96/POS/internal/cache"
	"github.com/harjot96/POS/internal/config"
	"github.com/harjot96/POS/internal/httpapi"
	"github.com/harjot96/POS/internal/logger"
	"github.com/harjot96/POS/internal/report"
	"github.com/harjot96/POS/internal/service"
	"github.com/harjot96/POS/internal/store"
	"github.com/harjot96/POS/internal/store/memory"
	mongostore "github.com/harjot96/POS/internal/store/mongo"
	pgstore "github.com/harjot96/POS/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

// openRepository picks postgres, then mongo, then the seeded in-memory store.
// A configured backend that cannot be reached is fatal.
func openRepository(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Repository, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		log.Info("repository selected", slog.String("backend", "postgres"))
		return pg, pg.Close, nil
	case cfg.MongoURI != "":
		mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo unavailable and MONGO_URI is set: %w", err)
		}
		log.Info("repository selected", slog.String("backend", "mongo"), slog.String("database", cfg.MongoDatabase))
		return mg, func() error { return mg.Close(context.Background()) }, nil
	default:
		log.Info("repository selected", slog.String("backend", "memory"))
		return memory.NewSeeded(), nil, nil
	}
}

func openCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.DashboardCache, func() error) {
	if cfg.RedisAddr == "" {
		log.Info("cache selected", slog.String("backend", "noop"))
		return cache.NoopDashboardCache{}, nil
	}
	redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis unavailable, using noop cache", slog.Any("error", err))
		_ = redisCache.Close()
		return cache.NoopDashboardCache{}, nil
	}
	log.Info("cache selected", slog.String("backend", "redis"))
	return redisCache, redisCache.Close
}

func blobOptions(cfg config.Config) blob.Options {
	opts := blob.Options{
		Driver:    cfg.BlobDriver,
		LocalRoot: cfg.BlobLocalRoot,
		BaseURL:   cfg.BlobBaseURL,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Key:       cfg.S3Key,
		Secret:    cfg.S3Secret,
		Endpoint:  cfg.S3Endpoint,
	}
	if opts.Driver == "s3" {
		opts.BaseURL = cfg.S3URL
	}
	return opts
}

func serve(parent context.Context) error {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}
	log := logger.New(cfg.AppEnv)
	slog.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	startCtx, cancel := context.WithTimeout(parent, 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				log.Error("close failed", slog.Any("error", err))
			}
		}
	}()

	repo, closeRepo, err := openRepository(startCtx, cfg, log)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	dashboards, closeCache := openCache(startCtx, cfg, log)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	blobs, err := blob.Open(startCtx, blobOptions(cfg))
	if err != nil {
		return err
	}

	svc := service.New(repo, service.Options{
		Reports:           report.NewEngine(loc),
		Cache:             dashboards,
		CacheTTL:          cfg.DashboardCacheTTL,
		Blobs:             blobs,
		Logger:            log,
		LowStockThreshold: cfg.LowStockThreshold,
	})
	api := httpapi.New(svc, httpapi.NewAuthenticator(cfg.AuthSecret, 0), cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("POS backend listening", slog.String("addr", cfg.Address()), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	err = group.Wait()
	log.Info("server stopped")
	return err
}
