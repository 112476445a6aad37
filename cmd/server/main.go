package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/cinema-recommendation/internal/cache"
	"github.com/actuallystonmai/cinema-recommendation/internal/config"
	"github.com/actuallystonmai/cinema-recommendation/internal/handler"
	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
	"github.com/actuallystonmai/cinema-recommendation/internal/model"
	"github.com/actuallystonmai/cinema-recommendation/internal/repository"
	"github.com/actuallystonmai/cinema-recommendation/internal/router"
	"github.com/actuallystonmai/cinema-recommendation/internal/service"
	"github.com/actuallystonmai/cinema-recommendation/internal/supervisor"
	"github.com/actuallystonmai/cinema-recommendation/seeds"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

//nolint:gocritic // zerolog.Logger is passed by value
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	// ------------ PostgreSQL ---------------
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := waitForDB(ctx, pool, logger); err != nil {
		return err
	}
	logger.Info().Msg("connected to PostgreSQL")

	// ------------ Run Migrations ---------------
	migrator, err := repository.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer migrator.Close() //nolint:errcheck

	// for migrate-down using CLI command
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := migrator.Down(); err != nil {
			return err
		}
		logger.Info().Msg("migrations dropped")
		return nil
	}

	if err := migrator.Up(); err != nil {
		return err
	}
	logSchemaVersion(migrator, logger)

	// ------------ Setup Seed Data ---------------
	if cfg.SeedOnStart {
		if err := checkSeed(ctx, pool, logger); err != nil {
			return fmt.Errorf("check seed: %w", err)
		}
	}

	// ------------ Redis ---------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		// lists are recomputed on every request while Redis is down
		logger.Warn().Err(err).Msg("redis unavailable at startup")
	}

	// ------------ Wiring ---------------
	repo := repository.NewRepository(pool)
	resultCache := cache.NewCache(rdb, cfg.CacheTTL, logger)
	index := model.NewTextIndex(repo, model.DefaultMaxFeatures, logger)
	svc := service.NewService(repo, resultCache, model.NewClient(index), cfg.ScoreTimeout, logger)

	// Warm the description index; failures surface again on first use.
	if err := index.Rebuild(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial text index build failed")
	}

	h := handler.NewHandler(svc, map[string]handler.Pinger{
		"postgres": repo,
		"redis":    resultCache,
	}, logger)
	routes := router.Setup(h, router.Options{
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		CORSOrigins:       cfg.CORSOrigins,
	}, logger)

	// ---------------- Server --------------------
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{ShutdownTimeout: cfg.ShutdownTimeout})
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.ShutdownTimeout))
	tree.AddMessagingService(supervisor.NewFuncService("catalog-watcher", svc.WatchCatalog))

	logger.Info().Str("addr", cfg.Addr()).Msg("server running")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

//nolint:gocritic // zerolog.Logger is passed by value
type schemaVersioner interface {
	Version() (uint, bool, error)
}

//nolint:gocritic // zerolog.Logger is passed by value
func logSchemaVersion(v schemaVersioner, logger zerolog.Logger) {
	version, dirty, err := v.Version()
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("read schema version failed")
	case dirty:
		logger.Warn().Uint("version", version).Bool("dirty", true).Msg("schema is dirty after migration")
	default:
		logger.Info().Uint("version", version).Msg("migrations applied")
	}
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		logger.Info().Int("attempt", i+1).Msg("waiting for database")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

//nolint:gocritic // zerolog.Logger is passed by value
func checkSeed(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM movies").Scan(&count); err != nil {
		return fmt.Errorf("check movies count: %w", err)
	}
	if count > 0 {
		logger.Info().Int("movies", count).Msg("database already seeded, skipping")
		return nil
	}
	return seeds.Setup(ctx, pool, logger)
}
