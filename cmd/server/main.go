package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/rallye/internal/config"
	"github.com/playperu/rallye/internal/database"
	"github.com/playperu/rallye/internal/handler/health"
	"github.com/playperu/rallye/internal/handler/live"
	"github.com/playperu/rallye/internal/migrations"
	"github.com/playperu/rallye/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, db); err != nil {
			return fmt.Errorf("seeding demo rallye: %w", err)
		}
	}

	required := map[string]health.Checker{
		"sqlite": dbChecker{db},
		"schema": schemaChecker{db},
	}
	optional := map[string]health.Checker{}
	deps := server.Deps{
		Store:           server.NewSQLiteStore(db),
		Broker:          server.NewBroker(),
		PointsPerAnswer: cfg.PointsPerAnswer,
		SPADir:          cfg.SPADir,
	}

	// --- Redis (optional live-location cache) ---
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		optional["redis"] = redisChecker{rdb}
		deps.Cache = server.NewRedisLocationCache(rdb, cfg.LocationTTL)
		logger.Info("connected to redis", "location_ttl", cfg.LocationTTL)
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, deps, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, required, optional).Routes())
		r.Mount("/ws", live.NewHandler(logger, deps.Broker).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// schemaChecker fails until the migrations have been applied.
type schemaChecker struct{ db *sql.DB }

func (s schemaChecker) Check(ctx context.Context) error {
	v, err := migrations.Version(ctx, s.db)
	if err != nil {
		return err
	}
	if v < migrations.Latest {
		return fmt.Errorf("schema version %d, want %d", v, migrations.Latest)
	}
	return nil
}

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
