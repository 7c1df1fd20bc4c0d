package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/venues"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/book"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/config"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/engine"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/feed"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/logger"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("order book viewer starting",
		zap.String("env", cfg.Env),
		zap.Stringer("selection", cfg.Selection),
	)

	store := book.NewStore()
	orch := feed.New(venues.Registry(cfg.VenueRegistry()), store,
		feed.WithLogger(log),
		feed.WithWSConfig(cfg.Transport()),
	)

	// Providers must be registered before the broadcaster starts.
	bc := adapter.NewBroadcaster(log)
	bc.Register(orch)

	monitor := adapter.NewFeedMonitor(cfg.Monitor(), bc.SubscribeAll())
	monitor.WatchConnection(orch)

	var mirror *adapter.RedisWriter
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		mirror = adapter.NewRedisWriter(adapter.NewRedisClient(rdb), bc.SubscribeAll(), log)
	}

	api := server.New(server.Deps{
		Feed:           orch,
		Health:         monitor,
		Stream:         bc,
		Validator:      engine.NewValidator(monitor),
		History:        engine.NewHistory(cfg.Simulation.HistorySize),
		ImbalanceDepth: cfg.Simulation.ImbalanceDepth,
	}, log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		orch.Run(ctx)
		return nil
	})
	g.Go(func() error {
		bc.Run(ctx)
		return nil
	})
	g.Go(func() error {
		monitor.Run(ctx)
		return nil
	})
	if mirror != nil {
		g.Go(func() error {
			mirror.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return api.ListenAndServe(ctx, cfg.HTTP.Addr)
	})
	g.Go(func() error {
		if err := orch.Select(ctx, cfg.Selection); err != nil && ctx.Err() == nil {
			return fmt.Errorf("initial selection: %w", err)
		}
		return nil
	})

	err := g.Wait()
	log.Info("order book viewer stopped")
	return err
}
