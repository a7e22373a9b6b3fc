package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cristianortiz/carauction/internal/auction/application"
	auctiondomain "github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/auction/infra/httpapi"
	auctionmemory "github.com/cristianortiz/carauction/internal/auction/infra/repository/memory"
	auctionpg "github.com/cristianortiz/carauction/internal/auction/infra/repository/postgres"
	auctionws "github.com/cristianortiz/carauction/internal/auction/infra/websocket"
	cardomain "github.com/cristianortiz/carauction/internal/car/domain"
	carpg "github.com/cristianortiz/carauction/internal/car/infra/repository/postgres"
	"github.com/cristianortiz/carauction/internal/shared/clock"
	"github.com/cristianortiz/carauction/internal/shared/config"
	"github.com/cristianortiz/carauction/internal/shared/db"
	"github.com/cristianortiz/carauction/internal/shared/db/migrations"
	"github.com/cristianortiz/carauction/internal/shared/httpserver"
	"github.com/cristianortiz/carauction/internal/shared/lock"
	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/cristianortiz/carauction/internal/shared/ratelimit"
	"github.com/cristianortiz/carauction/internal/shared/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log := logger.GetLogger()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := logger.SetLevel(cfg.App.LogLevel); err != nil {
		log.Warn("Invalid log level, keeping debug", zap.String("level", cfg.App.LogLevel), zap.Error(err))
	}

	log.Info("Starting car auction server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("database", cfg.Database.Driver),
		zap.String("lock", cfg.Lock.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var (
		repo    auctiondomain.AuctionRepository
		catalog cardomain.Catalog
	)
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.RunMigrations {
			log.Info("Running database migrations...")
			if err := migrations.RunMigrations(db.BuildPostgresDSN(cfg.Database)); err != nil {
				return err
			}
		}
		pool, err := db.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = auctionpg.NewAuctionRepository(pool)
		catalog = carpg.NewCarRepository(pool)
	default:
		// car ids are not checked without a catalog
		log.Warn("Using in-memory storage, data is lost on restart")
		repo = auctionmemory.NewAuctionRepository()
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, cfg.Lock.Timeout)
	default:
		locker = lock.NewKeyedMutex(cfg.Lock.Timeout)
	}

	clk := clock.System{}
	hub := websocket.NewHub()
	broadcaster := auctionws.NewBroadcaster(hub)

	mutator := application.NewAuctionMutator(repo, locker, cfg.Auction.MaxRetries)
	closeUC := application.NewCloseAuctionUseCase(mutator, broadcaster)
	service := application.NewAuctionService(
		application.NewCreateAuctionUseCase(repo, catalog, clk),
		application.NewPlaceBidUseCase(mutator, clk, broadcaster),
		closeUC,
		application.NewCancelAuctionUseCase(mutator, clk, broadcaster),
		application.NewGetAuctionUseCase(repo, catalog),
	)
	sweeper := application.NewSweeper(repo, closeUC, clk, cfg.Auction.SweepInterval)
	// one bid budget per IP across REST and websocket
	bidLimiter := ratelimit.New(cfg.RateLimit)
	wsHandler := auctionws.NewAuctionWSHandler(ctx, service, hub, bidLimiter)

	server := httpserver.NewServer(cfg.Server,
		httpapi.NewAuctionHandler(service, clk, bidLimiter),
		wsHandler,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return server.Start(gctx, cfg.Server.Addr) })
	return g.Wait()
}
