package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Gatehouse/server/internal/config"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/db"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/notify"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/push"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/realtime"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/service"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/gatehouse/store/sqlite"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/health"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/httpapi"
	"github.com/BrandonDHaskell/Gatehouse/server/internal/redisx"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, WebSocket and gRPC health servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, sqlDB, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer sqlDB.Close()

	writer := db.NewWorker(sqlDB)
	defer writer.Close()

	if cfg.IsDev() && cfg.DevSeed {
		if err := db.SeedDev(ctx, writer, db.DefaultSeed); err != nil {
			return err
		}
		logger.Info("dev seed applied", zap.String("society_id", db.DefaultSeed.SocietyID))
	}

	// Stores
	requests := sqlite.NewAccessRequestStore(sqlDB, writer)
	directory := sqlite.NewDirectory(sqlDB)
	targets := sqlite.NewDeliveryTargetStore(sqlDB, writer)
	logs := sqlite.NewNotificationLogStore(sqlDB, writer)

	// Redis (optional)
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redisx.NewClient(ctx, redisx.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	// Delivery
	sender, err := newPushSender(ctx, cfg.Push, logger)
	if err != nil {
		return err
	}
	dispatcher := push.NewDispatcher(targets, logs, sender, logger)

	hub := realtime.NewHub(realtime.NewRegistry(), logger)
	ws := realtime.NewWSHandler(hub, realtime.NewAuthorizer(directory), realtime.WSConfig{
		OriginPatterns: cfg.WS.AllowedOrigins,
		Buffer:         cfg.WS.SendBuffer,
	}, logger)

	queue := notify.NewQueue(directory, hub, dispatcher, logger, notify.QueueConfig{
		Size:    cfg.Notify.QueueSize,
		Workers: cfg.Notify.Workers,
	})
	// Workers outlive the signal so the buffer drains during shutdown.
	queue.Start(context.WithoutCancel(ctx))

	// Services
	engine := service.NewEngine(requests, directory, queue, logger, service.EngineConfig{
		ApprovalWindow: cfg.Access.ApprovalWindow,
	})
	devices := service.NewDeliveryRegistry(targets, logs, logger)

	schedCfg := service.TimeoutSchedulerConfig{
		Interval: cfg.Access.TimeoutInterval,
		Batch:    cfg.Access.TimeoutBatch,
		LeaseTTL: cfg.Redis.LockTTL,
	}
	var lease *redisx.Lease
	if rdb != nil {
		lease = redisx.NewLease(rdb, logger)
		schedCfg.Leader = lease
	}
	scheduler := service.NewTimeoutScheduler(engine, schedCfg, logger)

	// HTTP
	deps := httpapi.Dependencies{
		Logger:  logger,
		Addr:    cfg.HTTPAddr,
		Engine:  engine,
		Devices: devices,
		WS:      ws,
		Ready:   sqlDB.PingContext,
	}
	if rdb != nil && cfg.RateLimit.Limit > 0 {
		deps.Limiter = redisx.NewRateLimiter(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Per)
	}
	srv := httpapi.NewServer(deps)

	g, gctx := errgroup.WithContext(ctx)

	scheduler.Start(gctx)

	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var hs *health.Server
	if cfg.GRPCAddr != "" {
		hs = health.NewServer(sqlDB.PingContext, health.Config{}, logger)
		g.Go(func() error {
			return hs.ListenAndServe(gctx, cfg.GRPCAddr)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if hs != nil {
			hs.Drain()
		}
		err := srv.Shutdown(shutdownCtx)
		scheduler.Stop()
		if lease != nil {
			if rerr := lease.Release(shutdownCtx, service.TimeoutLeaseName); rerr != nil {
				logger.Warn("release scheduler lease", zap.Error(rerr))
			}
		}
		if qerr := queue.Close(shutdownCtx); qerr != nil {
			logger.Warn("notify queue did not drain", zap.Error(qerr), zap.Int64("dropped", queue.Dropped()))
		}
		if hs != nil {
			hs.Shutdown(shutdownCtx)
		}
		return err
	})

	return g.Wait()
}

func newPushSender(ctx context.Context, cfg config.PushConfig, logger *zap.Logger) (push.Sender, error) {
	switch cfg.Provider {
	case "fcm":
		return push.NewFCMSender(ctx, push.FCMConfig{
			ProjectID:       cfg.ProjectID,
			CredentialsFile: cfg.CredentialsFile,
		}, logger)
	default:
		return push.NewLogSender(logger), nil
	}
}
