package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"

	"github.com/Skotchmaster/fulfillment/internal/cache"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/gateway"
	"github.com/Skotchmaster/fulfillment/internal/reconcile"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/pkg/config"
	"github.com/Skotchmaster/fulfillment/pkg/db"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
)

const (
	lockKey    = "fulfillment:reconcile-refunds"
	lockExpiry = 2 * time.Minute
	runTimeout = 90 * time.Second
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("missing required env DATABASE_URL")
	}
	if cfg.RedisAddr == "" {
		log.Fatal("missing required env REDIS_ADDR")
	}
	if cfg.GatewaySecretKey == "" {
		log.Fatal("missing required env GATEWAY_SECRET_KEY")
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName+"-reconciler")
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, db.Options{DSN: cfg.DatabaseURL, MaxOpenConns: 4})
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}
	rdb, err := cache.NewRedisClient(initCtx, cfg.RedisAddr, cfg.RedisPassword)
	cancel()
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}

	store := repo.New(gdb)

	var publisher events.Publisher = events.Nop{}
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		publisher = kafkaPub
	}

	ledger := &service.Ledger{Repo: store, Cache: cache.NewRedisBalance(rdb, 5*time.Minute), Events: publisher}
	refunds := &service.RefundOrchestrator{
		Repo:    store,
		Gateway: gateway.NewStripe(cfg.GatewaySecretKey),
		Ledger:  ledger,
		Events:  publisher,
	}

	rs := redsync.New(goredis.NewPool(rdb))
	runner := &reconcile.Runner{
		Refunds: refunds,
		NewMutex: func() reconcile.Mutex {
			return rs.NewMutex(lockKey, redsync.WithExpiry(lockExpiry), redsync.WithTries(1))
		},
		Batch:   cfg.ReconcileBatch,
		Grace:   cfg.ReconcileGrace,
		Timeout: runTimeout,
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		ctx := logging.IntoContext(context.Background(), logger)
		if _, err := runner.Run(ctx); err != nil && !errors.Is(err, reconcile.ErrLocked) {
			logger.Error("reconcile_run_failed", "error", err)
		}
	})
	if err != nil {
		log.Fatalf("invalid RECONCILE_SCHEDULE %q: %v", cfg.ReconcileSchedule, err)
	}

	scheduler.Start()
	logger.Info("reconciler_started", "schedule", cfg.ReconcileSchedule, "batch", cfg.ReconcileBatch, "grace", cfg.ReconcileGrace)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("jobs_stopped")
	case <-time.After(runTimeout):
		logger.Warn("jobs_forced_stop")
	}

	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis_close_error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
}
