package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	_ "go.uber.org/automaxprocs"

	"github.com/Skotchmaster/fulfillment/internal/cache"
	"github.com/Skotchmaster/fulfillment/internal/catalog"
	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/gateway"
	"github.com/Skotchmaster/fulfillment/internal/httpserver"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/service"
	"github.com/Skotchmaster/fulfillment/pkg/authclient"
	"github.com/Skotchmaster/fulfillment/pkg/config"
	"github.com/Skotchmaster/fulfillment/pkg/db"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	loggingmw "github.com/Skotchmaster/fulfillment/pkg/middleware/logging"
)

const balanceTTL = 5 * time.Minute

func main() {
	cfg := config.Load()
	if err := cfg.Require(); err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, db.Options{
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		Migrate:      models.All(),
	})
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	store := repo.New(gdb)

	var publisher events.Publisher = events.Nop{}
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
		publisher = kafkaPub
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	var balances cache.BalanceCache
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		redisCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err = cache.NewRedisClient(redisCtx, cfg.RedisAddr, cfg.RedisPassword)
		cancel()
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		balances = cache.NewRedisBalance(rdb, balanceTTL)
	}

	var gw gateway.Gateway = gateway.Disabled{}
	if cfg.GatewaySecretKey != "" {
		gw = gateway.NewStripe(cfg.GatewaySecretKey)
	} else {
		logger.Warn("gateway_disabled", "reason", "GATEWAY_SECRET_KEY is empty")
	}

	ledger := &service.Ledger{Repo: store, Cache: balances, Events: publisher}
	promos := &service.PromoValidator{Repo: store}
	refunds := &service.RefundOrchestrator{Repo: store, Gateway: gw, Ledger: ledger, Events: publisher}
	workflow := &service.Workflow{Repo: store, Refunds: refunds, Events: publisher}
	orders := &service.OrderService{
		Repo:            store,
		Catalog:         catalog.NewClient(cfg.CatalogHTTPURL),
		Gateway:         gw,
		Promos:          promos,
		Refunds:         refunds,
		Returns:         workflow,
		Events:          publisher,
		SignatureSecret: cfg.GatewaySignatureSecret,
		Currency:        cfg.Currency,
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID(), loggingmw.RequestLogger(logger), middleware.Recover())

	deps := &httpserver.Deps{
		Orders:    &httpserver.OrderHTTP{Svc: orders, Refunds: refunds},
		Returns:   &httpserver.RequestHTTP{Svc: workflow, Kind: domain.ProcessReturn},
		Exchanges: &httpserver.RequestHTTP{Svc: workflow, Kind: domain.ProcessExchange},
		Promos:    &httpserver.PromoHTTP{Svc: promos},
		Wallet:    &httpserver.WalletHTTP{Ledger: ledger},
		JWTSecret: cfg.JWTAccessSecret,
		Ready: func() error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return sqlDB.PingContext(ctx)
		},
	}
	if cfg.AuthHTTPURL != "" {
		deps.AuthClient = authclient.NewClient(cfg.AuthHTTPURL)
	}
	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("server_starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis_close_error", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}

	logger.Info("shutdown_complete")
}
