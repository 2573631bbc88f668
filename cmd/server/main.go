package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/shop-billing/internal/adapter/event"
	"github.com/rl1809/shop-billing/internal/adapter/handler"
	"github.com/rl1809/shop-billing/internal/adapter/storage"
	"github.com/rl1809/shop-billing/internal/config"
	"github.com/rl1809/shop-billing/internal/core/service"
	"github.com/rl1809/shop-billing/internal/logger"
	"github.com/rl1809/shop-billing/internal/port"
	"github.com/rl1809/shop-billing/internal/telemetry"
)

const storeHealthInterval = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		IsDevelopment:     cfg.IsDevelopment(),
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.Config{
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		ServiceName: cfg.Otel.ServiceName,
	})
	if err != nil {
		appLogger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			appLogger.Warn("tracing shutdown", zap.Error(err))
		}
	}()
	if cfg.Otel.Endpoint != "" {
		appLogger.Info("exporting traces", zap.String("endpoint", cfg.Otel.Endpoint))
	}

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		appLogger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.Close()
	appLogger.Info("store ready", zap.String("driver", cfg.Store.Driver))

	consistency, err := service.ParseConsistency(cfg.Stock.Consistency)
	if err != nil {
		appLogger.Fatal("invalid stock consistency", zap.Error(err))
	}

	billingOpts := []service.BillingOption{service.WithConsistency(consistency)}

	// Initialize Redis (optional): cross-instance stock locks and idempotency keys
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: 100,
		})
		redisAdapter := storage.NewRedisAdapter(rdb, cfg.Stock.LockTTL, appLogger.Named("redis"))
		if err := redisAdapter.Ping(ctx); err != nil {
			appLogger.Fatal("failed to connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer redisAdapter.Close()
		appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

		billingOpts = append(billingOpts,
			service.WithStockLocker(redisAdapter),
			service.WithIdempotency(redisAdapter, cfg.Stock.IdempotencyTTL),
		)
	} else {
		billingOpts = append(billingOpts,
			service.WithIdempotency(storage.NewMemoryIdempotency(), cfg.Stock.IdempotencyTTL),
		)
	}

	// Initialize event publisher (optional)
	var publisher port.EventPublisher = event.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		appLogger.Info("publishing bill events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	defer publisher.Close()
	billingOpts = append(billingOpts, service.WithEventPublisher(publisher))

	// Initialize services
	inventoryService := service.NewInventoryService(store, appLogger.Named("inventory"))
	billingService := service.NewBillingService(store, store, appLogger.Named("billing"), billingOpts...)
	appLogger.Info("billing engine ready", zap.String("stock_consistency", string(billingService.Consistency())))

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(inventoryService, billingService, store.Ping, appLogger.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPPort,
		Handler:           httpHandler.Routes(cfg.Server.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Initialize gRPC health server
	grpcHandler := handler.NewGRPCHandler(appLogger.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.Server.GRPCPort)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCPort), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCPort))
		return grpcHandler.Server().Serve(lis)
	})

	g.Go(func() error {
		grpcHandler.WatchStore(gctx, store.Ping, storeHealthInterval)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("HTTP server shutdown", zap.Error(err))
		}
		appLogger.Info("HTTP server stopped")

		grpcHandler.Shutdown()
		appLogger.Info("gRPC server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("server error", zap.Error(err))
	}
	appLogger.Info("connections closed")
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config) (port.Store, error) {
	var store port.Store

	switch cfg.Store.Driver {
	case config.DriverMySQL:
		db, err := storage.OpenMySQL(ctx, storage.MySQLConfig{
			DSN:             cfg.Store.URL,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		store = storage.NewMySQLAdapter(db)
	case config.DriverMongo:
		client, err := storage.OpenMongo(ctx, cfg.Store.URL)
		if err != nil {
			return nil, err
		}
		store = storage.NewMongoAdapter(client, cfg.Store.MongoDatabase)
	default:
		return storage.NewMemoryAdapter(), nil
	}

	if m, ok := store.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return store, nil
}
