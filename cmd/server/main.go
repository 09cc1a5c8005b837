package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/stock-ledger/internal/adapter/handler"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/security"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/logger"
	"github.com/rl1809/stock-ledger/internal/metrics"
	"github.com/rl1809/stock-ledger/internal/port"
)

const reconcileTimeout = 30 * time.Second

// store is what both storage drivers provide.
type store interface {
	port.CatalogRepository
	port.LedgerRepository
	port.AccountRepository
	handler.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zlog.Sync()
	zlog = zlog.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	db, closeStore, err := openStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open storage", zap.Error(err))
	}
	zlog.Info("storage ready", zap.String("driver", cfg.Database.Driver))

	// Initialize Redis
	var cache port.CacheRepository
	var redisAdapter *storage.RedisAdapter
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Fatal("failed to connect redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		redisAdapter = storage.NewRedisAdapter(rdb, cfg.Ledger.IdempotencyTTL)
		cache = redisAdapter
		zlog.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		zlog.Warn("redis disabled, idempotency keys and the stock mirror are off")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "stock_ledger")

	// Start the stock mirror workers and bring the mirror in line with the catalog
	stockSync := service.NewStockSync(cfg.Ledger.SyncQueueSize, cache, m, zlog.Named("stock_sync"))
	stockSync.Start(cfg.Ledger.SyncWorkers)
	if err := reconcile(ctx, db, stockSync); err != nil {
		zlog.Error("stock mirror reconcile failed", zap.Error(err))
	}

	// Initialize services
	catalogService := service.NewCatalogService(db, stockSync)
	ledgerService := service.NewLedgerService(db, db,
		service.LedgerConfig{MaxRetries: cfg.Ledger.MaxRetries, RetryBackoff: cfg.Ledger.RetryBackoff},
		service.WithCache(cache),
		service.WithStockSync(stockSync),
		service.WithMetrics(m),
		service.WithLogger(zlog.Named("ledger")))
	accountService := service.NewAccountService(db, security.NewBcryptHasher(cfg.Security.BcryptCost))

	// Initialize gRPC health server
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reporter := handler.NewHealthReporter(healthServer, cfg.GRPC.HealthInterval, zlog.Named("health"))
	reporter.Register(cfg.Database.Driver, db)
	if redisAdapter != nil {
		reporter.Register("redis", redisAdapter)
	}
	go reporter.Run(ctx)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		zlog.Fatal("failed to listen", zap.String("addr", cfg.GRPCAddr()), zap.Error(err))
	}

	go func() {
		zlog.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil {
			zlog.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(catalogService, ledgerService, accountService, cfg.HTTP.MaxBodyBytes)
	router := handler.NewRouter(httpHandler, m, zlog, handler.RouterConfig{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		CORSOrigins:    cfg.HTTP.CORSAllowOrigins,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		zlog.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr()))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down...")

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP shutdown error", zap.Error(err))
	}
	zlog.Info("HTTP server stopped")

	// Stop gRPC server
	cancel()
	reporter.Shutdown()
	grpcServer.GracefulStop()
	zlog.Info("gRPC server stopped")

	// Drain the stock mirror queue
	stockSync.Close()
	zlog.Info("stock sync workers stopped")

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	closeStore()
	zlog.Info("connections closed")
}

func openStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (store, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		zlog.Warn("using in-memory storage, data is lost on restart")
		return storage.NewMemoryAdapter(), func() {}, nil
	}

	sqlDB, err := storage.OpenMySQL(ctx, storage.MySQLConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Name:            cfg.Database.Name,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.AutoMigrate {
		migrator, err := storage.NewMigrator(sqlDB, zlog.Named("migrate"))
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		err = migrator.Up()
		migrator.Close()
		if err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	return storage.NewMySQLAdapter(sqlDB), func() { sqlDB.Close() }, nil
}

func reconcile(ctx context.Context, catalog port.CatalogRepository, stockSync *service.StockSync) error {
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	products, err := catalog.ListProducts(ctx)
	if err != nil {
		return err
	}
	return stockSync.Reconcile(ctx, products)
}
