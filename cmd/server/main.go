package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-checkout-service/config"
	"github.com/fekuna/omnipos-checkout-service/internal/auth"
	"github.com/fekuna/omnipos-checkout-service/internal/payment/braintree"
	"github.com/fekuna/omnipos-checkout-service/internal/server"
	"github.com/fekuna/omnipos-checkout-service/pkg/broker"
	"github.com/fekuna/omnipos-checkout-service/pkg/cache"
	"github.com/fekuna/omnipos-checkout-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-checkout-service/pkg/logger"
	"github.com/fekuna/omnipos-checkout-service/pkg/search"

	catH "github.com/fekuna/omnipos-checkout-service/internal/category/handler"
	catRepoPkg "github.com/fekuna/omnipos-checkout-service/internal/category/repository"
	catUCPkg "github.com/fekuna/omnipos-checkout-service/internal/category/usecase"

	prodH "github.com/fekuna/omnipos-checkout-service/internal/product/handler"
	prodRepoPkg "github.com/fekuna/omnipos-checkout-service/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-checkout-service/internal/product/usecase"

	orderGuardPkg "github.com/fekuna/omnipos-checkout-service/internal/order/guard"
	orderH "github.com/fekuna/omnipos-checkout-service/internal/order/handler"
	orderReconcilePkg "github.com/fekuna/omnipos-checkout-service/internal/order/reconcile"
	orderRepoPkg "github.com/fekuna/omnipos-checkout-service/internal/order/repository"
	orderUCPkg "github.com/fekuna/omnipos-checkout-service/internal/order/usecase"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// Prices go over the wire as JSON numbers, like the storefront expects.
	decimal.MarshalJSONWithoutQuotes = true

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
		FilePath:          cfg.Logger.FilePath,
	}

	if cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Repositories
	catRepo := catRepoPkg.NewPGRepository(db)
	prodRepo := prodRepoPkg.NewPGRepository(db)
	orderRepo := orderRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5.5 Initialize Kafka
	brokerCfg := &broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.ReconciliationTopic,
		GroupID: cfg.Kafka.GroupID,
	}
	kafkaProducer := broker.NewProducer(brokerCfg)
	defer kafkaProducer.Close()
	kafkaConsumer := broker.NewConsumer(brokerCfg)
	defer kafkaConsumer.Close()
	appLogger.Info("Configured Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.ReconciliationTopic))

	// 5.8 Initialize Elasticsearch
	var esClient *search.Client
	if cfg.Elastic.Enabled {
		esClient, err = search.NewClient(&search.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			// Search falls back to Postgres without it.
			appLogger.Warn("Could not connect to Elasticsearch", zap.Error(err))
			esClient = nil
		} else {
			appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
		}
	}

	// 5.9 Initialize Payment Gateway
	gateway, err := braintree.NewClient(&braintree.Config{
		Environment: cfg.Gateway.Environment,
		MerchantID:  cfg.Gateway.MerchantID,
		PublicKey:   cfg.Gateway.PublicKey,
		PrivateKey:  cfg.Gateway.PrivateKey,
		Endpoint:    cfg.Gateway.Endpoint,
		Timeout:     cfg.Gateway.Timeout,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Could not configure payment gateway", zap.Error(err))
	}

	// 6. Initialize UseCases
	catUC := catUCPkg.NewCategoryUseCase(catRepo, appLogger)
	prodUC := prodUCPkg.NewProductUseCase(prodRepo, catRepo, redisClient, esClient, prodUCPkg.Options{
		ListLimit:    cfg.Catalog.ListLimit,
		CacheTTL:     cfg.Catalog.CacheTTL,
		QueryTimeout: cfg.Catalog.QueryTimeout,
	}, appLogger)
	orderUC := orderUCPkg.NewOrderUseCase(
		gateway,
		orderRepo,
		orderGuardPkg.NewRedisGuard(redisClient, cfg.Checkout.NonceTTL),
		prodRepo,
		orderReconcilePkg.NewKafkaPublisher(kafkaProducer),
		orderUCPkg.Options{
			ChargeTimeout:  cfg.Checkout.ChargeTimeout,
			PersistTimeout: cfg.Checkout.PersistTimeout,
			PersistRetries: cfg.Checkout.PersistRetries,
			PersistBackoff: cfg.Checkout.PersistBackoff,
			PriceCheck:     cfg.Checkout.PriceCheck,
		},
		appLogger,
	)

	// 6.5 Initialize Listeners
	reconciler := orderReconcilePkg.NewListener(kafkaConsumer, orderUC, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reconcilerDone := make(chan struct{})
	go func() {
		defer close(reconcilerDone)
		reconciler.Start(ctx)
	}()

	if esClient != nil {
		go func() {
			n, err := prodUC.ReindexSearch(ctx)
			if err != nil {
				appLogger.Error("product reindex failed", zap.Int("indexed", n), zap.Error(err))
				return
			}
			appLogger.Info("product index rebuilt", zap.Int("indexed", n))
		}()
	}

	// 7. Initialize Handlers
	router := server.NewRouter(server.Handlers{
		Category: catH.NewCategoryHandler(catUC, appLogger),
		Product:  prodH.NewProductHandler(prodUC, appLogger),
		Order:    orderH.NewOrderHandler(orderUC, appLogger),
	}, auth.NewAuthz(cfg.JWT.SecretKey, cfg.JWT.Issuer), appLogger)

	// 8. Start HTTP Server
	httpServer := &http.Server{
		Addr:              listenAddr(cfg.Server.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	// 9. Start gRPC health server
	lis, err := net.Listen("tcp", listenAddr(cfg.Server.GRPCPort))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve grpc", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()

	// In-flight checkouts get the full window so a captured charge is recorded.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server forced to shut down", zap.Error(err))
	}
	// The listener must be idle before the deferred db and kafka closes run.
	cancel()
	select {
	case <-reconcilerDone:
	case <-shutdownCtx.Done():
		appLogger.Error("reconciliation listener did not stop in time")
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func listenAddr(port string) string {
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
