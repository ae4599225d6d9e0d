package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront",
		zap.String("placement_mode", cfg.Business.PlacementMode),
		zap.String("total_policy", cfg.Business.TotalPolicy))

	endpoint := ""
	if cfg.Observ.TracingEnabled {
		endpoint = cfg.Observ.JaegerEndpoint
	}
	tp, err := util.InitTracer("storefront", endpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	// An untyped nil sink keeps the publisher silent when Kafka is off
	var sink broker.Sink
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStore)
		defer producer.Close()
		sink = producer
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	eventPublisher := broker.NewEventPublisher(sink)

	tokenManager := auth.NewTokenManager(cfg.Auth)
	inventoryClient := service.NewInventoryClient(db, redisClient, eventPublisher)

	services := api.Services{
		Auth:      service.NewAuthService(db, db, tokenManager, cfg.Auth),
		Orders:    service.NewOrderService(db, redisClient, eventPublisher, inventoryClient, cfg.Business),
		Products:  service.NewProductService(db, redisClient, eventPublisher),
		Cards:     service.NewCardService(db),
		Addresses: service.NewAddressService(db),
		Carts:     service.NewCartService(db, db),
		Users:     service.NewUserService(db, cfg.Auth),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workers, workerCtx := errgroup.WithContext(workerCtx)

	janitor := worker.NewTokenJanitor(db, cfg.Auth.SweepInterval)
	workers.Go(func() error {
		return ignoreCancel(janitor.Start(workerCtx))
	})

	var cacheWorker *worker.CacheWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicStore, cfg.Kafka.ConsumerGroup)
		cacheWorker = worker.NewCacheWorker(consumer, redisClient)
		workers.Go(func() error {
			return ignoreCancel(cacheWorker.Start(workerCtx))
		})
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(services, map[string]api.ReadinessCheck{
		"postgres": db.Ping,
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := workers.Wait(); err != nil {
		logger.Error("Worker stopped with error", zap.Error(err))
	}
	if cacheWorker != nil {
		if err := cacheWorker.Stop(); err != nil {
			logger.Warn("Error closing cache worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
