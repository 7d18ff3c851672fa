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

	"closet-service/config"
	"closet-service/internal/api"
	"closet-service/internal/broker"
	"closet-service/internal/redisclient"
	"closet-service/internal/scheduler"
	"closet-service/internal/service"
	"closet-service/internal/store"
	"closet-service/internal/util"
	"closet-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting closet service")

	tp, err := util.InitTracer("closet-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database schema ready")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicLedger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicLedger))

	eventPublisher := broker.NewEventPublisher(producer)

	itemService := service.NewItemService(db, redisClient)
	ledgerService := service.NewLedgerService(db, eventPublisher)
	orderService := service.NewOrderService(db, redisClient, eventPublisher, service.OrderConfig{
		ReturnWindow:   cfg.Business.ReturnWindow(),
		IdempotencyTTL: cfg.Business.IdempotencyTTL(),
	})
	userService := service.NewUserService(db, cfg.Business.MinAdmins)
	backupService := service.NewBackupService(db)
	auditService := service.NewAuditService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLedger, cfg.Kafka.ConsumerGroup)
	auditWorker := worker.NewAuditWorker(auditConsumer, auditService)
	go func() {
		if err := auditWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Audit worker error", zap.Error(err))
		}
	}()

	sched, err := scheduler.NewScheduler(cfg.Business.LateSweepSchedule, orderService, redisClient)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	sched.Start()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Items:  itemService,
		Ledger: ledgerService,
		Orders: orderService,
		Users:  userService,
		Backup: backupService,
		Audit:  auditService,
	}, cfg.Server.AuthHeader, map[string]api.HealthCheck{
		"postgres": db.Ping,
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
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

	sched.Stop()
	workerCancel()
	if err := auditWorker.Stop(); err != nil {
		logger.Warn("Error stopping audit worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
