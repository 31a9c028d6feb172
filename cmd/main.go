package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"report-service/internal/api"
	"report-service/internal/config"
	"report-service/internal/db"
	"report-service/internal/kafka"
	"report-service/internal/logging"
	"report-service/internal/providers"
	"report-service/internal/services"
	"report-service/internal/storage"
	"report-service/pkg/telegram"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	opts, err := cfg.ReportOptions()
	if err != nil {
		log.Fatalf("Failed to load report settings: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	dbConn, err := db.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()
	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Fatalf("Database schema failed: %v", err)
	}

	// Object storage
	blobs, err := storage.New(storage.Options{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatalf("Storage init failed: %v", err)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		logger.Fatalf("Storage bucket failed: %v", err)
	}

	var tg providers.DocumentSender
	if cfg.Telegram.BotToken != "" {
		client, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.RateLimit)
		if err != nil {
			logger.Fatalf("Telegram init failed: %v", err)
		}
		tg = client
	} else {
		logger.Warnf("TELEGRAM_BOT_TOKEN not set, telegram delivery disabled")
	}

	// Initialize report service
	svc := services.New(dbConn, blobs, tg, logger, cfg, opts)
	var wg sync.WaitGroup
	svc.Start(&wg)

	// Initialize Kafka consumer
	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc, logger)
		consumer.Start(ctx, &wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	} else {
		logger.Warnf("KAFKA_BROKERS not set, queued delivery requests disabled")
	}

	// Start API server
	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(logger, cfg, handler)
	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server shutdown failed: %v", err)
	}
	svc.Stop()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("%v", err)
		}
	}
	wg.Wait()
}
