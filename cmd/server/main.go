package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/broker"
	"checkout-service/internal/cart"
	"checkout-service/internal/checkoutlock"
	"checkout-service/internal/idempotency"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/util"
	"checkout-service/internal/wooclient"
	"checkout-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout service")

	tp, err := util.InitTracer("checkout-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	idempotencyTTL := time.Duration(cfg.Checkout.IdempotencyTTLSeconds) * time.Second
	lockStale := time.Duration(cfg.Checkout.LockStaleSeconds) * time.Second

	// In-memory stores are the default: volatile, process-lifetime state as
	// designed for single-instance deployments. Redis backends hold the same
	// contracts across instances when enabled.
	var (
		idemStore idempotency.Store     = idempotency.NewMemoryStore(idempotencyTTL)
		locks     checkoutlock.Registry = checkoutlock.NewMemoryRegistry(lockStale)
	)

	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")

		idemStore = idempotency.NewRedisStore(redisClient, idempotencyTTL)
		locks = checkoutlock.NewRedisRegistry(redisClient, lockStale)
	}

	upstream := wooclient.NewClient(
		cfg.Upstream.BaseURL,
		cfg.Upstream.ConsumerKey,
		cfg.Upstream.ConsumerSecret,
		time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second,
	)

	var events service.EventPublisher
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var newsletterWorker *worker.NewsletterWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCheckout, cfg.Kafka.ConsumerGroup)
		newsletterWorker = worker.NewNewsletterWorker(consumer, worker.LogSink{})
		go func() {
			if err := newsletterWorker.Start(workerCtx); err != nil {
				log.Printf("Newsletter worker error: %v", err)
			}
		}()
	}

	reconciler := cart.NewReconciler(upstream, upstream)
	checkoutService := service.NewCheckoutService(
		idemStore,
		locks,
		reconciler,
		upstream,
		upstream,
		service.ClientAssertedVerifier{},
		events,
		cfg.Checkout.RedirectBaseURL,
	)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkoutService, cfg.Checkout.RequireCSRF)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if newsletterWorker != nil {
		newsletterWorker.Stop()
	}

	log.Println("Server exited")
}
