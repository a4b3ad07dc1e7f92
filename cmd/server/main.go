package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eygar/service-booking/internal/application"
	"github.com/eygar/service-booking/internal/config"
	bookingDomain "github.com/eygar/service-booking/internal/domain/booking"
	bookingEvents "github.com/eygar/service-booking/internal/events"
	"github.com/eygar/service-booking/internal/handler"
	"github.com/eygar/service-booking/internal/identity"
	"github.com/eygar/service-booking/internal/qrcode"
	"github.com/eygar/service-booking/internal/repository"
	"github.com/eygar/service-booking/pkg/auth"
	"github.com/eygar/service-booking/pkg/database"
	"github.com/eygar/service-booking/pkg/health"
	"github.com/eygar/service-booking/pkg/kafka"
	"github.com/eygar/service-booking/pkg/logger"
	"github.com/eygar/service-booking/pkg/middleware"
)

const (
	serviceName     = "service-booking"
	maxBodyBytes    = 1 << 20
	serviceTokenTTL = 5 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName, logger.FileOptions{Path: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.BookingModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Optional shared redis for the identity cache and rate limiter
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, continuing with process-local caches", zap.Error(err))
		} else {
			redisClient = client
		}
		pingCancel()
	}

	// Identity verification with a local LRU in front of redis
	httpVerifier, err := identity.NewHTTPVerifier(cfg.AuthConfig, log)
	if err != nil {
		log.Fatal("failed to create identity verifier", zap.Error(err))
	}
	caches := identity.TieredCache{identity.NewLRUCache(cfg.AuthConfig.CacheSize, cfg.AuthConfig.CacheTTL)}
	if redisClient != nil {
		caches = append(caches, identity.NewRedisCache(redisClient, cfg.AuthConfig.CacheTTL, log))
	}
	verifier := identity.NewCachedVerifier(httpVerifier, caches)

	// Service tokens for payment callbacks and kiosks
	serviceTokens := auth.NewServiceTokenManager(cfg.ServiceJWTSecret, serviceTokenTTL)
	if !serviceTokens.Enabled() {
		log.Warn("SERVICE_JWT_SECRET is not set; payment-success and kiosk routes will reject all calls")
	}

	// QR code artifacts
	renderer, err := qrcode.NewFileRenderer(cfg.QRCodeDir, cfg.PublicBaseURL, log)
	if err != nil {
		log.Fatal("failed to initialize qrcode renderer", zap.Error(err))
	}

	// Initialize Kafka producer
	var publisher application.EventPublisher
	if len(cfg.KafkaConfig.Brokers) > 0 {
		kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = kafkaProducer
	} else {
		log.Warn("KAFKA_BROKERS is not set; booking events will not be published")
	}

	// Initialize application service
	bookingService := application.NewBookingService(
		repository.NewGormBookingRepository(db),
		bookingDomain.NewRandomTokenGenerator(),
		renderer,
		publisher,
		log,
	)

	// Initialize and start payment event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.KafkaConfig.Brokers) > 0 {
		groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
		paymentConsumer := bookingEvents.NewPaymentEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			bookingService,
			log,
		)
		defer func() { _ = paymentConsumer.Close() }()

		go func() {
			log.Info("starting payment event consumer", zap.String("group_id", groupID))
			if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("payment event consumer error", zap.Error(err))
			}
		}()
	}

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	rateLimit, err := middleware.RateLimitMiddleware(cfg.RateLimit, redisClient, "booking:ratelimit")
	if err != nil {
		log.Fatal("failed to configure rate limiter", zap.Error(err))
	}

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.BodyLimitMiddleware(maxBodyBytes))
	router.Use(rateLimit)

	// Register health check routes
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router.Group("/api/v1"))

	// Serve rendered QR codes
	router.Static(qrcode.PublicPath, cfg.QRCodeDir)

	// Register routes
	handler.NewBookingHandler(bookingService).RegisterRoutes(&router.RouterGroup, verifier, serviceTokens)
	handler.NewHostBookingHandler(bookingService).RegisterRoutes(&router.RouterGroup, verifier)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
