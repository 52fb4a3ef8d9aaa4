package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"marketplace/internal/carrier"
	"marketplace/internal/config"
	"marketplace/internal/emitter"
	"marketplace/internal/gateway"
	"marketplace/internal/handler/analytics"
	"marketplace/internal/handler/images"
	"marketplace/internal/handler/notifications"
	payments_handler "marketplace/internal/handler/payments"
	"marketplace/internal/handler/search"
	shipping_handler "marketplace/internal/handler/shipping"
	"marketplace/internal/infrastructure/database"
	"marketplace/internal/infrastructure/kafka"
	"marketplace/internal/queue"
	"marketplace/internal/queue/redisq"
	postgres_order_repo "marketplace/internal/repository/order_repo/postgres"
	postgres_payment_repo "marketplace/internal/repository/payment_repo/postgres"
	postgres_shipment_repo "marketplace/internal/repository/shipment_repo/postgres"
	postgres_token_repo "marketplace/internal/repository/token_repo/postgres"
	"marketplace/internal/transport/email"
	"marketplace/internal/transport/push"
	"marketplace/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Fulfillment worker starting...")

	appLogger.Info("Waiting for database to be available...")
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.DBHost,
		Port:     cfg.DBConfig.DBPort,
		User:     cfg.DBConfig.DBUser,
		Password: cfg.DBConfig.DBPassword,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.DBSSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}

	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...")
	migrateDSN := "postgres://" + cfg.GetDBMigrationConnectionString()
	m, err := migrate.New(
		"file:///app/migrations",
		migrateDSN,
	)
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			appLogger.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	appLogger.Info("Connected to Redis.", zap.String("addr", cfg.RedisAddr))

	kafkaProducer, err := kafka.NewProducer(cfg.GetKafkaBrokers(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()
	appLogger.Info("Kafka producer created successfully.")

	orderRepository := postgres_order_repo.NewOrderRepository(db, appLogger)
	paymentRepository := postgres_payment_repo.NewPaymentRepository(db, appLogger)
	shipmentRepository := postgres_shipment_repo.NewShipmentRepository(db, appLogger)
	tokenRepository := postgres_token_repo.NewDeviceTokenRepository(db, appLogger)

	queueStore := redisq.New(redisClient, appLogger)
	eventEmitter := emitter.New(queueStore, appLogger.With(zap.String("component", "EventEmitter")))

	emailSender := email.NewMailgunSender(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.EmailFrom, appLogger)
	pushSender := push.NewHTTPSender(cfg.PushServiceURL, cfg.PushAuthToken, appLogger)
	carrierClient := carrier.NewHTTPClient(cfg.CarrierBaseURL, cfg.TrackingNumberPrefix, appLogger)
	paymentGateway := gateway.NewHTTPGateway(cfg.PaymentGatewayBaseURL, cfg.PaymentGatewayAPIKey, appLogger)

	registry := worker.NewRegistry()
	handlers := []interface {
		Register(r *worker.Registry) error
	}{
		notifications.NewEmailHandler(emailSender, appLogger.With(zap.String("component", "EmailHandler"))),
		notifications.NewPushHandler(tokenRepository, pushSender, appLogger.With(zap.String("component", "PushHandler"))),
		shipping_handler.NewHandler(orderRepository, shipmentRepository, carrierClient, cfg.CarrierName, eventEmitter, appLogger.With(zap.String("component", "ShippingHandler"))),
		payments_handler.NewHandler(orderRepository, paymentRepository, paymentGateway, eventEmitter, cfg.CommissionRate, appLogger.With(zap.String("component", "PaymentHandler"))),
		search.NewHandler(orderRepository, redisClient, appLogger.With(zap.String("component", "SearchHandler"))),
		analytics.NewHandler(kafkaProducer, cfg.KafkaAnalyticsTopic, appLogger.With(zap.String("component", "AnalyticsHandler"))),
		images.NewHandler(redisClient, appLogger.With(zap.String("component", "ImageHandler"))),
	}
	for _, h := range handlers {
		if err := h.Register(registry); err != nil {
			appLogger.Fatal("Failed to register job handlers", zap.Error(err))
		}
	}

	// Jobs claimed by a previous process that died mid-flight go back to the
	// ready state before any pool starts consuming.
	for _, queueName := range queue.Names() {
		recovered, err := queueStore.RecoverInFlight(context.Background(), queueName)
		if err != nil {
			appLogger.Fatal("Failed to recover in-flight jobs", zap.String("queue", queueName), zap.Error(err))
		}
		if recovered > 0 {
			appLogger.Warn("Recovered in-flight jobs from previous run",
				zap.String("queue", queueName),
				zap.Int("recovered", recovered))
		}
	}

	runtime := worker.NewRuntime(queueStore, appLogger)
	for _, queueName := range queue.Names() {
		poolCfg := worker.PoolConfig{
			QueueName:   queueName,
			Concurrency: cfg.WorkerConcurrency[queueName],
			DequeueWait: cfg.DequeueWait,
			JobTimeout:  cfg.JobTimeout,
		}
		if err := runtime.AddPool(poolCfg, registry); err != nil {
			appLogger.Fatal("Failed to add worker pool", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime.Start(ctx)
	appLogger.Info("Worker pools started.", zap.Int("queues", len(queue.Names())))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Shutting down fulfillment worker...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := runtime.Stop(shutdownCtx); err != nil {
		appLogger.Error("Worker runtime did not drain cleanly", zap.Error(err))
	}
	appLogger.Info("Fulfillment worker stopped.")
}
