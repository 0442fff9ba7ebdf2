package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/easelbid/easelbid/internal/adapters/api"
	"github.com/easelbid/easelbid/internal/adapters/database"
	"github.com/easelbid/easelbid/internal/adapters/events"
	"github.com/easelbid/easelbid/internal/config"
	"github.com/easelbid/easelbid/internal/domain/auctions"
	"github.com/easelbid/easelbid/internal/domain/bidding"
	"github.com/easelbid/easelbid/pkg/auth"
	pkgdb "github.com/easelbid/easelbid/pkg/database"
	pkgevents "github.com/easelbid/easelbid/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Redis Connected")

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.PublicKeyPEM), cfg.Auth.Issuer)
	if err != nil {
		logger.Error("Failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	notifier := events.NewRedisNotifier(rdb, 1024, logger)
	go notifier.Run(ctx)

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.Database.LockTimeout)
	bidRepo := database.NewPostgresBidRepository(pool)
	lotRepo := database.NewPostgresLotRepository(pool)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	engine := bidding.NewEngine(
		txManager,
		bidRepo,
		lotRepo,
		auctionRepo,
		outboxRepo,
		notifier,
		cfg.Bidding.WithdrawalWindow,
		logger,
	)
	lifecycle := auctions.NewService(
		txManager,
		auctionRepo,
		lotRepo,
		bidRepo,
		outboxRepo,
		notifier,
		logger,
	)

	handler := api.NewHandler(engine, lifecycle, logger)

	outboxRelay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		cfg.Relay.BatchSize,
		cfg.Relay.PollInterval,
		cfg.RabbitMQ.Exchange,
		logger,
	)

	go func() {
		logger.Info("Starting Outbox Relay...")
		if err := outboxRelay.Run(ctx); err != nil {
			logger.Error("Outbox Relay stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes(verifier))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	logger.Info("Starting Bidding API", "addr", cfg.Server.Addr)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
