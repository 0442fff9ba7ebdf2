package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/easelbid/easelbid/internal/adapters/realtime"
	"github.com/easelbid/easelbid/internal/config"
	"github.com/easelbid/easelbid/pkg/auth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down broadcast service...")
		cancel()
	}()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	logger.Info("Redis Connected")

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.PublicKeyPEM), cfg.Auth.Issuer)
	if err != nil {
		logger.Error("Failed to create token verifier", "error", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(logger)
	go hub.Run()

	subscriber := realtime.NewSubscriber(rdb, hub, logger)
	handler := realtime.NewHandler(hub, verifier, logger)

	addr := cfg.Server.Addr
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler.Routes(),
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Redis subscriber...")
		return subscriber.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Broadcast Service", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Broadcast service failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Broadcast service stopped")
}
