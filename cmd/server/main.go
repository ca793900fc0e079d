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
	"github.com/lalith-99/parley/internal/api"
	"github.com/lalith-99/parley/internal/config"
	"github.com/lalith-99/parley/internal/db"
	"github.com/lalith-99/parley/internal/events"
	"github.com/lalith-99/parley/internal/observ"
	"github.com/lalith-99/parley/internal/pubsub"
	"github.com/lalith-99/parley/internal/repository/postgres"
	"github.com/lalith-99/parley/internal/service"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 3. Schema, Postgres, Redis
	// ---------------------------------------------------------------
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	bus, err := pubsub.NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer bus.Close()

	// ---------------------------------------------------------------
	// 4. Stores, broadcaster, services
	// ---------------------------------------------------------------
	pool := database.Pool()
	stores := service.Stores{
		Messages:  postgres.NewMessageStore(pool),
		Receipts:  postgres.NewReceiptStore(pool),
		Reactions: postgres.NewReactionStore(pool),
		Groups:    postgres.NewGroupStore(pool),
		Members:   postgres.NewMembershipStore(pool),
		Users:     postgres.NewUserStore(pool),
	}
	broadcaster := events.NewBroadcaster(bus, cfg.EventsChannel, cfg.BroadcastTimeout, logger)

	// ---------------------------------------------------------------
	// 5. HTTP server
	// ---------------------------------------------------------------
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterConfig{
		Messages:  service.NewMessageService(stores, broadcaster, logger),
		Groups:    service.NewGroupService(stores, broadcaster, logger),
		Keys:      service.NewKeyService(stores.Users),
		Users:     stores.Users,
		JWTSecret: cfg.JWTSecret,
		Logger:    logger,
		Health: map[string]api.HealthCheck{
			"postgres": database.Health,
			"redis":    bus.Health,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting parley",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("events_channel", cfg.EventsChannel),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
