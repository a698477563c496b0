package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botevents-api/internal/codec"
	"botevents-api/internal/config"
	"botevents-api/internal/handler"
	"botevents-api/internal/logger"
	"botevents-api/internal/notify"
	"botevents-api/internal/persistence"
	"botevents-api/internal/ratelimit"
	"botevents-api/internal/repository"
	"botevents-api/internal/router"
	"botevents-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logger())
	slog.Info("Starting botevents API", "environment", cfg.App.Environment, "db_driver", cfg.Database.Driver)

	if err := run(cfg); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Inventory store behind the retrying gateway
	driverStore, err := repository.NewStore(repository.StoreConfig{
		Driver:       cfg.Database.Driver,
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MinConns:     cfg.Database.MinConns,
		MaxConnLife:  cfg.Database.MaxConnLife,
		MaxConnIdle:  cfg.Database.MaxConnIdle,
	})
	if err != nil {
		return err
	}

	connectPolicy := persistence.ConnectPolicy()
	connectPolicy.MaxAttempts = cfg.Retry.ConnectMaxAttempts
	connectPolicy.Backoff = persistence.LinearBackoff(cfg.Retry.ConnectBackoff)

	store := persistence.NewGateway(driverStore,
		persistence.WithPolicy(persistence.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     persistence.LinearBackoff(cfg.Retry.Backoff),
			Classify:    persistence.Classify,
		}),
		persistence.WithConnectPolicy(connectPolicy),
	)

	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer store.Close()

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Rate limiter store
	var limiterStore ratelimit.Store
	switch cfg.RateLimit.Store {
	case "redis":
		redisStore, err := ratelimit.NewRedisStore(ctx, ratelimit.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.RateLimit.KeyPrefix,
		})
		if err != nil {
			return err
		}
		limiterStore = redisStore
		slog.Info("Rate limiter using Redis", "addr", cfg.Cache.RedisAddress())
	default:
		limiterStore = ratelimit.NewMemoryStore(cfg.RateLimit.CleanupInterval)
	}
	limiter := ratelimit.New(limiterStore,
		ratelimit.WithThreshold(cfg.Auth.Threshold),
		ratelimit.WithLockout(cfg.Auth.Lockout),
	)
	defer limiter.Close()

	// Notifications
	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.DiscordWebhookURL != "" {
		discord, err := notify.NewDiscordNotifier(cfg.Notify.DiscordWebhookURL, cfg.Notify.Timeout)
		if err != nil {
			slog.Warn("Discord notifications disabled", "error", err)
		} else {
			notifier = discord
			slog.Info("Discord notifications enabled")
		}
	}
	defer notifier.Close()

	// Event audit log
	var eventLogs repository.EventLogRepository
	if cfg.EventLog.MongoURI != "" {
		mongoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoLogs, err := repository.NewMongoEventLogRepository(mongoCtx,
			cfg.EventLog.MongoURI, cfg.EventLog.MongoDatabase, cfg.EventLog.MongoCollection)
		cancel()
		if err != nil {
			slog.Warn("MongoDB event log unavailable, using memory", "error", err)
		} else {
			eventLogs = mongoLogs
		}
	}
	if eventLogs == nil {
		eventLogs = repository.NewMemoryEventLogRepository(cfg.EventLog.MemoryCapacity)
	}
	defer eventLogs.Close()

	// Services
	keys, err := service.NewAPIKeyService(cfg.Auth.SharedSecret)
	if err != nil {
		return err
	}
	payloadCodec, err := codec.New(cfg.Auth.CodecSecret)
	if err != nil {
		return err
	}
	ledger := service.NewLedgerService(store, notifier, service.LedgerOptions{
		CatalogCacheSize: cfg.Cache.CatalogSize,
		CatalogCacheTTL:  cfg.Cache.CatalogTTL,
	})

	// Handlers
	eventHandler := handler.NewEventHandler(handler.EventHandlerConfig{
		Ledger:  ledger,
		Keys:    keys,
		Codec:   payloadCodec,
		Limiter: limiter,
		Logs:    eventLogs,
	})
	defer eventHandler.Close()

	r := router.New(router.Config{
		Handler:        handler.New(cfg.App.Name, cfg.App.Version, store),
		EventHandler:   eventHandler,
		AdminHandler:   handler.NewAdminHandler(ledger, limiter, cfg.Database.Driver),
		LogHandler:     handler.NewLogHandler(eventLogs),
		AdminKey:       cfg.App.LoginKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnableMetrics:  cfg.Metrics.Enabled,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		slog.Info("Shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	return nil
}
