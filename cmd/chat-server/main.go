// Package main provides the chat server executable with REST API, WebSocket
// live feed and optional push fan-out.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/adapters/fcm"
	"github.com/coregx/livechat/adapters/gormstore"
	"github.com/coregx/livechat/adapters/relica"
	"github.com/coregx/livechat/cmd/chat-server/internal/api"
	"github.com/coregx/livechat/cmd/chat-server/internal/config"
	"github.com/coregx/livechat/model"
	"github.com/coregx/livechat/retry"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("chat-server: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := NewSlogLogger(cfg.LogLevel)
	logger.Infof("🚀 Starting chat server v%s", api.Version)
	logger.Infof("📝 Configuration: server=%s:%d, storage=%s/%s, push=%t",
		cfg.Server.Host, cfg.Server.Port, cfg.Database.Adapter, cfg.Database.Driver, cfg.Push.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages, devices, closeDB, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	var observer livechat.EventObserver = &livechat.NoOpEventObserver{}
	if cfg.Chat.LogEvents {
		observer = livechat.NewLoggingEventObserver(logger)
	}

	store, err := livechat.NewMessageStore(
		livechat.WithMessageRepository(messages),
		livechat.WithDeviceTokenRepository(devices),
		livechat.WithStoreLogger(logger),
		livechat.WithLimits(model.Limits{
			MaxNicknameLength: cfg.Chat.MaxNicknameLength,
			MaxTextLength:     cfg.Chat.MaxTextLength,
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create message store: %w", err)
	}

	hub, err := livechat.NewSubscriptionHub(
		livechat.WithQueueSize(cfg.Chat.QueueSize),
		livechat.WithHubLogger(logger),
		livechat.WithHubObserver(observer),
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription hub: %w", err)
	}

	gatewayOpts := []livechat.GatewayOption{
		livechat.WithStore(store),
		livechat.WithHub(hub),
		livechat.WithGatewayLogger(logger),
		livechat.WithPushTimeout(cfg.Push.Timeout),
	}
	if cfg.Push.Enabled {
		strategy := retry.DefaultStrategy()
		strategy.MaxAttempts = cfg.Push.MaxAttempts

		push, err := livechat.NewPushFanoutService(ctx,
			livechat.WithTokenSource(store),
			livechat.WithProviderFactory(fcm.NewProviderFactory(cfg.Push.CredentialsFile, logger)),
			livechat.WithPushLogger(logger),
			livechat.WithPushObserver(observer),
			livechat.WithPushRetryStrategy(strategy),
			livechat.WithPushConcurrency(cfg.Push.Concurrency),
		)
		if err != nil {
			return fmt.Errorf("failed to create push service: %w", err)
		}
		gatewayOpts = append(gatewayOpts, livechat.WithPushNotifier(push))
		logger.Infof("✅ Push fan-out enabled (FCM)")
	}

	gateway, err := livechat.NewChatGateway(gatewayOpts...)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	handler := api.NewHandler(gateway, store, hub, logger, cfg.Server.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(handler.Routes(), logger),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("🌐 HTTP server listening on %s", addr)
		logger.Info("📡 API Endpoints: POST/GET /api/v1/messages, GET /api/v1/messages/live, POST /api/v1/devices, GET /api/v1/health")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Infof("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Closing the hub ends every live feed; hijacked WebSocket connections
	// are not tracked by http.Server.Shutdown.
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Server forced to shutdown: %v", err)
	}
	if err := gateway.Close(shutdownCtx); err != nil {
		logger.Warnf("Push jobs still running at shutdown: %v", err)
	}

	logger.Infof("✅ Server stopped gracefully")
	return nil
}

// openRepositories connects to the configured database and returns the
// repositories with a cleanup function.
func openRepositories(ctx context.Context, cfg *config.Config, logger livechat.Logger) (
	livechat.MessageRepository, livechat.DeviceTokenRepository, func(), error,
) {
	if cfg.Database.Adapter == config.AdapterGorm {
		gdb, err := gormstore.OpenPostgres(cfg.Database.GetDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		repos, err := gormstore.NewRepositoriesWithPrefix(gdb, cfg.Database.Prefix)
		if err != nil {
			return nil, nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		logger.Infof("✅ Repositories initialized (GORM adapters)")
		return repos.Message, repos.DeviceToken, closeDB, nil
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Infof("✅ Database connection established")

	if cfg.Database.Migrate {
		if cfg.Database.Prefix != relica.DefaultTablePrefix {
			logger.Warnf("Bundled migrations create %q tables, but DB_PREFIX=%q", relica.DefaultTablePrefix, cfg.Database.Prefix)
		}
		if err := livechat.ApplyMigrations(ctx, db, cfg.Database.Driver); err != nil {
			closeDB()
			return nil, nil, nil, err
		}
		logger.Infof("✅ Schema migrations applied")
	}

	repos := relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)
	logger.Infof("✅ Repositories initialized (Relica adapters)")
	return repos.Message, repos.DeviceToken, closeDB, nil
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(next http.Handler, logger livechat.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Infof("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s - %v", r.Method, r.URL.Path, time.Since(start))
	})
}
