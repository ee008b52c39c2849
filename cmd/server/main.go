package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	redislib "github.com/redis/go-redis/v9"

	"preview-lab/access"
	"preview-lab/auth"
	"preview-lab/contract"
	"preview-lab/infrastructure/memory"
	aclregistry "preview-lab/infrastructure/registry"
	redisinfra "preview-lab/infrastructure/redis"
	"preview-lab/infrastructure/storage"
	"preview-lab/internal"
	"preview-lab/observability"
	"preview-lab/ratelimit"
	"preview-lab/runtime"
	"preview-lab/runtime/workers"
	"preview-lab/services"
	"preview-lab/transport/ws"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	instanceID := config.InstanceID
	if instanceID == "" {
		hostname, _ := os.Hostname()
		instanceID = hostname
	}

	ctx := context.Background()

	// 2. Shared infrastructure: Redis when configured, otherwise a
	// single-instance stack (in-memory cache, no bus, Badger snapshots).
	var (
		cache contract.Cache
		bus   contract.Bus
		store contract.SnapshotStore
	)
	if config.RedisAddr != "" {
		client := redislib.NewClient(&redislib.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return exitRuntime, fmt.Errorf("redis ping failed: %w", err)
		}
		defer func() {
			logger.Info("Closing Redis client...")
			_ = client.Close()
		}()

		redisStore := redisinfra.NewStore(client, logger)
		cache = redisStore
		bus = redisStore
		store = storage.NewCacheSnapshotStore(redisStore, config.SnapshotTTL)
		logger.Info("Redis connected", "addr", config.RedisAddr, "instance", instanceID)
	} else {
		logger.Warn("REDIS_ADDR not set: running single-instance, no cross-instance fan-out")

		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return exitRuntime, fmt.Errorf("database opening failed: %w", err)
		}
		// Defer ensures the database lock is released and buffers are flushed before run returns.
		defer func() {
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()

		cache = memory.NewCache()
		bus = memory.NewNoopBus()
		store = storage.NewBadgerSnapshotStore(db, config.SnapshotTTL, logger)
	}

	// 3. Supervision & Orchestration
	sup := workers.NewSupervisor(logger)
	registry := runtime.NewRegistry()
	monitoring := observability.NewManager()

	orchestrator := runtime.NewOrchestrator(logger, sup, registry, bus, store,
		monitoring, instanceID, runtime.Options{
			BufferSize:        config.BufferSize,
			CommandBufferSize: config.CommandBufferSize,
			SinkTimeout:       config.SinkTimeout,
			PublishTimeout:    config.PublishTimeout,
			SnapshotTimeout:   config.SnapshotTimeout,
			IdleThreshold:     config.IdleThreshold,
			ReaperInterval:    config.ReaperInterval,
			HeartbeatInterval: config.HeartbeatInterval,
		})

	authorizer := access.NewAuthorizer(aclregistry.NewCacheAccessRegistry(cache, logger), logger)
	limiter := ratelimit.NewLimiter(cache, config.RateLimitMax, config.RateLimitWindow, logger)
	authenticator := auth.NewAuthenticator([]byte(config.JWTSecret), config.JWTIssuer)
	service := services.NewSessionService(logger, orchestrator, registry, authorizer)

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP & Orchestrator)
	errChan := make(chan error, 2)

	// 5. Start the Engine (Workers and Fanout)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. HTTP Server Setup
	handler := ws.NewHandler(logger, service, authenticator, limiter,
		config.HandshakeTimeout, config.OperationTimeout, config.SendBufferSize)

	mux := http.NewServeMux()
	mux.Handle("/live", handler)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(service.GetStats())
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	// Use an error channel to capture ListenAndServe() issues asynchronously.
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// Close listeners first so no new sessions arrive, then flush room
	// snapshots and stop the workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
