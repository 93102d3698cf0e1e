/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the driver payment engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.yaml, DRIVERPAY_* environment)
  2. Build the logger
  3. Initialize SQLite store
  4. Wire ledger, metrics and payroll service
  5. Configure HTTP router
  6. Start the snapshot scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Directory holding config.yaml (default: . and ./config)

CONFIGURATION:
  port                     DRIVERPAY_PORT (default 8080)
  db_path                  DRIVERPAY_DB_PATH (default driverpay.db, ":memory:" allowed)
  env                      DRIVERPAY_ENV ("production" disables scenarios)
  log_level                DRIVERPAY_LOG_LEVEL
  snapshot_sync_interval   DRIVERPAY_SNAPSHOT_SYNC_INTERVAL (0 disables)
  cors_origins             Allowed browser origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the snapshot scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with in-memory database
  DRIVERPAY_DB_PATH=":memory:" ./server

  # Run on different port with debug logs
  DRIVERPAY_PORT=3000 DRIVERPAY_LOG_LEVEL=debug ./server

SEE ALSO:
  - config/config.go: Settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/warp/driver-pay/api"
	"github.com/warp/driver-pay/config"
	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payroll"
	"github.com/warp/driver-pay/store/sqlite"
)

func main() {
	configDir := flag.String("config", "", "Directory holding config.yaml")
	flag.Parse()

	var paths []string
	if *configDir != "" {
		paths = append(paths, *configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Domain
	ledger := history.NewLedger(store)
	service := payroll.NewService(ledger, store, logger.Named("payroll"), payroll.NewMetrics(reg))

	// HTTP
	handler := api.NewHandler(service, store, logger.Named("api"))
	handler.AllowReset = !cfg.IsProduction()
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
		Registry:       reg,
	})

	scheduler := api.NewSnapshotScheduler(service, logger)
	scheduler.CheckInterval = cfg.SnapshotSyncInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("db_path", cfg.DBPath),
			zap.Bool("scenarios_enabled", handler.AllowReset),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
