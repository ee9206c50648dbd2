/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the hostel provisions ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.toml + PROVISIONS_* environment)
  2. Build the logger
  3. Open and migrate the database (SQLite or PostgreSQL)
  4. Load persisted settings
  5. Wire the event hub (Redis fan-out when configured)
  6. Create services, handler and router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a TOML config file (default: ./config.toml if present)
  -db      Overrides database.dsn, e.g. ":memory:" for a throwaway run

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the event forwarder and close Redis
  4. Close database connection

EXAMPLES:
  # Run with defaults (SQLite at ./data/provisions.db)
  ./server

  # Run against PostgreSQL
  PROVISIONS_DATABASE_DRIVER=postgres \
  PROVISIONS_DATABASE_DSN="postgres://app:secret@db/provisions?sslmode=disable" ./server

SEE ALSO:
  - config/config.go: All settings and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/api"
	"github.com/warp/provision-ledger/auth"
	"github.com/warp/provision-ledger/config"
	"github.com/warp/provision-ledger/events"
	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/logging"
	"github.com/warp/provision-ledger/report"
	"github.com/warp/provision-ledger/settings"
	"github.com/warp/provision-ledger/store/sqldb"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	dbOverride := flag.String("db", "", "Database DSN (overrides config)")
	flag.Parse()

	if err := run(*configPath, *dbOverride); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbOverride != "" {
		cfg.Database.DSN = dbOverride
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	// Initialize store
	if cfg.Database.Driver == sqldb.DriverSQLite && cfg.Database.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := sqldb.Open(cfg.Database.Driver, cfg.Database.DSN, sqldb.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settingsMgr, err := settings.Load(ctx, store, settings.Settings{
		AllowPreviousDateEntry: cfg.Settings.AllowPreviousDateEntry,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Change notifications
	hub := events.NewHub(logger)
	if cfg.Redis.Addr != "" {
		bus, err := events.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel, logger)
		if err != nil {
			return err
		}
		defer bus.Close()
		if err := hub.UseBus(ctx, bus); err != nil {
			return err
		}
		logger.Info("change events fan out over redis", zap.String("addr", cfg.Redis.Addr))
	}

	limits, err := overlayLimits(cfg.Overlay)
	if err != nil {
		return err
	}

	svc := inventory.NewService(store, logger,
		inventory.WithNotifier(hub),
		inventory.WithEntryDatePolicy(settingsMgr),
		inventory.WithLocation(cfg.Location()),
		inventory.WithResetCode(cfg.Admin.ResetCode),
	)
	overlay := report.NewOverlay(store, limits, hub, logger)

	handler := api.NewHandler(api.Deps{
		Inventory: svc,
		Ledger:    report.NewBuilder(store, store, logger),
		Overlay:   overlay,
		Corrector: report.NewCorrector(store, hub, logger),
		Settings:  settingsMgr,
		Events:    hub,
		DB:        store,
		Log:       logger,
	})

	var verifier *auth.Verifier
	if cfg.Auth.Enabled {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	} else {
		logger.Warn("authentication disabled, every request runs as admin")
	}

	router := api.NewRouter(handler, api.RouterOptions{
		Verifier:       verifier,
		AllowedOrigins: cfg.HTTP.CORSAllowOrigins,
		Log:            logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	// Event streams never finish on their own; end them so Shutdown can drain.
	server.RegisterOnShutdown(hub.Close)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("driver", store.Driver()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func overlayLimits(c config.OverlayConfig) (report.Limits, error) {
	limits := report.DefaultLimits()
	if c.MaxSignature > 0 {
		limits.MaxSignature = c.MaxSignature
	}
	if c.MaxRemarks > 0 {
		limits.MaxRemarks = c.MaxRemarks
	}
	if c.MaxBalanceQuantity != "" {
		d, err := decimal.NewFromString(c.MaxBalanceQuantity)
		if err != nil {
			return limits, fmt.Errorf("overlay.max_balance_quantity: %w", err)
		}
		limits.MaxBalanceQuantity = d
	}
	if c.MaxBalanceAmount != "" {
		d, err := decimal.NewFromString(c.MaxBalanceAmount)
		if err != nil {
			return limits, fmt.Errorf("overlay.max_balance_amount: %w", err)
		}
		limits.MaxBalanceAmount = d
	}
	return limits, nil
}
