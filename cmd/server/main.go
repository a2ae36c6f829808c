/*
main.go - Application entry point

PURPOSE:
  Starts the hotel ledger HTTP server. Handles configuration, dependency
  wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, app.env, environment)
  2. Build the JSON logger
  3. Open the SQLite store (migrations run here)
  4. Build ledger, booking engine and reporting service
  5. Configure HTTP router
  6. Start the backup scheduler (BACKUP_INTERVAL, BACKUP_KEEP)
  7. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (SERVER_SHUTDOWN_TIMEOUT)
  3. Stop the backup scheduler
  4. Close database connections
  5. Exit

ENVIRONMENT:
  SERVER_PORT, DATABASE_PATH, DATABASE_BUSY_TIMEOUT, BACKUP_DIR,
  BACKUP_INTERVAL, BACKUP_KEEP,
  LEDGER_VAT_RATE, LEDGER_RECOGNITION_METHOD, UTILITY_ELECTRIC_RATE,
  UTILITY_WATER_RATE, CORS_ALLOWED_ORIGINS, LOG_LEVEL.
  See config/load.go for defaults.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/hotel-ledger/api"
	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/config"
	"github.com/warp/hotel-ledger/ledger"
	"github.com/warp/hotel-ledger/logger"
	"github.com/warp/hotel-ledger/reporting"
	"github.com/warp/hotel-ledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hotel-ledger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("app")
	if err != nil {
		return err
	}

	log := logger.New(cfg.Application.Name, cfg.Logging.Level)
	slog.SetDefault(log)

	store, err := sqlite.New(cfg.Database.Path, sqlite.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	l := ledger.New(ledger.WithVATRate(cfg.Ledger.VATRate))
	engine := booking.NewEngine(store, l,
		booking.WithLogger(log),
		booking.WithRecognitionMethod(cfg.Ledger.RecognitionMethod),
	)
	reports := reporting.NewService(store, log)

	handler := api.NewHandler(engine, reports, store, cfg.Backup.Dir, api.UtilityRates{
		Electric: cfg.Utility.ElectricRate,
		Water:    cfg.Utility.WaterRate,
	}, log)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	scheduler := api.NewBackupScheduler(store, cfg.Backup.Dir, cfg.Backup.Interval, cfg.Backup.Keep, log)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			slog.Int("port", cfg.Server.Port),
			slog.String("database", store.Path()),
			slog.String("vat_rate", l.VATRate().String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-quit:
		log.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
