// Command backup writes a consistent snapshot of the hotel database into
// BACKUP_DIR, prunes to BACKUP_KEEP snapshots and prints the new path. It is
// safe to run while the server is up.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/hotel-ledger/config"
	"github.com/warp/hotel-ledger/logger"
	"github.com/warp/hotel-ledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "backup: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("app")
	if err != nil {
		return err
	}
	log := logger.New(cfg.Application.Name, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.Database.Path, sqlite.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	path, err := store.Backup(ctx, cfg.Backup.Dir)
	if err != nil {
		log.Error("backup failed", slog.String("database", store.Path()), slog.Any("error", err))
		return err
	}

	log.Info("backup written", slog.String("database", store.Path()), slog.String("path", path))

	removed, err := store.PruneBackups(cfg.Backup.Dir, cfg.Backup.Keep)
	if err != nil {
		return err
	}
	for _, p := range removed {
		log.Info("old backup removed", slog.String("path", p))
	}
	fmt.Println(path)
	return nil
}
