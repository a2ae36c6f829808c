/*
scheduler.go - Automated backup scheduler

PURPOSE:
  Periodically snapshots the database and prunes old snapshots so the
  backup directory keeps a bounded history.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Takes one snapshot immediately on start
  - After each snapshot, keeps the newest Keep files and removes the rest
  - Failures are logged; the next tick tries again

CONFIGURATION:
  - BACKUP_INTERVAL: How often to snapshot (0 disables the scheduler)
  - BACKUP_KEEP:     Snapshots to retain (0 keeps everything)

USAGE:
  scheduler := NewBackupScheduler(store, dir, interval, keep, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Backup endpoint (manual snapshot)
  - store/sqlite/backup.go: Snapshot, listing and pruning
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BackupPruner is the storage side of the scheduler.
type BackupPruner interface {
	Backup(ctx context.Context, dir string) (string, error)
	PruneBackups(dir string, keep int) ([]string, error)
}

// BackupScheduler handles automated snapshots.
type BackupScheduler struct {
	store    BackupPruner
	dir      string
	interval time.Duration
	keep     int
	timeout  time.Duration
	logger   *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBackupScheduler creates a scheduler. An interval <= 0 makes Start a
// no-op.
func NewBackupScheduler(store BackupPruner, dir string, interval time.Duration, keep int, logger *slog.Logger) *BackupScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupScheduler{
		store:    store,
		dir:      dir,
		interval: interval,
		keep:     keep,
		timeout:  5 * time.Minute,
		logger:   logger.With(slog.String("component", "backup_scheduler")),
	}
}

// Start begins the scheduler.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.interval <= 0 {
		bs.logger.Info("disabled, not starting")
		return
	}
	if bs.ticker != nil {
		return
	}

	bs.ticker = time.NewTicker(bs.interval)
	bs.stop = make(chan struct{})
	bs.wg.Add(1)

	go bs.run()

	bs.logger.Info("started", slog.Duration("interval", bs.interval), slog.Int("keep", bs.keep))
}

// Stop stops the scheduler and waits for a running snapshot to finish.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.ticker = nil
		bs.logger.Info("stopped")
	}
}

func (bs *BackupScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.RunOnce(context.Background())

	for {
		select {
		case <-bs.ticker.C:
			bs.RunOnce(context.Background())
		case <-bs.stop:
			return
		}
	}
}

// RunOnce takes one snapshot and prunes. It returns the snapshot path, or
// "" when the snapshot failed.
func (bs *BackupScheduler) RunOnce(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, bs.timeout)
	defer cancel()

	path, err := bs.store.Backup(ctx, bs.dir)
	if err != nil {
		bs.logger.Error("backup failed", slog.String("dir", bs.dir), slog.Any("error", err))
		return ""
	}
	bs.logger.Info("backup written", slog.String("path", path))

	removed, err := bs.store.PruneBackups(bs.dir, bs.keep)
	if err != nil {
		bs.logger.Error("prune failed", slog.String("dir", bs.dir), slog.Any("error", err))
	}
	if len(removed) > 0 {
		bs.logger.Info("old backups removed", slog.Int("count", len(removed)))
	}
	return path
}
