/*
Package sqlite provides the SQLite-backed implementation of booking.TxStore
and reporting.Reader.

PURPOSE:
  One database file holds rooms, bookings, the chart of accounts, journals
  and the audit trail. Money is stored as INTEGER minor units (cents) so
  aggregate sums in SQL are exact.

TWO HANDLES, ONE FILE:
  writer: opened with _txlock=immediate. Every write transaction takes the
          RESERVED lock at BEGIN, so write transactions are serialized across
          goroutines and processes. A conflict check run inside one always
          sees every committed booking and stays valid until commit.
  reader: default deferred transactions. In WAL mode a read transaction is a
          consistent snapshot and never blocks the writer.

  The driver ignores sql.TxOptions, which is why isolation is chosen per
  handle through the DSN.

APPEND-ONLY ENFORCEMENT:
  Triggers reject UPDATE and DELETE on journals and journal_postings, and
  DELETE on bookings. Corrections are new journals.

KEY TABLES:
  rooms, bookings:         reservation state
  accounts:                chart of accounts (seeded)
  journals, journal_postings: the ledger
  id_counters, daily_counters: identifier sequences
  audit_log:               state change history

BACKUPS:
  Backup runs VACUUM INTO on the reader, giving a consistent copy while
  writers continue. ListBackups and PruneBackups manage the snapshot
  directory (backup.go).

MIGRATION:
  Versioned SQL files under migrations/ are embedded and applied with
  golang-migrate on New(). Seed data (accounts, rooms) ships as migrations.

USAGE:
  store, err := sqlite.New("./data/hotel.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - booking/store.go: interface definitions
  - reporting/reporting.go: report reader
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/hotel-ledger/booking"
	"github.com/warp/hotel-ledger/ledger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrConstraint is wrapped around schema constraint violations.
var ErrConstraint = errors.New("constraint violation")

// DefaultBusyTimeout is how long a writer waits for the file lock.
const DefaultBusyTimeout = 5 * time.Second

// Store implements booking.TxStore and reporting.Reader using SQLite.
type Store struct {
	path   string
	writer *sql.DB
	reader *sql.DB
}

// Option configures a Store.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	maxReaders  int
}

// WithBusyTimeout sets how long writers wait on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithMaxReaders caps the reader connection pool.
func WithMaxReaders(n int) Option {
	return func(o *options) { o.maxReaders = n }
}

// New opens (creating if needed) the database at dbPath and migrates it.
// In-memory databases are not supported: the two handles must share a file.
func New(dbPath string, opts ...Option) (*Store, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return nil, fmt.Errorf("sqlite store needs a file path, got %q", dbPath)
	}

	o := options{busyTimeout: DefaultBusyTimeout, maxReaders: 4}
	for _, opt := range opts {
		opt(&o)
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if err := runMigrations(dsn(dbPath, o.busyTimeout, true)); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	writer, err := sql.Open("sqlite3", dsn(dbPath, o.busyTimeout, true))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: in-process writers queue on the pool instead of
	// spinning on the busy handler.
	writer.SetMaxOpenConns(1)

	reader, err := sql.Open("sqlite3", dsn(dbPath, o.busyTimeout, false))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	reader.SetMaxOpenConns(o.maxReaders)

	return &Store{path: dbPath, writer: writer, reader: reader}, nil
}

// Close closes both handles.
func (s *Store) Close() error {
	return errors.Join(s.writer.Close(), s.reader.Close())
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func dsn(path string, busy time.Duration, immediate bool) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", strconv.FormatInt(busy.Milliseconds(), 10))
	if immediate {
		q.Set("_txlock", "immediate")
	}
	return path + "?" + q.Encode()
}

// runMigrations applies the embedded migrations on a dedicated connection,
// which migrate closes when done.
func runMigrations(dataSource string) error {
	db, err := sql.Open("sqlite3", dataSource)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		m.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn in a write transaction. Returning nil commits.
func (s *Store) WithTx(ctx context.Context, fn func(booking.Store) error) error {
	sqlTx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// readTx runs fn in a snapshot read transaction.
func (s *Store) readTx(ctx context.Context, fn func(q querier) error) error {
	sqlTx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin read transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the booking.Store view of one write transaction.
type txStore struct {
	q querier
}

// =============================================================================
// HELPERS
// =============================================================================

// classify wraps driver errors so callers can tell contention from
// constraint violations.
func classify(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w: %w", op, booking.ErrConcurrentModification, err)
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%s: %w: %w", op, ErrConstraint, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) &&
		(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// toCents fails for amounts outside the int64 cents range.
func toCents(field string, d decimal.Decimal) (int64, error) {
	if d.Round(2).Abs().GreaterThan(ledger.MaxAmount) {
		return 0, &ledger.InvalidAmountError{Field: field, Amount: d, TooLarge: true}
	}
	return d.Round(2).Shift(2).IntPart(), nil
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
