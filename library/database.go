package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// StoreConfig tunes the SQLite store.
type StoreConfig struct {
	// Path is the database file; its directory is created on first run.
	Path string
	// BusyTimeout bounds how long a writer waits for the SQLite write lock.
	BusyTimeout time.Duration
	// TxTimeout is applied to every transaction on top of the caller's context.
	// Zero disables it.
	TxTimeout time.Duration
	// MaxRetries is the number of extra attempts after a Conflict.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
}

// DefaultStoreConfig returns the settings used when nothing is configured.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		TxTimeout:    10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 20 * time.Millisecond,
	}
}

// Database is the entity store: a SQLite connection pool with atomic
// transactions over every library entity.
//
// SQLite has a single writer, so every write transaction serializes with every
// other one, including transactions on unrelated items and members. A waiting
// writer gives up when its context ends or after BusyTimeout.
type Database struct {
	db     *sqlx.DB
	cfg    StoreConfig
	logger *slog.Logger
	now    func() time.Time
}

// lockPoll caps each wait inside SQLite's busy handler. Longer waits for the
// write lock are made of repeated attempts that check the context in between.
const lockPoll = 25 * time.Millisecond

// Option configures a Database.
type Option func(*Database) error

// WithLogger sets the logger handed to every component built on the store.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Database) error {
		if logger == nil {
			return errors.New("nil logger supplied")
		}
		d.logger = logger
		return nil
	}
}

// WithClock replaces time.Now, mostly for tests that depend on dates.
func WithClock(now func() time.Time) Option {
	return func(d *Database) error {
		if now == nil {
			return errors.New("nil clock supplied")
		}
		d.now = now
		return nil
	}
}

// NewDatabase opens (or creates) the SQLite database described by cfg and
// applies schema migrations.
func NewDatabase(ctx context.Context, cfg StoreConfig, opts ...Option) (*Database, error) {
	if cfg.Path == "" {
		return nil, NewValidationError("database path is required")
	}
	d := &Database{cfg: cfg, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Writers take the lock at BEGIN so two transactions on the same rows
	// can never interleave. The driver's busy wait is kept short; begin
	// polls for the lock until ctx ends or BusyTimeout elapses.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_txlock=immediate",
		cfg.Path, min(cfg.BusyTimeout, lockPoll).Milliseconds())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d.db = db
	if err := d.applyMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Logger returns the store's logger tagged with the given component.
func (d *Database) Logger(component string) *slog.Logger {
	return d.logger.With("component", component)
}

// Now returns the store clock's current time.
func (d *Database) Now() time.Time { return d.now() }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

func (d *Database) applyMigrations(ctx context.Context) error {
	// WAL lets readers proceed while a writer holds the lock.
	if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(database.DialectSQLite3, d.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	for _, r := range results {
		d.logger.Debug("migration applied",
			"version", r.Source.Version,
			"duration", r.Duration)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// RunTransaction executes fn inside one atomic transaction. Any error from fn
// aborts and rolls back every write fn made. Conflicts are retried up to
// MaxRetries times; the final error is always an *Error.
func (d *Database) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	for attempt := 0; ; attempt++ {
		err := d.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if TypeOf(err) != ErrorTypeConflict || attempt >= d.cfg.MaxRetries {
			return err
		}

		d.logger.Debug("retrying transaction after conflict", "attempt", attempt+1, "error", err)
		timer := time.NewTimer(d.cfg.RetryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return d.classify(ctx, "transaction retry", ctx.Err())
		case <-timer.C:
		}
	}
}

func (d *Database) runOnce(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	sqlTx, err := d.begin(ctx)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &Tx{ext: sqlTx, now: d.now}); err != nil {
		return d.classify(ctx, "transaction", err)
	}
	if err := sqlTx.Commit(); err != nil {
		return d.classify(ctx, "commit transaction", err)
	}
	return nil
}

// begin takes the write lock. Each attempt blocks at most lockPoll in the
// driver, so a caller's deadline is noticed while another writer holds the lock.
func (d *Database) begin(ctx context.Context) (*sqlx.Tx, error) {
	giveUp := time.Now().Add(d.cfg.BusyTimeout)
	for {
		sqlTx, err := d.db.BeginTxx(ctx, nil)
		if err == nil {
			return sqlTx, nil
		}
		err = d.classify(ctx, "begin transaction", err)
		if TypeOf(err) != ErrorTypeConflict || !time.Now().Before(giveUp) {
			return nil, err
		}
	}
}

// Read runs fn directly against the pool. Use it for queries only: writes made
// through the handle are not atomic with each other.
func (d *Database) Read(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := fn(ctx, &Tx{ext: d.db, now: d.now}); err != nil {
		return d.classify(ctx, "read", err)
	}
	return nil
}

func (d *Database) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.TxTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.TxTimeout)
}

// classify maps driver and context failures onto the error taxonomy. Errors
// that are already typed pass through untouched.
func (d *Database) classify(ctx context.Context, op string, err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Type: ErrorTypeTimeout, Message: op + " aborted", Err: err}
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return &Error{Type: ErrorTypeConflict, Message: op, Err: err}
	}
	d.logger.Error("storage failure", "op", op, "error", err)
	return storageFailure(op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
