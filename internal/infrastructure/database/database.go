package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600

	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
	connMaxLifetime = time.Hour

	// FULL makes a committed outlet write durable before Commit returns.
	defaultSynchronous = "FULL"
)

var synchronousLevels = []string{"OFF", "NORMAL", "FULL", "EXTRA"}

var (
	// ErrNoPath is returned by Open when Config.Path is empty.
	ErrNoPath = errors.New("database: no path configured")

	// ErrSynchronous is returned by Open for an unknown synchronous level.
	ErrSynchronous = errors.New("database: invalid synchronous level")
)

// DB is the daemon's SQLite handle. Outlet state, schedules, overrides and
// weather history all live in the one file it opens.
type DB struct {
	*sql.DB
	path string
}

// Config mirrors the database section of birdhouse.yaml.
type Config struct {
	// Path of the SQLite file; its directory is created when missing.
	Path string

	// WALMode lets the sqlite3 CLI read while the control loop writes.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits on a lock.
	BusyTimeout int

	// Synchronous is OFF, NORMAL, FULL or EXTRA. Empty means FULL.
	Synchronous string
}

// dsn builds the go-sqlite3 connection string for cfg.
//
// _txlock=immediate takes the write lock at BEGIN, so two writers queue on
// the busy timeout instead of failing on lock upgrade.
func dsn(cfg Config) (string, error) {
	if cfg.Path == "" {
		return "", ErrNoPath
	}
	level := strings.ToUpper(cfg.Synchronous)
	if level == "" {
		level = defaultSynchronous
	}
	if !slices.Contains(synchronousLevels, level) {
		return "", fmt.Errorf("%w: %q", ErrSynchronous, cfg.Synchronous)
	}

	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*int(time.Second/time.Millisecond)))
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	q.Set("_synchronous", level)
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode(), nil
}

// Open opens (creating if needed) the database described by cfg and checks
// that it answers. Migrations are not applied; call Migrate.
func Open(cfg Config) (*DB, error) {
	connStr, err := dsn(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite has a single writer and the daemon's queries are
	// small. Readers outside the process still work through WAL.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file exists after the ping, so tighten it to owner-only.
	if err := os.Chmod(cfg.Path, filePermissions); err != nil && !errors.Is(err, os.ErrNotExist) {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("setting database permissions: %w", err)
	}

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// Close closes the handle. Closing a zero DB is a no-op.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the file the DB was opened from.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query; the API health endpoint calls it.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats reports connection pool statistics for the metrics endpoint.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext is sql.DB.ExecContext with the error wrapped.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return res, nil
}

// BeginTx is sql.DB.BeginTx with the error wrapped. Writes that touch
// several outlets at once, such as an override, go through one transaction.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
