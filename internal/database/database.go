package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// SchemaVersion is the newest schema this build knows how to read and write.
const SchemaVersion = 3

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

var (
	// ErrNotFound is returned when a record, artifact or playlist does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable is returned when the store cannot be opened or reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrBatchRejected is returned when a batch write fails and nothing was applied.
	ErrBatchRejected = errors.New("batch rejected")
)

// Database is the persistent store. Create one with Open and release it with Close.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// baseSchema is the first schema version. Columns added later live in
// migrations so that stores written by older builds still open.
const baseSchema = `
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	size INTEGER NOT NULL DEFAULT 0,
	last_modified INTEGER NOT NULL DEFAULT 0,
	rating INTEGER NOT NULL DEFAULT 0,
	seen INTEGER NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT '[]',
	hidden INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	not_found INTEGER NOT NULL DEFAULT 0,
	playable INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS thumbnails (
	record_id TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS timeline_thumbnails (
	record_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (record_id, position)
);

CREATE TABLE IF NOT EXISTS playlists (
	name TEXT PRIMARY KEY,
	ids TEXT NOT NULL DEFAULT '[]',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

type column struct {
	name string
	decl string
}

type migration struct {
	version int
	table   string
	columns []column
}

// migrations are additive only. Every added column is nullable and gets its
// default in decodeRecord.
var migrations = []migration{
	{
		version: 2,
		table:   "records",
		columns: []column{
			{"duration", "REAL"},
			{"hearted", "INTEGER"},
			{"title", "TEXT"},
			{"saved_position", "REAL"},
		},
	},
	{
		version: 3,
		table:   "records",
		columns: []column{
			{"times_opened", "INTEGER"},
			{"date_added", "INTEGER"},
		},
	},
}

// Open opens (creating if needed) the store at dbPath, which is the path of
// the database FILE. The parent directory must exist.
func Open(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, baseSchema); err != nil {
		return err
	}
	return d.runMigrations(ctx)
}

// runMigrations brings the schema up to SchemaVersion. Each step checks for
// the column first, so a half-applied step is finished on the next open.
func (d *Database) runMigrations(ctx context.Context) error {
	current, err := d.schemaVersion(ctx)
	if err != nil {
		return err
	}

	if current > SchemaVersion {
		logging.Warn("Database schema version %d is newer than supported version %d", current, SchemaVersion)
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, c := range m.columns {
			exists, err := d.columnExists(ctx, m.table, c.name)
			if err != nil {
				return fmt.Errorf("failed to check for %s column: %w", c.name, err)
			}
			if exists {
				continue
			}
			logging.Info("Migrating database: adding %s column to %s table", c.name, m.table)
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, c.name, c.decl)
			if _, err := d.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add %s column: %w", c.name, err)
			}
		}
		if err := d.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
		logging.Info("Migration complete: schema version %d", m.version)
	}

	return nil
}

func (d *Database) columnExists(ctx context.Context, table, name string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) > 0 FROM pragma_table_info('%s') WHERE name = ?", table),
		name,
	).Scan(&exists)
	return exists, err
}

// schemaVersion returns the stored version. A store without a version row is
// a version 1 store (or a brand new one, which migrates the same way).
func (d *Database) schemaVersion(ctx context.Context) (int, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema version %q: %w", value, err)
	}
	return v, nil
}

func (d *Database) setSchemaVersion(ctx context.Context, v int) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value) VALUES ('schema_version', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		strconv.Itoa(v),
	)
	if err != nil {
		return fmt.Errorf("failed to store schema version: %w", err)
	}
	return nil
}

// SchemaVersion returns the version recorded in the store.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.schemaVersion(ctx)
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Ping verifies the store is still reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// inTx runs fn in a single transaction. The write lock is held for the whole
// transaction so batches never interleave.
func (d *Database) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return tx.Commit()
}

// ClearAll removes every record, artifact and playlist. Schema metadata stays.
func (d *Database) ClearAll(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_all", start, err) }()

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"records", "thumbnails", "timeline_thumbnails", "playlists"} {
			if _, execErr := tx.ExecContext(ctx, "DELETE FROM "+table); execErr != nil {
				return fmt.Errorf("failed to clear %s: %w", table, execErr)
			}
		}
		return nil
	})
	return err
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
		}
	}
	return nil
}
