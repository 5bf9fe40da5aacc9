// Package db opens the local SQLite databases. The driver is picked at build
// time: the pure-Go wasm driver by default, mattn/go-sqlite3 with -tags sqlite3_cgo.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/solvesync/internal/utils"
)

const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA synchronous=NORMAL;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

const memoryPath = ":memory:"

type options struct {
	path         string
	pragmas      string
	migrations   []string
	maxOpenConns int
}

type SqliteOption func(*options)

// WithPath sets the database file. ":memory:" is the default.
func WithPath(path string) SqliteOption {
	return func(o *options) {
		o.path = path
	}
}

// WithPragmas replaces the default pragmas.
func WithPragmas(pragmas string) SqliteOption {
	return func(o *options) {
		o.pragmas = pragmas
	}
}

// WithMigrations sets the ordered schema steps. Step i is applied once, when
// PRAGMA user_version is below i+1, so steps may be appended but never edited.
func WithMigrations(steps ...string) SqliteOption {
	return func(o *options) {
		o.migrations = steps
	}
}

func WithMaxOpenConns(n int) SqliteOption {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

// NewSqliteDB opens a database, applies pragmas and runs pending migrations.
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	o := &options{
		path:    memoryPath,
		pragmas: defaultPragma,
	}
	for _, opt := range opts {
		opt(o)
	}

	dsn := memoryPath
	if o.path == memoryPath {
		// each connection would get its own empty database
		o.maxOpenConns = 1
	} else {
		if err := utils.EnsureParent(o.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", o.path)
	}

	slog.Debug("db open", "driver", driverID, "path", o.path)
	conn, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if o.maxOpenConns > 0 {
		conn.SetMaxOpenConns(o.maxOpenConns)
	}

	if _, err := conn.Exec(o.pragmas); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrate(context.Background(), conn, o.migrations); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// SchemaVersion returns PRAGMA user_version.
func SchemaVersion(ctx context.Context, conn *sqlx.DB) (int, error) {
	var v int
	err := conn.GetContext(ctx, &v, "PRAGMA user_version")
	return v, err
}

func migrate(ctx context.Context, conn *sqlx.DB, steps []string) error {
	current, err := SchemaVersion(ctx, conn)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(steps); i++ {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, steps[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: set version: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", i+1, err)
		}
		slog.Debug("db migrated", "version", i+1)
	}
	return nil
}
