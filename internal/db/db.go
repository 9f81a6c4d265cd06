// Package db provides a thin dialect-aware layer over database/sql
// for the symbol index, supporting SQLite (modernc, no cgo) and
// PostgreSQL (lib/pq) backends.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver selects the database backend.
type Driver string

const (
	// DriverSQLite uses the pure-Go modernc SQLite driver.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres uses lib/pq.
	DriverPostgres Driver = "postgres"
)

// Config describes how to open a database.
type Config struct {
	Driver Driver

	// Path is the SQLite database file; ":memory:" for in-memory.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// EnableWAL turns on write-ahead logging for SQLite files.
	EnableWAL bool
}

// DefaultConfig returns a SQLite configuration for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Driver:    DriverSQLite,
		Path:      path,
		EnableWAL: path != ":memory:",
	}
}

// Dialect returns the SQL dialect for this configuration.
func (c Config) Dialect() Dialect {
	if c.Driver == DriverPostgres {
		return postgresDialect{}
	}
	return sqliteDialect{wal: c.EnableWAL}
}

// DB is the handle surface the rest of the code depends on.
// *sql.DB satisfies it.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// Open opens a database per the configuration and verifies the
// connection.
func Open(cfg Config) (*sql.DB, error) {
	var (
		handle *sql.DB
		err    error
	)
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		handle, err = sql.Open("postgres", cfg.DSN)
	case DriverSQLite, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires a path")
		}
		handle, err = sql.Open("sqlite", cfg.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return handle, nil
}
