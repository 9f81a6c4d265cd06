package config

import (
	"fmt"
	"os"
)

// DatabaseType selects the symbol-index backend.
type DatabaseType string

const (
	DatabaseSQLite   DatabaseType = "sqlite"
	DatabasePostgres DatabaseType = "postgres"
)

// DatabaseConfig holds symbol-index database settings.
type DatabaseConfig struct {
	Type DatabaseType

	// Path is the SQLite file location; resolved relative to the
	// indexed tree when empty.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string
}

// DefaultDatabaseConfig returns the SQLite-backed default.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{Type: DatabaseSQLite}
}

// LoadDatabaseConfigFromEnv loads database configuration from
// environment variables:
//
//   - TAGSMITH_DB_TYPE: "sqlite" (default) or "postgres"
//   - TAGSMITH_DB_PATH: SQLite database file
//   - TAGSMITH_DB_DSN: PostgreSQL connection string
func LoadDatabaseConfigFromEnv() DatabaseConfig {
	cfg := DefaultDatabaseConfig()

	if v := os.Getenv("TAGSMITH_DB_TYPE"); v != "" {
		switch DatabaseType(v) {
		case DatabaseSQLite, DatabasePostgres:
			cfg.Type = DatabaseType(v)
		}
	}
	if v := os.Getenv("TAGSMITH_DB_PATH"); v != "" {
		cfg.Path = v
	}
	if v := os.Getenv("TAGSMITH_DB_DSN"); v != "" {
		cfg.DSN = v
	}
	return cfg
}

// String describes the configured backend for log output.
func (c DatabaseConfig) String() string {
	if c.Type == DatabasePostgres {
		return "postgres"
	}
	if c.Path != "" {
		return fmt.Sprintf("sqlite:%s", c.Path)
	}
	return "sqlite"
}
