package db

import (
	"fmt"
	"strings"
)

// ColumnDef declares one column of a table in dialect-neutral terms.
type ColumnDef struct {
	Name string
	// Type is one of "id", "text", "integer", "real", "timestamp".
	Type string
	// Constraints is appended verbatim, e.g. "NOT NULL".
	Constraints string
}

// Dialect generates backend-specific SQL.
type Dialect interface {
	Name() string

	// InitStatements returns statements run once after opening.
	InitStatements() []string

	CreateTableSQL(table string, columns []ColumnDef) string
	CreateIndexSQL(table, indexName string, columns []string, unique bool) string

	// UpsertSQL builds an insert-or-update statement. updateColumns
	// nil means "update all non-conflict columns".
	UpsertSQL(table string, columns, conflictColumns, updateColumns []string) string

	// Placeholder returns the parameter marker for the 1-based
	// position n.
	Placeholder(n int) string
}

type sqliteDialect struct {
	wal bool
}

func (sqliteDialect) Name() string { return "sqlite" }

func (d sqliteDialect) InitStatements() []string {
	stmts := []string{"PRAGMA foreign_keys = ON"}
	if d.wal {
		stmts = append(stmts, "PRAGMA journal_mode = WAL")
	}
	return stmts
}

func (d sqliteDialect) CreateTableSQL(table string, columns []ColumnDef) string {
	return createTableSQL(table, columns, func(t string) string {
		if t == "id" {
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		}
		return strings.ToUpper(t)
	})
}

func (sqliteDialect) CreateIndexSQL(table, indexName string, columns []string, unique bool) string {
	return createIndexSQL(table, indexName, columns, unique)
}

func (d sqliteDialect) UpsertSQL(table string, columns, conflictColumns, updateColumns []string) string {
	return upsertSQL(d, table, columns, conflictColumns, updateColumns)
}

func (sqliteDialect) Placeholder(int) string { return "?" }

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) InitStatements() []string { return nil }

func (d postgresDialect) CreateTableSQL(table string, columns []ColumnDef) string {
	return createTableSQL(table, columns, func(t string) string {
		switch t {
		case "id":
			return "BIGSERIAL PRIMARY KEY"
		case "integer":
			return "BIGINT"
		case "timestamp":
			return "TIMESTAMPTZ"
		default:
			return strings.ToUpper(t)
		}
	})
}

func (postgresDialect) CreateIndexSQL(table, indexName string, columns []string, unique bool) string {
	return createIndexSQL(table, indexName, columns, unique)
}

func (d postgresDialect) UpsertSQL(table string, columns, conflictColumns, updateColumns []string) string {
	return upsertSQL(d, table, columns, conflictColumns, updateColumns)
}

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func createTableSQL(table string, columns []ColumnDef, typeOf func(string) string) string {
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		def := col.Name + " " + typeOf(col.Type)
		if col.Constraints != "" {
			def += " " + col.Constraints
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		table, strings.Join(defs, ", "))
}

func createIndexSQL(table, indexName string, columns []string, unique bool) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind, indexName, table, strings.Join(columns, ", "))
}

func upsertSQL(d Dialect, table string, columns, conflictColumns, updateColumns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = d.Placeholder(i + 1)
	}

	if updateColumns == nil {
		conflict := make(map[string]bool, len(conflictColumns))
		for _, c := range conflictColumns {
			conflict[c] = true
		}
		for _, c := range columns {
			if !conflict[c] {
				updateColumns = append(updateColumns, c)
			}
		}
	}

	sets := make([]string, len(updateColumns))
	for i, c := range updateColumns {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(conflictColumns, ", "))
	if len(sets) == 0 {
		return sql + " DO NOTHING"
	}
	return sql + " DO UPDATE SET " + strings.Join(sets, ", ")
}
