package db

import (
	"context"
	"fmt"
	"strings"
)

// SchemaBuilder provides dialect-aware SQL generation and execution
// for schema operations.
type SchemaBuilder struct {
	db      DB
	dialect Dialect
}

// NewSchemaBuilder creates a schema builder for the given database and
// dialect.
func NewSchemaBuilder(db DB, dialect Dialect) *SchemaBuilder {
	return &SchemaBuilder{db: db, dialect: dialect}
}

// Dialect returns the underlying SQL dialect.
func (s *SchemaBuilder) Dialect() Dialect { return s.dialect }

// RunInitStatements executes dialect-specific initialization
// statements, e.g. SQLite PRAGMAs.
func (s *SchemaBuilder) RunInitStatements(ctx context.Context) error {
	for _, stmt := range s.dialect.InitStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init statement %q: %w", stmt, err)
		}
	}
	return nil
}

// CreateTable creates a table if it doesn't exist.
func (s *SchemaBuilder) CreateTable(ctx context.Context, table string, columns []ColumnDef) error {
	_, err := s.db.ExecContext(ctx, s.dialect.CreateTableSQL(table, columns))
	return err
}

// CreateIndex creates an index if it doesn't exist.
func (s *SchemaBuilder) CreateIndex(ctx context.Context, table, indexName string, columns []string, unique bool) error {
	_, err := s.db.ExecContext(ctx,
		s.dialect.CreateIndexSQL(table, indexName, columns, unique))
	return err
}

// Upsert performs a single insert-or-update operation.
func (s *SchemaBuilder) Upsert(ctx context.Context, table string, columns, conflictColumns, updateColumns []string, values ...any) error {
	sql := s.dialect.UpsertSQL(table, columns, conflictColumns, updateColumns)
	_, err := s.db.ExecContext(ctx, sql, values...)
	return err
}

// UpsertBatch performs batch upsert operations in one transaction.
func (s *SchemaBuilder) UpsertBatch(ctx context.Context, table string, columns, conflictColumns, updateColumns []string, rows [][]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	sql := s.dialect.UpsertSQL(table, columns, conflictColumns, updateColumns)
	stmt, err := tx.Prepare(sql)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d: expected %d values, got %d",
				i, len(columns), len(row))
		}
		if _, err := stmt.Exec(row...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// DeleteWhere removes rows matching a single-column equality.
func (s *SchemaBuilder) DeleteWhere(ctx context.Context, table, column string, value any) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		table, column, s.dialect.Placeholder(1))
	_, err := s.db.ExecContext(ctx, sql, value)
	return err
}

// Query starts building a SELECT over the given table.
func (s *SchemaBuilder) Query(table string) *QueryBuilder {
	return &QueryBuilder{schema: s, table: table}
}

// QueryBuilder provides a small fluent interface for SELECT queries.
type QueryBuilder struct {
	schema *SchemaBuilder
	table  string
	cols   []string
	where  []string
	args   []any
	order  string
	limit  int
}

// Select specifies the columns to select.
func (q *QueryBuilder) Select(cols ...string) *QueryBuilder {
	q.cols = cols
	return q
}

// Where adds an equality condition.
func (q *QueryBuilder) Where(column string, value any) *QueryBuilder {
	q.args = append(q.args, value)
	q.where = append(q.where, fmt.Sprintf("%s = %s",
		column, q.schema.dialect.Placeholder(len(q.args))))
	return q
}

// WhereLike adds a LIKE condition.
func (q *QueryBuilder) WhereLike(column string, pattern string) *QueryBuilder {
	q.args = append(q.args, pattern)
	q.where = append(q.where, fmt.Sprintf("%s LIKE %s",
		column, q.schema.dialect.Placeholder(len(q.args))))
	return q
}

// OrderBy sets the result order.
func (q *QueryBuilder) OrderBy(order string) *QueryBuilder {
	q.order = order
	return q
}

// Limit bounds the result count; 0 means unbounded.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// SQL renders the query text and its arguments.
func (q *QueryBuilder) SQL() (string, []any) {
	cols := "*"
	if len(q.cols) > 0 {
		cols = strings.Join(q.cols, ", ")
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", cols, q.table)
	if len(q.where) > 0 {
		sql += " WHERE " + strings.Join(q.where, " AND ")
	}
	if q.order != "" {
		sql += " ORDER BY " + q.order
	}
	if q.limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.limit)
	}
	return sql, q.args
}

// Rows executes the query.
func (q *QueryBuilder) Rows(ctx context.Context) (Rows, error) {
	sql, args := q.SQL()
	return q.schema.db.QueryContext(ctx, sql, args...)
}

// Rows is the scanning surface returned by queries.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}
