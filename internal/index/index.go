// Package index persists symbols read from a tag file into a
// queryable database, so editors and search tools can look tags up
// without rescanning the tree.
package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tagsmith/internal/db"
)

// Symbol is one indexed tag record.
type Symbol struct {
	Name      string
	Kind      string
	Path      string
	Line      int
	Language  string
	Pattern   string
	Scope     string
	ScopeKind string
	Signature string
}

// Stats summarizes the index contents.
type Stats struct {
	Symbols int
	Files   int
	ByKind  map[string]int
}

// Index is the database-backed symbol store.
type Index struct {
	handle db.DB
	schema *db.SchemaBuilder

	// runID identifies one load run in the runs table.
	runID string
}

var symbolColumns = []string{
	"name", "kind", "path", "line", "language",
	"pattern", "scope", "scope_kind", "signature",
}

// Open opens (and if needed initializes) the index described by cfg.
func Open(cfg db.Config) (*Index, error) {
	handle, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		handle: handle,
		schema: db.NewSchemaBuilder(handle, cfg.Dialect()),
		runID:  uuid.NewString(),
	}
	if err := ix.initSchema(context.Background()); err != nil {
		handle.Close()
		return nil, err
	}
	return ix, nil
}

// Close releases the database handle.
func (ix *Index) Close() error { return ix.handle.Close() }

// RunID returns the identifier recorded for this load run.
func (ix *Index) RunID() string { return ix.runID }

func (ix *Index) initSchema(ctx context.Context) error {
	if err := ix.schema.RunInitStatements(ctx); err != nil {
		return err
	}

	if err := ix.schema.CreateTable(ctx, "symbols", []db.ColumnDef{
		{Name: "id", Type: "id"},
		{Name: "name", Type: "text", Constraints: "NOT NULL"},
		{Name: "kind", Type: "text", Constraints: "NOT NULL"},
		{Name: "path", Type: "text", Constraints: "NOT NULL"},
		{Name: "line", Type: "integer", Constraints: "NOT NULL"},
		{Name: "language", Type: "text"},
		{Name: "pattern", Type: "text"},
		{Name: "scope", Type: "text"},
		{Name: "scope_kind", Type: "text"},
		{Name: "signature", Type: "text"},
	}); err != nil {
		return fmt.Errorf("create symbols table: %w", err)
	}
	for _, idx := range []struct {
		name string
		cols []string
		uniq bool
	}{
		{"idx_symbols_identity", []string{"name", "path", "line", "kind"}, true},
		{"idx_symbols_name", []string{"name"}, false},
		{"idx_symbols_path", []string{"path"}, false},
		{"idx_symbols_kind", []string{"kind"}, false},
	} {
		if err := ix.schema.CreateIndex(ctx, "symbols", idx.name, idx.cols, idx.uniq); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	if err := ix.schema.CreateTable(ctx, "runs", []db.ColumnDef{
		{Name: "run_id", Type: "text", Constraints: "PRIMARY KEY"},
		{Name: "loaded_at", Type: "text", Constraints: "NOT NULL"},
		{Name: "tags_file", Type: "text"},
		{Name: "symbol_count", Type: "integer"},
	}); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// Load replaces the index contents with the given symbols and records
// the run.
func (ix *Index) Load(ctx context.Context, tagsFile string, symbols []Symbol) error {
	if _, err := ix.handle.ExecContext(ctx, "DELETE FROM symbols"); err != nil {
		return fmt.Errorf("clear symbols: %w", err)
	}

	rows := make([][]any, 0, len(symbols))
	for _, s := range symbols {
		rows = append(rows, []any{
			s.Name, s.Kind, s.Path, s.Line, s.Language,
			s.Pattern, s.Scope, s.ScopeKind, s.Signature,
		})
	}
	if err := ix.schema.UpsertBatch(ctx, "symbols", symbolColumns,
		[]string{"name", "path", "line", "kind"}, nil, rows); err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}

	return ix.schema.Upsert(ctx, "runs",
		[]string{"run_id", "loaded_at", "tags_file", "symbol_count"},
		[]string{"run_id"}, nil,
		ix.runID, time.Now().UTC().Format(time.RFC3339), tagsFile, len(symbols))
}

// FindSymbol returns symbols matching name, exact match first. A
// trailing * turns the lookup into a prefix search.
func (ix *Index) FindSymbol(ctx context.Context, name string, limit int) ([]Symbol, error) {
	q := ix.schema.Query("symbols").
		Select(symbolColumns...).
		OrderBy("name, path, line").
		Limit(limit)
	if n, ok := strings.CutSuffix(name, "*"); ok && n != "" {
		q.WhereLike("name", n+"%")
	} else {
		q.Where("name", name)
	}

	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var s Symbol
		if err := rows.Scan(&s.Name, &s.Kind, &s.Path, &s.Line, &s.Language,
			&s.Pattern, &s.Scope, &s.ScopeKind, &s.Signature); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListFile returns all symbols defined in one file.
func (ix *Index) ListFile(ctx context.Context, path string) ([]Symbol, error) {
	rows, err := ix.schema.Query("symbols").
		Select(symbolColumns...).
		Where("path", path).
		OrderBy("line").
		Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var s Symbol
		if err := rows.Scan(&s.Name, &s.Kind, &s.Path, &s.Line, &s.Language,
			&s.Pattern, &s.Scope, &s.ScopeKind, &s.Signature); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats reports totals for the stats subcommand.
func (ix *Index) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByKind: make(map[string]int)}

	row := ix.handle.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols")
	if err := row.Scan(&st.Symbols); err != nil {
		return nil, err
	}
	row = ix.handle.QueryRowContext(ctx, "SELECT COUNT(DISTINCT path) FROM symbols")
	if err := row.Scan(&st.Files); err != nil {
		return nil, err
	}

	rows, err := ix.handle.QueryContext(ctx,
		"SELECT kind, COUNT(*) FROM symbols GROUP BY kind")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		st.ByKind[kind] = count
	}
	return st, rows.Err()
}
