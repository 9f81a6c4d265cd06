package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"tagsmith/internal/config"
	"tagsmith/internal/db"
	"tagsmith/internal/emit"
	"tagsmith/internal/index"
	"tagsmith/internal/logging"
)

var logger *slog.Logger

func main() {
	logger = logging.Default("tagsmith-index")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "load":
		runLoad(os.Args[2:])

	case "find":
		runFind(os.Args[2:])

	case "stats":
		runStats(os.Args[2:])

	case "version":
		fmt.Printf("%s-index v%s\n", emit.ProgramName, emit.ProgramVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		logger.Error("unknown command", "command", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// openIndex resolves the database configuration, defaulting the SQLite
// path to .tagsmith/symbols.db under root.
func openIndex(root string) (*index.Index, error) {
	dbConfig := config.LoadDatabaseConfigFromEnv()

	cfg := db.Config{DSN: dbConfig.DSN}
	switch dbConfig.Type {
	case config.DatabasePostgres:
		cfg.Driver = db.DriverPostgres
	default:
		path := dbConfig.Path
		if path == "" {
			indexDir := filepath.Join(root, ".tagsmith")
			if err := os.MkdirAll(indexDir, 0o755); err != nil {
				return nil, fmt.Errorf("creating index directory: %w", err)
			}
			path = filepath.Join(indexDir, "symbols.db")
		}
		cfg = db.DefaultConfig(path)
	}

	logger.Info("opening index", "database", dbConfig.String())
	return index.Open(cfg)
}

func runLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	tagsFile := fs.String("tags", "tags", "Tags file to load")
	root := fs.String("root", ".", "Repository root paths are relative to")
	fs.Parse(args)

	absRoot, err := filepath.Abs(*root)
	if err != nil {
		logger.Error("invalid root", "error", err)
		os.Exit(1)
	}

	start := time.Now()
	symbols, err := index.ReadTagsFile(*tagsFile, absRoot)
	if err != nil {
		logger.Error("reading tags file failed", "error", err)
		os.Exit(1)
	}

	ix, err := openIndex(absRoot)
	if err != nil {
		logger.Error("opening index failed", "error", err)
		os.Exit(1)
	}
	defer ix.Close()

	if err := ix.Load(context.Background(), *tagsFile, symbols); err != nil {
		logger.Error("loading symbols failed", "error", err)
		os.Exit(1)
	}

	logger.Info("symbols loaded",
		"run", ix.RunID(),
		"symbols", humanize.Comma(int64(len(symbols))),
		"elapsed", time.Since(start).Round(time.Millisecond))
}

func runFind(args []string) {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	root := fs.String("root", ".", "Repository root")
	limit := fs.Int("limit", 25, "Maximum results")
	fs.Parse(args)

	if fs.NArg() == 0 {
		logger.Error("find requires a symbol name")
		os.Exit(1)
	}

	ix, err := openIndex(*root)
	if err != nil {
		logger.Error("opening index failed", "error", err)
		os.Exit(1)
	}
	defer ix.Close()

	symbols, err := ix.FindSymbol(context.Background(), fs.Arg(0), *limit)
	if err != nil {
		logger.Error("lookup failed", "error", err)
		os.Exit(1)
	}

	for _, s := range symbols {
		scope := ""
		if s.Scope != "" {
			scope = "  (" + s.ScopeKind + " " + s.Scope + ")"
		}
		fmt.Printf("%s\t%s\t%s:%d%s\n", s.Name, s.Kind, s.Path, s.Line, scope)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	root := fs.String("root", ".", "Repository root")
	fs.Parse(args)

	ix, err := openIndex(*root)
	if err != nil {
		logger.Error("opening index failed", "error", err)
		os.Exit(1)
	}
	defer ix.Close()

	st, err := ix.Stats(context.Background())
	if err != nil {
		logger.Error("stats failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("symbols: %s\n", humanize.Comma(int64(st.Symbols)))
	fmt.Printf("files:   %s\n", humanize.Comma(int64(st.Files)))

	kinds := make([]string, 0, len(st.ByKind))
	for kind := range st.ByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Printf("  %-12s %s\n", kind, humanize.Comma(int64(st.ByKind[kind])))
	}
}

func printUsage() {
	fmt.Println(`tagsmith-index - load tag files into a symbol database

Usage:
  tagsmith-index load [-tags FILE] [-root DIR]    Load a tags file
  tagsmith-index find [-root DIR] NAME            Look up a symbol (NAME* for prefix)
  tagsmith-index stats [-root DIR]                Show index statistics
  tagsmith-index version

Environment:
  TAGSMITH_DB_TYPE    sqlite (default) or postgres
  TAGSMITH_DB_PATH    SQLite database file
  TAGSMITH_DB_DSN     PostgreSQL connection string`)
}
