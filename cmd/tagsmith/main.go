package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"tagsmith/internal/config"
	"tagsmith/internal/emit"
	"tagsmith/internal/generate"
	"tagsmith/internal/logging"
	"tagsmith/internal/parser"
	"tagsmith/internal/watch"
)

var logger *slog.Logger

func main() {
	logger = logging.Default("tagsmith")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		runGenerate(os.Args[2:])

	case "watch":
		runWatch(os.Args[2:])

	case "fields":
		runFields(os.Args[2:])

	case "kinds":
		runKinds()

	case "version":
		fmt.Printf("%s v%s\n", emit.ProgramName, emit.ProgramVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		logger.Error("unknown command", "command", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// optionFlags holds the flags that need post-parse translation into
// Options values.
type optionFlags struct {
	sort     *string
	exclude  *string
	unsorted *bool
}

// bindOptions registers the generate/watch option flags onto fs.
func bindOptions(fs *flag.FlagSet, opts *config.Options) optionFlags {
	fs.StringVar(&opts.TagFileName, "f", opts.TagFileName, "Write tags to this file, - for stdout")
	fs.StringVar(&opts.TagFileName, "o", opts.TagFileName, "Alias for -f")
	fs.IntVar(&opts.TagFileFormat, "format", opts.TagFileFormat, "Tag file format (1 or 2)")
	fs.BoolVar(&opts.Recurse, "R", opts.Recurse, "Recurse into directories")
	fs.BoolVar(&opts.Recurse, "recurse", opts.Recurse, "Alias for -R")
	fs.BoolVar(&opts.Etags, "e", opts.Etags, "Emit Emacs etags format")
	fs.BoolVar(&opts.Xref, "x", opts.Xref, "Emit a cross-reference listing to stdout")
	fs.BoolVar(&opts.JSON, "json", opts.JSON, "Emit line-delimited JSON")
	fs.BoolVar(&opts.Append, "a", opts.Append, "Append to an existing tag file")
	fs.BoolVar(&opts.Backward, "B", opts.Backward, "Use backward search patterns (?...?)")
	fs.BoolVar(&opts.LineNumbers, "n", opts.LineNumbers, "Use line numbers instead of patterns")
	fs.BoolVar(&opts.LineDirectives, "line-directives", opts.LineDirectives, "Honor #line directives")
	fs.BoolVar(&opts.PutFieldPrefix, "put-field-prefix", opts.PutFieldPrefix, "Prefix extension field names")
	fs.IntVar(&opts.PatternLengthLimit, "pattern-length-limit", opts.PatternLengthLimit, "Cut patterns longer than this")
	fs.StringVar(&opts.OutputEncoding, "output-encoding", opts.OutputEncoding, "Record this encoding in the pseudo-tags")
	fs.StringVar(&opts.CustomXfmt, "_xformat", opts.CustomXfmt, "Custom xref format string")
	fs.Func("etags-include", "Reference this file from etags output instead of scanning it",
		func(v string) error {
			opts.EtagsInclude = append(opts.EtagsInclude, v)
			return nil
		})

	return optionFlags{
		sort:     fs.String("sort", "", "Sort order: yes, no, or foldcase"),
		exclude:  fs.String("exclude", "", "Comma-separated exclude patterns"),
		unsorted: fs.Bool("u", false, "Leave tags unsorted"),
	}
}

func finishOptions(opts *config.Options, fs *flag.FlagSet, flags optionFlags) {
	if *flags.sort != "" {
		s, ok := config.ParseSortType(*flags.sort)
		if !ok {
			logger.Error("invalid sort order", "value", *flags.sort)
			os.Exit(1)
		}
		opts.Sorted = s
	}
	if *flags.unsorted {
		opts.Sorted = config.Unsorted
	}
	if *flags.exclude != "" {
		opts.Exclude = append(opts.Exclude, strings.Split(*flags.exclude, ",")...)
	}
	if opts.Xref || opts.JSON {
		// Columnar and JSON listings go to stdout unless redirected.
		if fs.Lookup("f").Value.String() == fs.Lookup("f").DefValue {
			opts.TagFileName = "-"
		}
	}
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	opts := config.LoadOptionsFromEnv()
	flags := bindOptions(fs, opts)
	fs.Parse(args)
	finishOptions(opts, fs, flags)

	start := time.Now()
	report, err := generate.Run(context.Background(), opts, logger, fs.Args())
	if err != nil {
		logger.Error("tag generation failed", "error", err)
		os.Exit(1)
	}

	logger.Info("tags written",
		"file", opts.TagFileName,
		"files", humanize.Comma(int64(report.FilesScanned)),
		"tags", humanize.Comma(int64(report.TagsWritten)),
		"elapsed", time.Since(start).Round(time.Millisecond))
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	opts := config.LoadOptionsFromEnv()
	flags := bindOptions(fs, opts)
	fs.Parse(args)
	finishOptions(opts, fs, flags)
	opts.Recurse = true

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("watching for changes", "paths", fs.Args())
	w := watch.New(opts, logger, fs.Args())
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("watch failed", "error", err)
		os.Exit(1)
	}
}

func runFields(args []string) {
	fs := flag.NewFlagSet("fields", flag.ExitOnError)
	prefix := fs.Bool("put-field-prefix", false, "Show prefixed field names")
	fs.Parse(args)

	en := emit.NewEngine(config.DefaultOptions(), logger)
	reg := en.Fields()

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#LETTER\tNAME\tENABLED\tLANGUAGE\tDESCRIPTION")
	for _, id := range reg.Fields() {
		letter := "-"
		if l := reg.Letter(id); l != 0 {
			letter = string(l)
		}
		name := reg.Name(id, *prefix)
		if name == "" {
			name = "NONE"
		}
		language := reg.Owner(id)
		if language == "" {
			language = "NONE"
		}
		enabled := "off"
		if reg.Enabled(id) {
			enabled = "on"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			letter, name, enabled, language, reg.Description(id))
	}
	w.Flush()
}

func runKinds() {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, lang := range parser.Languages() {
		fmt.Fprintf(w, "%s\n", lang.Name)
		names := make([]string, 0, len(lang.Kinds))
		for name := range lang.Kinds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			kind := lang.Kinds[name]
			status := ""
			if !kind.Enabled {
				status = " [off]"
			}
			fmt.Fprintf(w, "    %c\t%s%s\n", kind.Letter, kind.Description, status)
		}
	}
	w.Flush()
}

func printUsage() {
	fmt.Println(`tagsmith - source code tag generator

Usage:
  tagsmith generate [flags] [paths...]   Scan sources and write a tag file
  tagsmith watch [flags] [paths...]      Regenerate tags on file changes
  tagsmith fields                        List tag extension fields
  tagsmith kinds                         List tag kinds per language
  tagsmith version                       Show version

Common flags (generate, watch):
  -f FILE            Output file (default: tags, - for stdout)
  -R                 Recurse into directories
  -e                 Emacs etags format
  -x                 Cross-reference listing
  -a                 Append to existing tag file
  -B                 Backward search patterns
  -n                 Line numbers instead of patterns
  -u                 Unsorted output
  --format=N         Tag file format (1 or 2)
  --sort=ORDER       yes, no, or foldcase
  --exclude=GLOBS    Skip matching files

Environment:
  TAGSMITH_TAGS, TAGSMITH_FORMAT, TAGSMITH_SORT, TAGSMITH_LOG_LEVEL`)
}
