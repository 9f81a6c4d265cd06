// Package generate drives one tag-generation run: file discovery,
// parsing, and the tag-file lifecycle.
package generate

import (
	"context"
	"log/slog"

	"tagsmith/internal/config"
	"tagsmith/internal/emit"
	"tagsmith/internal/logging"
	"tagsmith/internal/parser"
	"tagsmith/internal/source"
	"tagsmith/internal/walker"
)

// Report summarizes a run.
type Report struct {
	FilesScanned int
	FilesSkipped int
	TagsWritten  int
}

// Run scans the given paths and writes the tag file described by
// opts. The tag file is opened and closed within this call on every
// path, including errors after a successful open.
func Run(ctx context.Context, opts *config.Options, log *slog.Logger, paths []string) (*Report, error) {
	if log == nil {
		log = logging.Discard()
	}

	files, err := walker.Walk(paths, walker.Options{
		Recurse: opts.Recurse,
		Exclude: opts.Exclude,
	})
	if err != nil {
		return nil, err
	}

	en := emit.NewEngine(opts, log)
	if err := en.OpenTagFile(); err != nil {
		return nil, err
	}

	report := &Report{}
	if err := scanFiles(ctx, en, opts, log, files, report); err != nil {
		en.CloseTagFile(false)
		return nil, err
	}

	if err := en.CloseTagFile(opts.Append); err != nil {
		return nil, err
	}
	report.TagsWritten = en.TagCount()
	return report, nil
}

func scanFiles(ctx context.Context, en *emit.Engine, opts *config.Options, log *slog.Logger, files []string, report *Report) error {
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		lang := parser.Detect(path)
		if lang == nil {
			report.FilesSkipped++
			continue
		}

		f, err := source.Open(path, lang.Name)
		if err != nil {
			log.Warn("skipping unreadable file", "file", path, "error", err)
			report.FilesSkipped++
			continue
		}

		if opts.Etags {
			if err := en.BeginEtagsFile(); err != nil {
				return err
			}
		}
		if err := lang.Parse(ctx, f, en); err != nil {
			return err
		}
		if opts.Etags {
			if err := en.EndEtagsFile(path); err != nil {
				return err
			}
		}
		report.FilesScanned++
	}
	return nil
}
