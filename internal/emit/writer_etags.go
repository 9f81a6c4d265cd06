package emit

import (
	"fmt"
	"os"
	"strings"

	"tagsmith/internal/tags"
)

// writeEtagsEntry writes one entry into the per-file etags sidecar.
// The sidecar is folded into the main file by EndEtagsFile.
func (en *Engine) writeEtagsEntry(e *tags.Entry) (int, error) {
	if en.file.etags.fp == nil {
		return 0, fmt.Errorf("etags section not started for %s", e.InputFile)
	}

	var record string
	if e.IsFileEntry {
		record = fmt.Sprintf("\x7f%s\x01%d,0\n", e.Name, e.LineNumber)
	} else {
		line, err := en.input.ReadLineAt(e.FilePosition)
		if err != nil {
			return 0, nil
		}
		if e.TruncateLine {
			line = truncateTagLine(line, e.Name, true)
		} else {
			line = strings.TrimRight(line, "\n")
			line = strings.TrimRight(line, "\r")
		}
		record = fmt.Sprintf("%s\x7f%s\x01%d,%d\n",
			line, e.Name, e.LineNumber, e.FilePosition)
	}

	n, err := en.file.etags.fp.WriteString(record)
	if err != nil {
		return n, err
	}
	en.file.etags.byteCount += n
	return n, nil
}

// BeginEtagsFile starts the sidecar collecting one input file's etags
// records.
func (en *Engine) BeginEtagsFile() error {
	fp, err := os.CreateTemp("", "tagsmith-etags-*")
	if err != nil {
		return fmt.Errorf("create etags temp file: %w", err)
	}
	en.file.etags.fp = fp
	en.file.etags.name = fp.Name()
	en.file.etags.byteCount = 0
	return nil
}

// EndEtagsFile writes the per-file section header to the main tag file
// followed by the sidecar contents, then discards the sidecar.
func (en *Engine) EndEtagsFile(filename string) error {
	if _, err := en.file.write(fmt.Sprintf("\f\n%s,%d\n", filename, en.file.etags.byteCount)); err != nil {
		return fmt.Errorf("cannot write tag file: %w", err)
	}

	sidecar := en.file.etags.fp
	if sidecar == nil {
		return nil
	}
	if _, err := sidecar.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind etags temp file: %w", err)
	}
	if _, err := en.file.fp.ReadFrom(sidecar); err != nil {
		return fmt.Errorf("cannot write tag file: %w", err)
	}

	sidecar.Close()
	os.Remove(en.file.etags.name)
	en.file.etags.fp = nil
	en.file.etags.name = ""
	return nil
}

// writeEtagsIncludes emits ",include" headers for files the user asked
// to reference rather than scan.
func (en *Engine) writeEtagsIncludes() error {
	for _, item := range en.opts.EtagsInclude {
		if _, err := en.file.write(fmt.Sprintf("\f\n%s,include\n", item)); err != nil {
			return fmt.Errorf("cannot write tag file: %w", err)
		}
	}
	return nil
}
