// Package source provides the input-file view the output engine reads
// from: line lookup by byte offset and tag position construction.
package source

import (
	"bytes"
	"fmt"
	"os"

	"tagsmith/internal/tags"
)

// File is one input source file, loaded in full. Parsers walk Content
// directly; the output engine reads lines back by byte offset when it
// builds search patterns.
type File struct {
	path     string
	language string
	content  []byte

	// lineOffsets[i] is the byte offset of the start of line i+1.
	lineOffsets []int64

	allowNullTags bool
}

// Open loads path and indexes its line starts. language is the parser's
// language name as emitted in the language extension field.
func Open(path, language string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}
	return FromBytes(path, language, content), nil
}

// FromBytes builds a File over in-memory content. Used by Open and by
// tests.
func FromBytes(path, language string, content []byte) *File {
	f := &File{
		path:     path,
		language: language,
		content:  content,
	}
	f.lineOffsets = append(f.lineOffsets, 0)
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			f.lineOffsets = append(f.lineOffsets, int64(i+1))
		}
	}
	return f
}

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.path }

// Language returns the language name recorded for this file.
func (f *File) Language() string { return f.language }

// Content returns the raw file contents.
func (f *File) Content() []byte { return f.content }

// LineCount returns the number of lines in the file.
func (f *File) LineCount() int { return len(f.lineOffsets) }

// SetAllowNullTags records whether this file's language permits tags
// with empty names.
func (f *File) SetAllowNullTags(allow bool) { f.allowNullTags = allow }

// AllowsNullTags reports whether empty tag names are permitted.
func (f *File) AllowsNullTags() bool { return f.allowNullTags }

// LineOffset returns the byte offset of the start of the 1-based line,
// or -1 when the line does not exist.
func (f *File) LineOffset(line int) int64 {
	if line < 1 || line > len(f.lineOffsets) {
		return -1
	}
	return f.lineOffsets[line-1]
}

// ReadLineAt returns the line beginning at the given byte offset,
// including its terminator when the file has one there.
func (f *File) ReadLineAt(offset int64) (string, error) {
	if offset < 0 || offset >= int64(len(f.content)) {
		return "", fmt.Errorf("offset %d out of range in %s", offset, f.path)
	}
	rest := f.content[offset:]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		return string(rest[:i+1]), nil
	}
	return string(rest), nil
}

// Line returns the text of the 1-based line, including its terminator.
func (f *File) Line(line int) (string, error) {
	off := f.LineOffset(line)
	if off < 0 {
		return "", fmt.Errorf("line %d out of range in %s", line, f.path)
	}
	return f.ReadLineAt(off)
}

// Position returns a tag position for the 1-based line of this file.
func (f *File) Position(line int) tags.Position {
	return tags.Position{
		File:     f.path,
		Language: f.language,
		Line:     line,
		Offset:   f.LineOffset(line),
	}
}
