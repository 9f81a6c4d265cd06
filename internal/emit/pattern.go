package emit

import (
	"fmt"
	"strings"

	"tagsmith/internal/tags"
)

// searchDelimiter returns the ex search command delimiter for the
// configured direction.
func (en *Engine) searchDelimiter() byte {
	if en.opts.Backward {
		return '?'
	}
	return '/'
}

// appendEscapedLine writes line into b with pattern escaping applied:
// backslashes are doubled, the active search delimiter is escaped, and
// a '$' immediately before the line end is escaped so it stays literal.
// Output stops at the line terminator or once limit characters have
// been written; the returned flag reports whether the line was cut.
func appendEscapedLine(b *strings.Builder, line string, delimiter byte, limit int) (omitted bool) {
	length := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\r' || c == '\n' {
			break
		}
		if length >= limit {
			return true
		}
		var next byte
		if i+1 < len(line) {
			next = line[i+1]
		}
		if c == '\t' {
			// A raw tab would read as a column separator downstream.
			b.WriteString(`\t`)
			length += 2
			continue
		}
		if c == '\\' || c == delimiter ||
			(c == '$' && (next == '\n' || next == '\r')) {
			b.WriteByte('\\')
			length++
		}
		b.WriteByte(c)
		length++
	}
	return false
}

// truncateTagLine crops line just past the first occurrence of token,
// keeping one terminating character after it. discardNewline drops
// that character when it is the newline itself.
func truncateTagLine(line, token string, discardNewline bool) string {
	p := strings.Index(line, token)
	if p < 0 {
		return line
	}
	p += len(token)
	if p < len(line) && !(line[p] == '\n' && discardNewline) {
		p++
	}
	return line[:p]
}

// makePatternString builds the search-command column for an entry by
// reading back its source line. A single-slot cache keyed on the file
// position short-circuits repeated builds for the same line; truncated
// patterns are never cached.
func (en *Engine) makePatternString(e *tags.Entry) (string, error) {
	if en.patternCache.valid && !e.TruncateLine &&
		en.patternCache.pos == e.FilePosition {
		return en.patternCache.pattern, nil
	}

	if en.input == nil {
		return "", fmt.Errorf("no input file for tag %q", e.Name)
	}
	line, err := en.input.ReadLineAt(e.FilePosition)
	if err != nil {
		return "", fmt.Errorf("bad tag %q in %s: %w", e.Name, e.InputFile, err)
	}
	if e.TruncateLine {
		line = truncateTagLine(line, e.Name, false)
	}

	delimiter := en.searchDelimiter()
	anchored := strings.HasSuffix(line, "\n")

	var b strings.Builder
	b.WriteByte(delimiter)
	b.WriteByte('^')
	omitted := appendEscapedLine(&b, line, delimiter, en.opts.PatternLengthLimit)
	if anchored && !omitted {
		b.WriteByte('$')
	}
	b.WriteByte(delimiter)

	pattern := b.String()
	if !e.TruncateLine {
		en.patternCache.valid = true
		en.patternCache.pos = e.FilePosition
		en.patternCache.pattern = pattern
	}
	return pattern, nil
}
