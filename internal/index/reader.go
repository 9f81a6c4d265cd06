package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// jsonRecord mirrors the JSON writer's line shape.
type jsonRecord struct {
	Type      string `json:"_type"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Pattern   string `json:"pattern"`
	Kind      string `json:"kind"`
	Line      int    `json:"line"`
	Language  string `json:"language"`
	Scope     string `json:"scope"`
	ScopeKind string `json:"scopeKind"`
	Signature string `json:"signature"`
}

// ReadTagsFile parses a tags file into symbols. Both the tab-separated
// ctags formats and line-delimited JSON are recognized; pseudo-tag
// lines are skipped. Paths are normalized relative to root when it is
// set.
func ReadTagsFile(path, root string) ([]Symbol, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tags file: %w", err)
	}
	defer fp.Close()

	var symbols []Symbol
	scanner := bufio.NewScanner(fp)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "!_") {
			continue
		}

		var (
			sym Symbol
			ok  bool
		)
		if line[0] == '{' {
			sym, ok = parseJSONLine(line)
		} else {
			sym, ok = ParseTagLine(line)
		}
		if !ok {
			continue
		}

		if root != "" {
			if rel, err := filepath.Rel(root, sym.Path); err == nil &&
				!strings.HasPrefix(rel, "..") {
				sym.Path = rel
			}
		}
		symbols = append(symbols, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tags file: %w", err)
	}
	return symbols, nil
}

func parseJSONLine(line string) (Symbol, bool) {
	var rec jsonRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Type != "tag" {
		return Symbol{}, false
	}
	return Symbol{
		Name:      rec.Name,
		Kind:      rec.Kind,
		Path:      rec.Path,
		Line:      rec.Line,
		Language:  rec.Language,
		Pattern:   rec.Pattern,
		Scope:     rec.Scope,
		ScopeKind: rec.ScopeKind,
		Signature: rec.Signature,
	}, true
}

// ParseTagLine parses one tab-separated tag line:
//
//	name<TAB>file<TAB>exaddr[;"<TAB>field...]
//
// The address is a /pattern/ or ?pattern? search command or a decimal
// line number. Extension fields are key:value pairs; a bare letter
// value is a kind.
func ParseTagLine(line string) (Symbol, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 || parts[0] == "" {
		return Symbol{}, false
	}

	sym := Symbol{
		Name: unescapeValue(parts[0]),
		Path: unescapeValue(parts[1]),
	}

	addr, fieldPart := splitAddress(parts[2])
	switch {
	case addr == "":
		return Symbol{}, false
	case addr[0] == '/' || addr[0] == '?':
		sym.Pattern = addr
	default:
		n, err := strconv.Atoi(addr)
		if err != nil {
			return Symbol{}, false
		}
		sym.Line = n
	}

	for _, field := range strings.Split(fieldPart, "\t") {
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, ":")
		if !found {
			// A bare value in the extension suffix is the kind.
			sym.Kind = key
			continue
		}
		switch key {
		case "kind":
			sym.Kind = value
		case "line":
			if n, err := strconv.Atoi(value); err == nil {
				sym.Line = n
			}
		case "language":
			sym.Language = value
		case "signature":
			sym.Signature = unescapeValue(value)
		case "file", "end", "access", "implementation", "inherits", "role", "typeref":
			// Recognized but not indexed.
		default:
			// scope comes either keyed ("scope:kind:name") or as its
			// kind name ("class:Foo").
			scopeKind, scopeName := key, value
			if key == "scope" {
				scopeKind, scopeName, found = strings.Cut(value, ":")
				if !found {
					scopeKind, scopeName = "", value
				}
			}
			sym.ScopeKind = scopeKind
			sym.Scope = unescapeValue(scopeName)
		}
	}
	return sym, true
}

// splitAddress separates the ex address from the ;"-prefixed extension
// suffix, honoring pattern delimiters so an embedded ;" inside a
// pattern is not mistaken for the separator.
func splitAddress(s string) (addr, fields string) {
	if s == "" {
		return "", ""
	}
	if s[0] == '/' || s[0] == '?' {
		delim := s[0]
		for i := 1; i < len(s); i++ {
			if s[i] == '\\' {
				i++
				continue
			}
			if s[i] == delim {
				addr = s[:i+1]
				rest := s[i+1:]
				if suffix, ok := strings.CutPrefix(rest, ";\"\t"); ok {
					return addr, suffix
				}
				return addr, ""
			}
		}
		return "", ""
	}

	if addr, fields, ok := strings.Cut(s, ";\"\t"); ok {
		return addr, fields
	}
	return s, ""
}

// unescapeValue reverses the writer's backslash escaping.
func unescapeValue(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case 'x':
			if i+2 < len(s) {
				if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(n))
					i += 2
					continue
				}
			}
			b.WriteByte('x')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
