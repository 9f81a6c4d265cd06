package emit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tagsmith/internal/tags"
)

// Xfmt is a compiled xref format string. Specifiers are %[-]<width>
// followed by a field letter, or %{fieldName} for named (including
// parser-defined) fields; everything else is literal. %% emits a
// percent sign.
type Xfmt struct {
	elements []xfmtElement
}

type xfmtElement struct {
	literal   string
	field     string // single letter or {name} content; "" for literal
	width     int
	leftAlign bool
}

// ParseXfmt compiles an xref format string. Field resolution happens
// at print time against the engine's registry, so formats may name
// fields defined after parsing.
func ParseXfmt(spec string) (*Xfmt, error) {
	x := &Xfmt{}
	var lit strings.Builder

	flushLiteral := func() {
		if lit.Len() > 0 {
			x.elements = append(x.elements, xfmtElement{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if c != '%' {
			lit.WriteByte(c)
			continue
		}
		i++
		if i >= len(spec) {
			return nil, errors.New("xref format ends with %")
		}
		if spec[i] == '%' {
			lit.WriteByte('%')
			continue
		}
		flushLiteral()

		el := xfmtElement{}
		if spec[i] == '-' {
			el.leftAlign = true
			i++
		}
		start := i
		for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
			i++
		}
		if i > start {
			w, err := strconv.Atoi(spec[start:i])
			if err != nil {
				return nil, fmt.Errorf("xref format width: %w", err)
			}
			el.width = w
		}
		if i >= len(spec) {
			return nil, errors.New("xref format truncated specifier")
		}
		if spec[i] == '{' {
			end := strings.IndexByte(spec[i:], '}')
			if end < 0 {
				return nil, errors.New("xref format unterminated field name")
			}
			el.field = spec[i+1 : i+end]
			i += end
		} else {
			el.field = string(spec[i])
		}
		x.elements = append(x.elements, el)
	}
	flushLiteral()
	return x, nil
}

// Print renders an entry through the format and returns the formatted
// line without a trailing newline. Unknown fields and fields with no
// value on this entry render as empty, padded columns.
func (x *Xfmt) Print(en *Engine, e *tags.Entry) string {
	var b strings.Builder
	for _, el := range x.elements {
		if el.field == "" {
			b.WriteString(el.literal)
			continue
		}
		value := en.xfmtFieldValue(el.field, e)
		switch {
		case el.width == 0:
			b.WriteString(value)
		case el.leftAlign:
			fmt.Fprintf(&b, "%-*s", el.width, value)
		default:
			fmt.Fprintf(&b, "%*s", el.width, value)
		}
	}
	return b.String()
}

// xfmtFieldValue resolves a format field against the registry and
// renders it with the ctags renderer seat.
func (en *Engine) xfmtFieldValue(field string, e *tags.Entry) string {
	var id FieldID
	if len(field) == 1 {
		id = en.fields.ByLetter(field[0])
	} else {
		id = en.fields.ByNameAnyLanguage(field)
	}
	if id == FieldUnknown {
		return ""
	}

	parserIndex := -1
	if int(id) >= int(fieldBuiltinCount) {
		for i, pf := range e.ParserFields {
			if FieldID(pf.Field) == id {
				parserIndex = i
				break
			}
		}
		if parserIndex < 0 {
			return ""
		}
	}

	value, err := en.RenderField(WriterCtags, id, e, parserIndex)
	if err != nil {
		return ""
	}
	return value
}
