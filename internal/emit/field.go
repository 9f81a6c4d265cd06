// Package emit is the tag output engine: it takes tag entries produced
// by the language parsers and writes them to the tag file in one of the
// supported formats, keeping sortedness, cross-reference, and scope
// nesting guarantees.
//
// All state lives on an Engine value; nothing here is safe for
// concurrent use. One engine drives one tag file at a time.
package emit

import (
	"errors"
	"fmt"
	"log/slog"

	"tagsmith/internal/tags"
)

// Writer selects a renderer seat in a field's render table. The ctags
// seat doubles as the default: a field with no renderer for the active
// writer falls back to it.
type Writer int

const (
	// WriterCtags renders with backslash escaping for the tab-separated
	// tags formats. Also used by the xref formatter.
	WriterCtags Writer = iota
	// WriterEtags renders raw for the Emacs format and rejects values
	// it cannot emit safely.
	WriterEtags
	// WriterJSON renders raw UTF-8 for the JSON writer and rejects
	// values containing whitespace where names are expected.
	WriterJSON

	writerCount
)

// FieldID identifies a field descriptor in a Registry. Builtin fields
// have deterministic IDs from the seeding order below.
type FieldID int

// FieldUnknown is returned by lookups that find nothing. Callers treat
// it as "field absent".
const FieldUnknown FieldID = -1

// Builtin field IDs, in registration order: first the fixed tier, then
// the exuberant extension tier, then the universal extension tier.
const (
	FieldName FieldID = iota
	FieldInputFile
	FieldPattern

	FieldCompactInputLine
	FieldAccess
	FieldFileScope
	FieldInherits
	FieldKindLong
	FieldKind
	FieldLanguage
	FieldImplementation
	FieldLineNumber
	FieldSignature
	FieldScope
	FieldTypeRef
	FieldKindKey

	FieldRole
	FieldRefMarker
	FieldScopeKey
	FieldExtras
	FieldXpath
	FieldScopeKindName
	FieldEnd

	fieldBuiltinCount
)

// DataType is a bitmask describing the value shape a field renders.
type DataType uint

const (
	DataString DataType = 1 << iota
	DataInteger
	DataBool
)

// FieldPrefix disambiguates universal-tier and parser-defined field
// names when Options.PutFieldPrefix is on.
const FieldPrefix = "TAGSMITH"

// ErrFieldRejected reports that a renderer refused a value for the
// active writer. The field is dropped from the record; the record is
// still written.
var ErrFieldRejected = errors.New("field value rejected by writer")

// errNoValue reports that a field has no value on this entry. The
// field is silently omitted.
var errNoValue = errors.New("field has no value")

// RenderFunc converts one field of an entry to output text. value is
// the raw parser-field value for parser-defined fields and empty for
// builtins. Returning errNoValue omits the field; returning
// ErrFieldRejected omits it and marks the rejection.
type RenderFunc func(en *Engine, e *tags.Entry, value string) (string, error)

// FieldDescriptor declares a field: its option letter (0 for none),
// its name ("" for letter-only fields), and a render table keyed by
// writer seat.
type FieldDescriptor struct {
	Letter      byte
	Name        string
	Description string
	Enabled     bool
	DataType    DataType
	Render      [writerCount]RenderFunc

	// Available reports whether the entry carries a value for this
	// field; nil means always available.
	Available func(e *tags.Entry) bool
}

type fieldSlot struct {
	def            FieldDescriptor
	fixed          bool
	nameWithPrefix string
	language       string
	sibling        FieldID
}

// Registry is the ordered catalog of field descriptors. It is seeded
// with the builtin tiers; parsers append language-scoped fields with
// Define.
type Registry struct {
	slots []fieldSlot
	log   *slog.Logger
}

// NewRegistry returns a registry seeded with the builtin field tiers.
// Fixed-tier fields cannot be disabled.
func NewRegistry(log *slog.Logger) *Registry {
	r := &Registry{log: log}
	for _, def := range fieldDefinitionsFixed {
		r.seed(def, true, def.Name)
	}
	for _, def := range fieldDefinitionsExuberant {
		r.seed(def, false, def.Name)
	}
	for _, def := range fieldDefinitionsUniversal {
		withPrefix := ""
		if def.Name != "" {
			withPrefix = FieldPrefix + def.Name
		}
		r.seed(def, false, withPrefix)
	}
	return r
}

func (r *Registry) seed(def FieldDescriptor, fixed bool, nameWithPrefix string) {
	r.slots = append(r.slots, fieldSlot{
		def:            def,
		fixed:          fixed,
		nameWithPrefix: nameWithPrefix,
		sibling:        FieldUnknown,
	})
}

func (r *Registry) slot(id FieldID) *fieldSlot {
	return &r.slots[id]
}

// Len returns the number of registered fields.
func (r *Registry) Len() int { return len(r.slots) }

// ByLetter returns the field with the given option letter, or
// FieldUnknown.
func (r *Registry) ByLetter(letter byte) FieldID {
	for i := range r.slots {
		if r.slots[i].def.Letter == letter {
			return FieldID(i)
		}
	}
	return FieldUnknown
}

// ByName returns the field with the given name scoped to language, or
// FieldUnknown. An empty language matches only language-neutral
// fields, which is where all builtins live.
func (r *Registry) ByName(name, language string) FieldID {
	if name == "" {
		return FieldUnknown
	}
	for i := range r.slots {
		if r.slots[i].def.Name == name && r.slots[i].language == language {
			return FieldID(i)
		}
	}
	return FieldUnknown
}

// ByNameAnyLanguage returns the first field with the given name
// regardless of owning language, or FieldUnknown. Siblings of the
// result carry the same name for other languages.
func (r *Registry) ByNameAnyLanguage(name string) FieldID {
	if name == "" {
		return FieldUnknown
	}
	for i := range r.slots {
		if r.slots[i].def.Name == name {
			return FieldID(i)
		}
	}
	return FieldUnknown
}

// NextSibling returns the next field registered under the same name,
// or FieldUnknown at the end of the chain.
func (r *Registry) NextSibling(id FieldID) FieldID {
	return r.slot(id).sibling
}

// Name returns the field's name, applying the disambiguating prefix
// when withPrefix is set. Letter-only fields return "".
func (r *Registry) Name(id FieldID, withPrefix bool) string {
	s := r.slot(id)
	if withPrefix {
		return s.nameWithPrefix
	}
	return s.def.Name
}

// Letter returns the field's option letter, or 0 for name-only fields.
func (r *Registry) Letter(id FieldID) byte {
	return r.slot(id).def.Letter
}

// Description returns the field's help text.
func (r *Registry) Description(id FieldID) string {
	return r.slot(id).def.Description
}

// DataTypeOf returns the field's value-shape mask.
func (r *Registry) DataTypeOf(id FieldID) DataType {
	return r.slot(id).def.DataType
}

// Owner returns the language that registered the field; "" for the
// builtin and language-neutral fields.
func (r *Registry) Owner(id FieldID) string {
	return r.slot(id).language
}

// Enabled reports whether the field is emitted.
func (r *Registry) Enabled(id FieldID) bool {
	return r.slot(id).def.Enabled
}

// Fixed reports whether the field belongs to the fixed tier.
func (r *Registry) Fixed(id FieldID) bool {
	return r.slot(id).fixed
}

// Enable sets the field's enabled state and returns the previous one.
// Fixed fields cannot be disabled: the state is left untouched and a
// warning is logged when warnIfFixed is set.
func (r *Registry) Enable(id FieldID, state, warnIfFixed bool) bool {
	s := r.slot(id)
	old := s.def.Enabled
	if s.fixed {
		if !state && warnIfFixed {
			switch {
			case s.def.Name != "" && s.def.Letter != 0:
				r.log.Warn("cannot disable fixed field",
					"letter", string(s.def.Letter), "name", s.def.Name)
			case s.def.Name != "":
				r.log.Warn("cannot disable fixed field", "name", s.def.Name)
			default:
				r.log.Warn("cannot disable fixed field",
					"letter", string(s.def.Letter))
			}
		}
		return old
	}
	s.def.Enabled = state
	return old
}

// HasValue reports whether the entry carries a value for the field.
func (r *Registry) HasValue(id FieldID, e *tags.Entry) bool {
	if avail := r.slot(id).def.Available; avail != nil {
		return avail(e)
	}
	return true
}

// Renderable reports whether the field has any renderer at all.
func (r *Registry) Renderable(id FieldID) bool {
	return r.slot(id).def.Render[WriterCtags] != nil
}

// Fields returns all field IDs in registration order.
func (r *Registry) Fields() []FieldID {
	ids := make([]FieldID, len(r.slots))
	for i := range r.slots {
		ids[i] = FieldID(i)
	}
	return ids
}

// Define registers a parser-owned field scoped to language and returns
// its ID. The name must be alphanumeric. A field whose name shadows an
// earlier registration is linked onto that field's sibling chain.
func (r *Registry) Define(def FieldDescriptor, language string) (FieldID, error) {
	if def.Name == "" {
		return FieldUnknown, errors.New("field name required")
	}
	for _, c := range def.Name {
		if !isAlnum(byte(c)) {
			return FieldUnknown, fmt.Errorf("field name %q is not alphanumeric", def.Name)
		}
	}

	def.Letter = 0
	if def.Render[WriterCtags] == nil {
		def.Render[WriterCtags] = renderParserValue
	}
	if def.DataType == 0 {
		def.DataType = DataString
	}

	id := FieldID(len(r.slots))
	r.slots = append(r.slots, fieldSlot{
		def:            def,
		nameWithPrefix: FieldPrefix + def.Name,
		language:       language,
		sibling:        FieldUnknown,
	})

	// Link the most recent earlier registration of the same name
	// forward to this one.
	for i := int(id) - 1; i >= 0; i-- {
		if r.slots[i].def.Name == def.Name {
			r.slots[i].sibling = id
			break
		}
	}
	return id, nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// renderParserValue is the default renderer for parser-defined fields:
// the stored value, as is.
func renderParserValue(_ *Engine, _ *tags.Entry, value string) (string, error) {
	return value, nil
}

var fieldDefinitionsFixed = []FieldDescriptor{
	{
		Letter: 'N', Name: "name", Description: "tag name (fixed field)",
		Enabled: true, DataType: DataString,
		Render: [writerCount]RenderFunc{
			WriterCtags: renderName,
			WriterEtags: renderNameNoEscape,
			WriterJSON:  renderNameNoEscape,
		},
	},
	{
		Letter: 'F', Name: "input", Description: "input file (fixed field)",
		Enabled: true, DataType: DataString,
		Render: [writerCount]RenderFunc{
			WriterCtags: renderInput,
			WriterEtags: renderInputNoEscape,
			WriterJSON:  renderInputNoEscape,
		},
	},
	{
		Letter: 'P', Name: "pattern", Description: "pattern (fixed field)",
		Enabled: true, DataType: DataString,
		Render: [writerCount]RenderFunc{
			WriterCtags: renderPattern,
		},
	},
}

var fieldDefinitionsExuberant = []FieldDescriptor{
	{
		Letter: 'C', Name: "compact",
		Description: "compact input line (fixed field, only used in xref output)",
		DataType:    DataString,
		Render:      [writerCount]RenderFunc{WriterCtags: renderCompactInputLine},
	},
	{
		Letter: 'a', Name: "access", Description: "Access (or export) of class members",
		DataType:  DataString,
		Render:    [writerCount]RenderFunc{WriterCtags: renderAccess},
		Available: func(e *tags.Entry) bool { return e.Ext.Access != "" },
	},
	{
		Letter: 'f', Name: "file", Description: "File-restricted scoping",
		Enabled: true, DataType: DataBool,
		Render:    [writerCount]RenderFunc{WriterCtags: renderFileScope},
		Available: func(e *tags.Entry) bool { return e.IsFileScope },
	},
	{
		Letter: 'i', Name: "inherits", Description: "Inheritance information",
		DataType:  DataString | DataBool,
		Render:    [writerCount]RenderFunc{WriterCtags: renderInherits},
		Available: func(e *tags.Entry) bool { return e.Ext.Inheritance != "" },
	},
	{
		Letter: 'K', Description: "Kind of tag as full name",
		DataType: DataString,
		Render:   [writerCount]RenderFunc{WriterCtags: renderKindName},
	},
	{
		Letter: 'k', Description: "Kind of tag as a single letter",
		Enabled: true, DataType: DataString,
		Render: [writerCount]RenderFunc{WriterCtags: renderKindLetter},
	},
	{
		Letter: 'l', Name: "language", Description: "Language of input file containing tag",
		DataType:  DataString,
		Render:    [writerCount]RenderFunc{WriterCtags: renderLanguage},
		Available: func(e *tags.Entry) bool { return e.Language != "" },
	},
	{
		Letter: 'm', Name: "implementation", Description: "Implementation information",
		DataType:  DataString,
		Render:    [writerCount]RenderFunc{WriterCtags: renderImplementation},
		Available: func(e *tags.Entry) bool { return e.Ext.Implementation != "" },
	},
	{
		Letter: 'n', Name: "line", Description: "Line number of tag definition",
		DataType: DataInteger,
		Render:   [writerCount]RenderFunc{WriterCtags: renderLineNumber},
	},
	{
		Letter: 'S', Name: "signature",
		Description: "Signature of routine (e.g. prototype or parameter list)",
		DataType:    DataString,
		Render:      [writerCount]RenderFunc{WriterCtags: renderSignature},
		Available:   func(e *tags.Entry) bool { return e.Ext.Signature != "" },
	},
	{
		Letter: 's', Description: "Scope of tag definition",
		Enabled: true, DataType: DataString,
		Render: [writerCount]RenderFunc{
			WriterCtags: renderScope,
			WriterEtags: renderScopeNoEscape,
			WriterJSON:  renderScopeNoEscape,
		},
	},
	{
		Letter: 't', Name: "typeref", Description: "Type and name of a variable or typedef",
		Enabled: true, DataType: DataString,
		Render: [writerCount]RenderFunc{WriterCtags: renderTypeRef},
		Available: func(e *tags.Entry) bool {
			return e.Ext.TypeRef[0] != "" && e.Ext.TypeRef[1] != ""
		},
	},
	{
		Letter: 'z', Name: "kind",
		Description: "Include the \"kind:\" key in kind field (use k or K) in tags output, kind full name in xref output",
		DataType:    DataString,
		Render:      [writerCount]RenderFunc{WriterCtags: renderKindName},
	},
}

var fieldDefinitionsUniversal = []FieldDescriptor{
	{
		Letter: 'r', Name: "role", Description: "Role",
		DataType:  DataString,
		Render:    [writerCount]RenderFunc{WriterCtags: renderRole},
		Available: func(e *tags.Entry) bool { return e.Ext.RoleIndex != tags.RoleDefinition },
	},
	{
		Letter:      'R',
		Description: "Marker (R or D) representing whether tag is definition or reference",
		DataType:    DataString,
		Render:      [writerCount]RenderFunc{WriterCtags: renderRefMarker},
	},
	{
		Letter: 'Z', Name: "scope",
		Description: "Include the \"scope:\" key in scope field (use s) in tags output, scope name in xref output",
		DataType:    DataString,
		Render: [writerCount]RenderFunc{
			WriterCtags: renderScope,
			WriterEtags: renderScopeNoEscape,
			WriterJSON:  renderScopeNoEscape,
		},
	},
	{
		Letter: 'E', Name: "extras", Description: "Extra tag type information",
		DataType:  DataString,
		Render:    [writerCount]RenderFunc{WriterCtags: renderExtras},
		Available: func(e *tags.Entry) bool { return len(e.Extras.Names()) > 0 },
	},
	{
		Letter: 'x', Name: "xpath", Description: "xpath for the tag",
		DataType:  DataString,
		Render:    [writerCount]RenderFunc{WriterCtags: renderXpath},
		Available: func(e *tags.Entry) bool { return e.Ext.Xpath != "" },
	},
	{
		Letter: 'p', Name: "scopeKind", Description: "Kind of scope as full name",
		DataType: DataString,
		Render:   [writerCount]RenderFunc{WriterCtags: renderScopeKindName},
	},
	{
		Letter: 'e', Name: "end", Description: "end lines of various items",
		DataType:  DataInteger,
		Render:    [writerCount]RenderFunc{WriterCtags: renderEnd},
		Available: func(e *tags.Entry) bool { return e.Ext.EndLine != 0 },
	},
}
