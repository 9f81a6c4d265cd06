package emit

import (
	"fmt"
	"log/slog"

	"tagsmith/internal/config"
	"tagsmith/internal/logging"
	"tagsmith/internal/tags"
)

// Input is the view of the current input file the engine reads from.
type Input interface {
	// Name returns the input path as it appears in tag lines.
	Name() string
	// ReadLineAt returns the line starting at the given byte offset,
	// including its terminator when present.
	ReadLineAt(offset int64) (string, error)
	// AllowsNullTags reports whether the input's language permits tags
	// with empty names.
	AllowsNullTags() bool
}

// Engine formats and writes tag entries. Construct one with NewEngine,
// pair OpenTagFile with CloseTagFile, and feed entries through Make.
// Engines are single-threaded; concurrent tag generation is not
// supported.
type Engine struct {
	opts   *config.Options
	log    *slog.Logger
	fields *Registry

	input Input

	file tagFileState

	corkDepth int
	corkQueue []tags.Entry

	patternCache struct {
		valid   bool
		pos     int64
		pattern string
	}

	xfmt1, xfmt2, xfmtCustom *Xfmt
}

// NewEngine returns an engine for the given options. A nil logger
// discards engine diagnostics.
func NewEngine(opts *config.Options, log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{
		opts:   opts,
		log:    log,
		fields: NewRegistry(log),
	}
}

// Options returns the options the engine was built with.
func (en *Engine) Options() *config.Options { return en.opts }

// Fields returns the engine's field registry.
func (en *Engine) Fields() *Registry { return en.fields }

// SetInput switches the engine to a new input file. The pattern cache
// is invalidated: cached patterns belong to the previous input.
func (en *Engine) SetInput(in Input) {
	en.input = in
	en.patternCache.valid = false
}

// activeWriter returns the renderer seat for the selected output
// format.
func (en *Engine) activeWriter() Writer {
	switch {
	case en.opts.JSON:
		return WriterJSON
	case en.opts.Etags:
		return WriterEtags
	default:
		return WriterCtags
	}
}

// RenderField renders one field of an entry for the given writer seat.
// parserIndex, when non-negative, selects a value from the entry's
// parser fields. Returns ErrFieldRejected when the renderer refused
// the value; other errors mean the field has no value here.
func (en *Engine) RenderField(w Writer, id FieldID, e *tags.Entry, parserIndex int) (string, error) {
	slot := en.fields.slot(id)
	value := ""
	if parserIndex >= 0 && parserIndex < len(e.ParserFields) {
		value = e.ParserFields[parserIndex].Value
	}
	fn := slot.def.Render[w]
	if fn == nil {
		fn = slot.def.Render[WriterCtags]
	}
	if fn == nil {
		return "", errNoValue
	}
	return fn(en, e, value)
}

// renderEscaped renders a builtin field with the active writer seat,
// falling back to the ctags seat.
func (en *Engine) renderEscaped(id FieldID, e *tags.Entry) (string, error) {
	return en.RenderField(en.activeWriter(), id, e, -1)
}

// Make is the single entry point for emitting a tag. Outside a cork
// session the entry is written immediately and 0 is returned; inside
// one it is copied into the queue and its queue index returned, which
// later entries may store as their scope index.
func (en *Engine) Make(e *tags.Entry) (int, error) {
	if en.opts.LineNumbers {
		e.LineNumberEntry = true
	}

	if e.Name == "" && !e.Placeholder {
		if en.input == nil || !en.input.AllowsNullTags() {
			en.log.Warn("ignoring null tag",
				"file", e.InputFile, "line", e.LineNumber)
		}
		return tags.ScopeNone, nil
	}

	if en.corkDepth > 0 {
		return en.queueEntry(e)
	}
	return tags.ScopeNone, en.writeEntry(e)
}

// writeEntry dispatches an entry to the active writer and updates the
// running counters. Placeholder entries are never written.
func (en *Engine) writeEntry(e *tags.Entry) error {
	if e.Placeholder {
		return nil
	}

	var (
		length int
		err    error
	)
	switch {
	case en.opts.Xref:
		length, err = en.writeXrefEntry(e)
	case en.opts.Etags:
		length, err = en.writeEtagsEntry(e)
	case en.opts.JSON:
		length, err = en.writeJSONEntry(e)
	default:
		length, err = en.writeCtagsEntry(e)
	}
	if err != nil {
		return fmt.Errorf("cannot write tag file: %w", err)
	}

	en.file.numTags.added++
	en.rememberMaxLengths(len(e.Name), length)
	return nil
}

func (en *Engine) rememberMaxLengths(nameLength, lineLength int) {
	if nameLength > en.file.max.tag {
		en.file.max.tag = nameLength
	}
	if lineLength > en.file.max.line {
		en.file.max.line = lineLength
	}
}

// TagCount returns the number of tags written so far, not counting
// tags carried over from an append-mode merge.
func (en *Engine) TagCount() int { return en.file.numTags.added }

// PreviousTagCount returns the number of lines found in the existing
// file during an append-mode open.
func (en *Engine) PreviousTagCount() int { return en.file.numTags.prev }

// MaxTagWidth returns the longest tag name written so far.
func (en *Engine) MaxTagWidth() int { return en.file.max.tag }
