package emit

import (
	"errors"
	"strconv"
	"strings"

	"tagsmith/internal/tags"
)

// writeCtagsEntry writes one entry in the traditional or extended
// ctags format and returns the number of bytes written.
func (en *Engine) writeCtagsEntry(e *tags.Entry) (int, error) {
	var b strings.Builder

	name, err := en.RenderField(WriterCtags, FieldName, e, -1)
	if err != nil {
		name = ""
	}
	file, err := en.RenderField(WriterCtags, FieldInputFile, e, -1)
	if err != nil {
		file = ""
	}
	b.WriteString(name)
	b.WriteByte('\t')
	b.WriteString(file)
	b.WriteByte('\t')

	switch {
	case e.LineNumberEntry:
		if err := en.writeLineNumberEntry(&b, e); err != nil {
			return 0, err
		}
	case e.Pattern != "":
		b.WriteString(e.Pattern)
	default:
		pattern, err := en.makePatternString(e)
		if err != nil {
			return 0, err
		}
		b.WriteString(pattern)
	}

	if en.opts.TagFileFormat > 1 {
		if err := en.extensionFields(&b, e); err != nil {
			return 0, err
		}
	}
	b.WriteByte('\n')

	return en.file.write(b.String())
}

func (en *Engine) writeLineNumberEntry(b *strings.Builder, e *tags.Entry) error {
	if en.opts.LineDirectives {
		n, err := en.RenderField(WriterCtags, FieldLineNumber, e, -1)
		if err != nil {
			return err
		}
		b.WriteString(n)
		return nil
	}
	b.WriteString(strconv.Itoa(e.LineNumber))
	return nil
}

// extensionFields appends the ;"-separated extension suffix in the
// fixed field order: kind, line, language, scope, typeref, file
// marker, inheritance, access, implementation, signature, role. A
// field appears only when enabled and available; renderer rejection
// drops the field, not the record.
func (en *Engine) extensionFields(b *strings.Builder, e *tags.Entry) error {
	first := true
	sep := func() {
		if first {
			b.WriteString(";\"")
			first = false
		}
		b.WriteByte('\t')
	}
	emit := func(key, value string) {
		sep()
		if key != "" {
			b.WriteString(key)
			b.WriteByte(':')
		}
		b.WriteString(value)
	}
	// render runs a builtin renderer for the active writer seat; a
	// rejected or valueless field yields ok == false.
	render := func(id FieldID) (string, bool) {
		v, err := en.renderEscaped(id, e)
		if err != nil {
			if errors.Is(err, ErrFieldRejected) {
				en.log.Debug("field rejected by writer",
					"field", en.fields.Name(id, false), "tag", e.Name)
			}
			return "", false
		}
		return v, true
	}

	fields := en.fields
	prefix := en.opts.PutFieldPrefix

	kindKey := ""
	if fields.Enabled(FieldKindKey) {
		kindKey = fields.Name(FieldKindKey, prefix)
	}
	scopeKey := ""
	if fields.Enabled(FieldScopeKey) {
		scopeKey = fields.Name(FieldScopeKey, prefix)
	}

	if e.Kind != nil {
		longWanted := fields.Enabled(FieldKindLong) ||
			(fields.Enabled(FieldKind) && e.Kind.Letter == 0)
		letterWanted := fields.Enabled(FieldKind) ||
			(fields.Enabled(FieldKindLong) && e.Kind.Name == "")
		if e.Kind.Name != "" && longWanted {
			emit(kindKey, e.Kind.Name)
		} else if e.Kind.Letter != 0 && letterWanted {
			emit(kindKey, string(e.Kind.Letter))
		}
	}

	if fields.Enabled(FieldLineNumber) {
		if v, ok := render(FieldLineNumber); ok {
			emit(fields.Name(FieldLineNumber, prefix), v)
		}
	}

	if fields.Enabled(FieldLanguage) && e.Language != "" {
		if v, ok := render(FieldLanguage); ok {
			emit(fields.Name(FieldLanguage, prefix), v)
		}
	}

	if fields.Enabled(FieldScope) {
		if kindName, _, ok := en.scopeInformation(e); ok {
			if v, vok := render(FieldScope); vok {
				sep()
				if scopeKey != "" {
					b.WriteString(scopeKey)
					b.WriteByte(':')
				}
				b.WriteString(kindName)
				b.WriteByte(':')
				b.WriteString(v)
			}
		}
	}

	if fields.Enabled(FieldTypeRef) &&
		e.Ext.TypeRef[0] != "" && e.Ext.TypeRef[1] != "" {
		if v, ok := render(FieldTypeRef); ok {
			sep()
			b.WriteString(fields.Name(FieldTypeRef, prefix))
			b.WriteByte(':')
			b.WriteString(e.Ext.TypeRef[0])
			b.WriteByte(':')
			b.WriteString(v)
		}
	}

	if fields.Enabled(FieldFileScope) && e.IsFileScope {
		emit(fields.Name(FieldFileScope, prefix), "")
	}

	if fields.Enabled(FieldInherits) && e.Ext.Inheritance != "" {
		if v, ok := render(FieldInherits); ok {
			emit(fields.Name(FieldInherits, prefix), v)
		}
	}

	if fields.Enabled(FieldAccess) && e.Ext.Access != "" {
		emit(fields.Name(FieldAccess, prefix), e.Ext.Access)
	}

	if fields.Enabled(FieldImplementation) && e.Ext.Implementation != "" {
		emit(fields.Name(FieldImplementation, prefix), e.Ext.Implementation)
	}

	if fields.Enabled(FieldSignature) && e.Ext.Signature != "" {
		if v, ok := render(FieldSignature); ok {
			emit(fields.Name(FieldSignature, prefix), v)
		}
	}

	if fields.Enabled(FieldRole) && e.Ext.RoleIndex != tags.RoleDefinition {
		if v, ok := render(FieldRole); ok {
			emit(fields.Name(FieldRole, prefix), v)
		}
	}

	return nil
}
