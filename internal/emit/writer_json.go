package emit

import (
	"encoding/json"
	"errors"

	"tagsmith/internal/tags"
)

// jsonTag is the line-delimited JSON record shape. Field names match
// what downstream symbol indexers expect from tag generators.
type jsonTag struct {
	Type      string `json:"_type"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Line      int    `json:"line,omitempty"`
	Language  string `json:"language,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ScopeKind string `json:"scopeKind,omitempty"`
	Signature string `json:"signature,omitempty"`
	Role      string `json:"role,omitempty"`
}

// writeJSONEntry writes one entry as a JSON object on its own line.
// Fields whose renderer rejects the value are dropped from the record;
// the record itself is still written.
func (en *Engine) writeJSONEntry(e *tags.Entry) (int, error) {
	rec := jsonTag{Type: "tag", Line: e.LineNumber}

	set := func(dst *string, id FieldID) {
		v, err := en.RenderField(WriterJSON, id, e, -1)
		if err != nil {
			if errors.Is(err, ErrFieldRejected) {
				en.log.Debug("field rejected by writer",
					"field", en.fields.Name(id, false), "tag", e.Name)
			}
			return
		}
		*dst = v
	}

	set(&rec.Name, FieldName)
	set(&rec.Path, FieldInputFile)

	if !e.LineNumberEntry {
		if pattern, err := en.RenderField(WriterJSON, FieldPattern, e, -1); err == nil {
			rec.Pattern = pattern
		}
	}
	if e.Kind != nil {
		rec.Kind = e.Kind.Name
		if rec.Kind == "" && e.Kind.Letter != 0 {
			rec.Kind = string(e.Kind.Letter)
		}
	}
	rec.Language = e.Language
	if kindName, scope, ok := en.scopeInformation(e); ok {
		rec.Scope = scope
		rec.ScopeKind = kindName
	}
	rec.Signature = e.Ext.Signature
	if role := e.Role(); role != nil {
		rec.Role = role.Name
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	return en.file.write(string(data) + "\n")
}
