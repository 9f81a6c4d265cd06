package emit

import (
	"slices"
	"strings"

	"tagsmith/internal/tags"
)

// Cork starts (or nests) a deferred-emission session. While corked,
// Make buffers entries and returns stable queue indices that later
// entries may reference as scopes. Slot 0 of the queue is reserved so
// tags.ScopeNone never collides with a real entry.
func (en *Engine) Cork() {
	en.corkDepth++
	if en.corkDepth == 1 {
		en.corkQueue = make([]tags.Entry, 1, 16)
	}
}

// Uncork ends one cork level. The outermost Uncork flushes the queued
// entries in submission order and releases the queue; nested levels
// just decrement the depth.
func (en *Engine) Uncork() error {
	en.corkDepth--
	if en.corkDepth > 0 {
		return nil
	}

	for i := 1; i < len(en.corkQueue); i++ {
		if err := en.writeEntry(&en.corkQueue[i]); err != nil {
			return err
		}
	}
	en.corkQueue = nil
	return nil
}

// Corked reports whether a cork session is active.
func (en *Engine) Corked() bool { return en.corkDepth > 0 }

// CorkCount returns the number of queue slots in use, including the
// reserved slot 0.
func (en *Engine) CorkCount() int { return len(en.corkQueue) }

// EntryAt returns the queued entry at the given cork index, or nil for
// tags.ScopeNone and out-of-range indices. The pointer stays valid
// only until the next entry is queued; indices stay valid for the
// whole cork session.
func (en *Engine) EntryAt(index int) *tags.Entry {
	if index <= tags.ScopeNone || index >= len(en.corkQueue) {
		return nil
	}
	return &en.corkQueue[index]
}

// queueEntry copies an entry into the cork queue and returns its
// index. The copy owns its strings; the pattern is materialized now
// because the input file may be gone by flush time.
func (en *Engine) queueEntry(e *tags.Entry) (int, error) {
	slot := *e
	slot.ParserFields = slices.Clone(e.ParserFields)
	if slot.Pattern == "" && !slot.LineNumberEntry && !slot.Placeholder {
		pattern, err := en.makePatternString(e)
		if err != nil {
			return tags.ScopeNone, err
		}
		slot.Pattern = pattern
	}

	en.corkQueue = append(en.corkQueue, slot)
	return len(en.corkQueue) - 1, nil
}

// scopeInformation resolves the scope of an entry: the explicit
// kind/name pair when the parser set one, otherwise the fully
// qualified name synthesized from the cork queue.
func (en *Engine) scopeInformation(e *tags.Entry) (kindName, scopeName string, ok bool) {
	if e.Ext.ScopeKind != nil && e.Ext.ScopeName != "" {
		return e.Ext.ScopeKind.Name, e.Ext.ScopeName, true
	}
	if e.Ext.ScopeIndex == tags.ScopeNone || len(en.corkQueue) == 0 {
		return "", "", false
	}

	scope := en.EntryAt(e.Ext.ScopeIndex)
	if scope == nil {
		return "", "", false
	}
	full := en.fullScopeName(scope)
	if full == "" {
		// Nothing but placeholders in the chain.
		return "", "", false
	}
	if scope.Kind != nil {
		kindName = scope.Kind.Name
	}
	return kindName, full, true
}

// fullScopeName walks the parent chain of a queued scope entry and
// joins the non-placeholder names outermost first with dots. Parent
// indices are always smaller than child indices, so the walk
// terminates.
func (en *Engine) fullScopeName(scope *tags.Entry) string {
	var chain []string
	for scope != nil {
		if !scope.Placeholder {
			chain = append(chain, en.escapeName(scope, scope.Name))
		}
		scope = en.EntryAt(scope.Ext.ScopeIndex)
	}

	var b strings.Builder
	for i := len(chain) - 1; i >= 0; i-- {
		b.WriteString(chain[i])
		if i > 0 {
			b.WriteByte('.')
		}
	}
	return b.String()
}
