package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"tagsmith/internal/emit"
	"tagsmith/internal/source"
	"tagsmith/internal/tags"
)

// Parse walks one source file and emits its tags through the engine.
// The whole file runs inside a cork session so nested definitions can
// reference their enclosing scope by queue index before the scope's
// subtree is finished.
func (l *Language) Parse(ctx context.Context, f *source.File, en *emit.Engine) error {
	p := sitter.NewParser()
	p.SetLanguage(l.Sitter)

	tree, err := p.ParseCtx(ctx, nil, f.Content())
	if err != nil {
		return fmt.Errorf("parse %s: %w", f.Name(), err)
	}
	defer tree.Close()

	f.SetAllowNullTags(l.AllowNullTags)
	en.SetInput(f)

	en.Cork()
	werr := l.walk(tree.RootNode(), f, en, tags.ScopeNone)
	if uerr := en.Uncork(); werr == nil {
		werr = uerr
	}
	return werr
}

// walk emits tags for node and its subtree. scopeIndex is the cork
// index of the innermost enclosing scope, or tags.ScopeNone at the top
// level.
func (l *Language) walk(node *sitter.Node, f *source.File, en *emit.Engine, scopeIndex int) error {
	childScope := scopeIndex

	if rule, ok := l.Rules[node.Type()]; ok {
		index, err := l.emitNode(node, rule, f, en, scopeIndex)
		if err != nil {
			return err
		}
		if rule.Scope && index != tags.ScopeNone {
			childScope = index
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		if err := l.walk(node.NamedChild(i), f, en, childScope); err != nil {
			return err
		}
	}
	return nil
}

func (l *Language) emitNode(node *sitter.Node, rule nodeRule, f *source.File, en *emit.Engine, scopeIndex int) (int, error) {
	name := l.nodeName(node, rule, f)
	if name == "" && !l.AllowNullTags {
		return tags.ScopeNone, nil
	}

	line := int(node.StartPoint().Row) + 1
	entry := tags.NewRefEntry(name, rule.Kind, rule.RoleIndex, f.Position(line))
	entry.Ext.ScopeIndex = scopeIndex
	entry.Ext.EndLine = int(node.EndPoint().Row) + 1
	if entry.Ext.EndLine == line {
		entry.Ext.EndLine = 0
	}
	if rule.RoleIndex != tags.RoleDefinition {
		entry.Extras.Mark(tags.ExtraReference)
	}
	if rule.SignatureField != "" {
		if sig := node.ChildByFieldName(rule.SignatureField); sig != nil {
			entry.Ext.Signature = compactSignature(sig.Content(f.Content()))
		}
	}

	return en.Make(&entry)
}

// nodeName extracts the identifier a rule tags. String-literal names
// (import paths) are unquoted.
func (l *Language) nodeName(node *sitter.Node, rule nodeRule, f *source.File) string {
	field := rule.NameField
	if field == "" {
		field = "name"
	}

	nameNode := node.ChildByFieldName(field)
	if nameNode == nil {
		// Fall back to the first identifier-ish child; package clauses
		// and import specs keep their name as a bare child.
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "identifier", "package_identifier", "type_identifier",
				"field_identifier", "interpreted_string_literal",
				"dotted_name", "string":
				nameNode = child
			}
			if nameNode != nil {
				break
			}
		}
	}
	if nameNode == nil {
		return ""
	}

	name := nameNode.Content(f.Content())
	name = strings.Trim(name, "\"'`")
	return name
}

// compactSignature collapses a multi-line parameter list to one line.
func compactSignature(sig string) string {
	if !strings.ContainsAny(sig, "\n\r\t") {
		return sig
	}
	fieldsJoined := strings.Join(strings.Fields(sig), " ")
	return fieldsJoined
}
