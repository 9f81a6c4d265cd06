// Package parser extracts tag entries from source files using
// tree-sitter grammars and feeds them to the output engine.
package parser

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"tagsmith/internal/tags"
)

// nodeRule maps one AST node type to the kind it defines and how to
// treat it structurally.
type nodeRule struct {
	Kind *tags.Kind

	// Scope marks nodes that form a naming scope for the definitions
	// nested below them (classes, interfaces, outer functions).
	Scope bool

	// RoleIndex, when not RoleDefinition, emits a reference tag with
	// that role instead of a definition tag.
	RoleIndex int

	// NameField is the field holding the identifier; empty means
	// "name".
	NameField string

	// SignatureField, when set, fills the signature extension field
	// from that child.
	SignatureField string
}

// Language binds a tree-sitter grammar to its kind catalog and node
// rules.
type Language struct {
	Name       string
	Extensions []string
	Sitter     *sitter.Language

	// Kinds is the language's kind catalog, keyed by long name.
	Kinds map[string]*tags.Kind

	// Rules maps AST node types to tagging rules.
	Rules map[string]nodeRule

	// AllowNullTags passes entries with empty names on to the output
	// engine, which drops them without a warning; they are not written
	// and get no scope index.
	AllowNullTags bool
}

func newKind(letter byte, name, description string, roles ...tags.Role) *tags.Kind {
	return &tags.Kind{
		Letter:      letter,
		Name:        name,
		Description: description,
		Enabled:     true,
		Roles:       roles,
	}
}

var importedRole = tags.Role{
	Name:        "imported",
	Description: "imported package or module",
	Enabled:     true,
}

func goLanguage() *Language {
	kinds := map[string]*tags.Kind{
		"package":   newKind('p', "package", "packages", importedRole),
		"func":      newKind('f', "func", "functions"),
		"type":      newKind('t', "type", "types"),
		"struct":    newKind('s', "struct", "structs"),
		"interface": newKind('i', "interface", "interfaces"),
		"var":       newKind('v', "var", "variables"),
		"const":     newKind('c', "const", "constants"),
		"member":    newKind('m', "member", "struct members"),
	}
	return &Language{
		Name:       "Go",
		Extensions: []string{".go"},
		Sitter:     golang.GetLanguage(),
		Kinds:      kinds,
		Rules: map[string]nodeRule{
			"package_clause":       {Kind: kinds["package"]},
			"function_declaration": {Kind: kinds["func"], Scope: true, SignatureField: "parameters"},
			"method_declaration":   {Kind: kinds["func"], Scope: true, SignatureField: "parameters"},
			"type_spec":            {Kind: kinds["type"], Scope: true},
			"var_spec":             {Kind: kinds["var"]},
			"const_spec":           {Kind: kinds["const"]},
			"field_declaration":    {Kind: kinds["member"]},
			"import_spec":          {Kind: kinds["package"], RoleIndex: 1, NameField: "path"},
		},
	}
}

func pythonLanguage() *Language {
	kinds := map[string]*tags.Kind{
		"class":    newKind('c', "class", "classes"),
		"function": newKind('f', "function", "functions"),
		"module":   newKind('i', "module", "modules", importedRole),
	}
	return &Language{
		Name:       "Python",
		Extensions: []string{".py"},
		Sitter:     python.GetLanguage(),
		Kinds:      kinds,
		Rules: map[string]nodeRule{
			"class_definition":    {Kind: kinds["class"], Scope: true},
			"function_definition": {Kind: kinds["function"], Scope: true, SignatureField: "parameters"},
			"import_statement":    {Kind: kinds["module"], RoleIndex: 1, NameField: "name"},
		},
	}
}

func javascriptLanguage() *Language {
	kinds := map[string]*tags.Kind{
		"function": newKind('f', "function", "functions"),
		"class":    newKind('c', "class", "classes"),
		"method":   newKind('m', "method", "methods"),
		"variable": newKind('v', "variable", "variables"),
	}
	return &Language{
		Name:       "JavaScript",
		Extensions: []string{".js", ".mjs", ".cjs"},
		Sitter:     javascript.GetLanguage(),
		Kinds:      kinds,
		Rules: map[string]nodeRule{
			"function_declaration": {Kind: kinds["function"], Scope: true, SignatureField: "parameters"},
			"class_declaration":    {Kind: kinds["class"], Scope: true},
			"method_definition":    {Kind: kinds["method"], SignatureField: "parameters"},
			"variable_declarator":  {Kind: kinds["variable"]},
		},
	}
}

var languages = []*Language{
	goLanguage(),
	pythonLanguage(),
	javascriptLanguage(),
}

// Languages returns the supported language catalog.
func Languages() []*Language { return languages }

// Detect returns the language for a file path, or nil when the
// extension is not supported.
func Detect(path string) *Language {
	ext := strings.ToLower(filepath.Ext(path))
	for _, lang := range languages {
		for _, e := range lang.Extensions {
			if e == ext {
				return lang
			}
		}
	}
	return nil
}
