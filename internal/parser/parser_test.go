package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tagsmith/internal/config"
	"tagsmith/internal/emit"
	"tagsmith/internal/source"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"main.go", "Go"},
		{"script.py", "Python"},
		{"app.js", "JavaScript"},
		{"mod.mjs", "JavaScript"},
		{"README.md", ""},
		{"noext", ""},
	}
	for _, tc := range cases {
		lang := Detect(tc.path)
		got := ""
		if lang != nil {
			got = lang.Name
		}
		if got != tc.want {
			t.Errorf("Detect(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

// parseToTags runs one in-memory file through the full engine and
// returns the tag file contents.
func parseToTags(t *testing.T, path, content string) string {
	t.Helper()

	lang := Detect(path)
	if lang == nil {
		t.Fatalf("no language for %s", path)
	}

	opts := config.DefaultOptions()
	opts.TagFileName = filepath.Join(t.TempDir(), "tags")
	opts.Sorted = config.Unsorted
	opts.PseudoTags = false

	en := emit.NewEngine(opts, nil)
	if err := en.OpenTagFile(); err != nil {
		t.Fatalf("OpenTagFile() error = %v", err)
	}

	f := source.FromBytes(path, lang.Name, []byte(content))
	if err := lang.Parse(context.Background(), f, en); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := en.CloseTagFile(false); err != nil {
		t.Fatalf("CloseTagFile() error = %v", err)
	}

	data, err := os.ReadFile(opts.TagFileName)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestParseGo(t *testing.T) {
	src := `package server

import "fmt"

type Handler struct {
	name string
}

func (h *Handler) Serve() error {
	return nil
}

func New(name string) *Handler {
	return &Handler{name: name}
}
`
	got := parseToTags(t, "server.go", src)

	for _, want := range []string{
		"server\tserver.go\t/^package server$/;\"\tp\n",
		"Handler\tserver.go\t",
		"New\tserver.go\t",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if !strings.Contains(got, "Serve\tserver.go\t") {
		t.Errorf("method tag missing:\n%s", got)
	}
	if !strings.Contains(got, "name\tserver.go\t") {
		t.Errorf("struct member tag missing:\n%s", got)
	}
}

func TestParseGoSignature(t *testing.T) {
	en := emit.NewEngine(config.DefaultOptions(), nil)
	en.Fields().Enable(emit.FieldSignature, true, false)

	opts := en.Options()
	opts.TagFileName = filepath.Join(t.TempDir(), "tags")
	opts.Sorted = config.Unsorted
	opts.PseudoTags = false
	if err := en.OpenTagFile(); err != nil {
		t.Fatal(err)
	}

	src := "package x\n\nfunc Add(a, b int) int { return a + b }\n"
	lang := Detect("x.go")
	f := source.FromBytes("x.go", lang.Name, []byte(src))
	if err := lang.Parse(context.Background(), f, en); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := en.CloseTagFile(false); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(opts.TagFileName)
	if !strings.Contains(string(data), "\tsignature:(a, b int)") {
		t.Errorf("signature field missing:\n%s", data)
	}
}

func TestParsePythonScopes(t *testing.T) {
	src := `class Tree:
    def insert(self, value):
        pass

    def walk(self):
        pass

def main():
    pass
`
	got := parseToTags(t, "tree.py", src)

	if !strings.Contains(got, "Tree\ttree.py\t/^class Tree:$/;\"\tc\n") {
		t.Errorf("class tag wrong:\n%s", got)
	}
	for _, method := range []string{"insert", "walk"} {
		found := false
		for _, line := range strings.Split(got, "\n") {
			if strings.HasPrefix(line, method+"\t") &&
				strings.Contains(line, "\tclass:Tree") {
				found = true
			}
		}
		if !found {
			t.Errorf("method %s missing class scope:\n%s", method, got)
		}
	}
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "main\t") && strings.Contains(line, "class:") {
			t.Errorf("top-level function gained a scope: %q", line)
		}
	}
}

func TestParsePythonImportRole(t *testing.T) {
	opts := config.DefaultOptions()
	opts.TagFileName = filepath.Join(t.TempDir(), "tags")
	opts.Sorted = config.Unsorted
	opts.PseudoTags = false

	en := emit.NewEngine(opts, nil)
	en.Fields().Enable(emit.FieldRole, true, false)
	if err := en.OpenTagFile(); err != nil {
		t.Fatal(err)
	}

	lang := Detect("m.py")
	f := source.FromBytes("m.py", lang.Name, []byte("import os\n"))
	if err := lang.Parse(context.Background(), f, en); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := en.CloseTagFile(false); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(opts.TagFileName)
	got := string(data)
	if !strings.Contains(got, "os\tm.py\t") || !strings.Contains(got, "\trole:imported") {
		t.Errorf("import reference tag missing:\n%s", got)
	}
}

func TestParseJavaScript(t *testing.T) {
	src := `class Widget {
  render() {
    return null;
  }
}

function helper(x) {
  return x;
}
`
	got := parseToTags(t, "app.js", src)

	if !strings.Contains(got, "Widget\tapp.js\t") {
		t.Errorf("class tag missing:\n%s", got)
	}
	if !strings.Contains(got, "helper\tapp.js\t") {
		t.Errorf("function tag missing:\n%s", got)
	}
	found := false
	for _, line := range strings.Split(got, "\n") {
		if strings.HasPrefix(line, "render\t") && strings.Contains(line, "class:Widget") {
			found = true
		}
	}
	if !found {
		t.Errorf("method scope missing:\n%s", got)
	}
}
