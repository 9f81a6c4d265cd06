package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tagsmith/internal/config"
	"tagsmith/internal/source"
	"tagsmith/internal/tags"
)

func testKind(letter byte, name string) *tags.Kind {
	return &tags.Kind{Letter: letter, Name: name, Enabled: true}
}

// newTestEngine returns an engine writing to a file under t.TempDir
// with pseudo-tags and sorting off, so tests see tag lines only.
func newTestEngine(t *testing.T, mutate func(*config.Options)) (*Engine, string) {
	t.Helper()
	opts := config.DefaultOptions()
	opts.TagFileName = filepath.Join(t.TempDir(), "tags")
	opts.Sorted = config.Unsorted
	opts.PseudoTags = false
	if mutate != nil {
		mutate(opts)
	}

	en := NewEngine(opts, nil)
	if err := en.OpenTagFile(); err != nil {
		t.Fatalf("OpenTagFile() error = %v", err)
	}
	return en, opts.TagFileName
}

func closeAndRead(t *testing.T, en *Engine, path string) string {
	t.Helper()
	if err := en.CloseTagFile(false); err != nil {
		t.Fatalf("CloseTagFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading tag file: %v", err)
	}
	return string(data)
}

func inputFile(path, language, content string) *source.File {
	return source.FromBytes(path, language, []byte(content))
}

func TestWriteExtendedFormat(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("a.c", "C", "int main(void) {\n")
	en.SetInput(f)

	entry := tags.NewEntry("main", testKind('f', "function"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	want := "main\ta.c\t/^int main(void) {$/;\"\tf\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteTraditionalFormat(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) { o.TagFileFormat = 1 })
	f := inputFile("a.c", "C", "int main(void) {\n")
	en.SetInput(f)

	entry := tags.NewEntry("main", testKind('f', "function"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	want := "main\ta.c\t/^int main(void) {$/\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtendedLineHasTwoUnescapedTabs(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("x.go", "Go", "func weird() {}\n")
	en.SetInput(f)

	entry := tags.NewEntry("weird", testKind('f', "func"), f.Position(1))
	entry.Ext.Signature = "()"
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	line := closeAndRead(t, en, path)
	body, _, found := strings.Cut(line, ";\"")
	if !found {
		t.Fatalf("no extension separator in %q", line)
	}
	if n := strings.Count(body, "\t"); n != 2 {
		t.Errorf("got %d tabs before extension suffix, want 2 (%q)", n, line)
	}
}

func TestCorkScopeResolution(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("x.py", "Python",
		"class Foo:\n    def bar(self):\n        pass\n")
	en.SetInput(f)

	en.Cork()
	class := tags.NewEntry("Foo", testKind('c', "class"), f.Position(1))
	classIndex, err := en.Make(&class)
	if err != nil {
		t.Fatalf("Make(class) error = %v", err)
	}
	if classIndex != 1 {
		t.Fatalf("got cork index %d, want 1", classIndex)
	}

	method := tags.NewEntry("bar", testKind('f', "function"), f.Position(2))
	method.Ext.ScopeIndex = classIndex
	methodIndex, err := en.Make(&method)
	if err != nil {
		t.Fatalf("Make(method) error = %v", err)
	}
	if methodIndex != 2 {
		t.Fatalf("got cork index %d, want 2", methodIndex)
	}

	if err := en.Uncork(); err != nil {
		t.Fatalf("Uncork() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	lines := strings.SplitAfter(got, "\n")
	if !strings.HasPrefix(lines[0], "Foo\t") {
		t.Errorf("first line should be the class: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "bar\t") {
		t.Errorf("second line should be the method: %q", lines[1])
	}
	if !strings.Contains(lines[1], "\tclass:Foo") {
		t.Errorf("method line missing scope field: %q", lines[1])
	}
}

func TestCorkNestedScopeChain(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("n.py", "Python",
		"class Outer:\n    class Inner:\n        def leaf(self):\n            pass\n")
	en.SetInput(f)

	en.Cork()
	outer := tags.NewEntry("Outer", testKind('c', "class"), f.Position(1))
	outerIndex, _ := en.Make(&outer)

	inner := tags.NewEntry("Inner", testKind('c', "class"), f.Position(2))
	inner.Ext.ScopeIndex = outerIndex
	innerIndex, _ := en.Make(&inner)

	leaf := tags.NewEntry("leaf", testKind('f', "function"), f.Position(3))
	leaf.Ext.ScopeIndex = innerIndex
	if _, err := en.Make(&leaf); err != nil {
		t.Fatalf("Make(leaf) error = %v", err)
	}

	if err := en.Uncork(); err != nil {
		t.Fatalf("Uncork() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if !strings.Contains(got, "leaf\tn.py\t/^        def leaf(self):$/;\"\tf\tclass:Outer.Inner\n") {
		t.Errorf("missing dot-joined scope chain in:\n%s", got)
	}
}

func TestCorkPlaceholderSkippedInChainAndOutput(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("p.py", "Python", "class A:\n    def f(self):\n        pass\n")
	en.SetInput(f)

	en.Cork()
	anon := tags.Entry{Placeholder: true, InputFile: "p.py", Language: "Python"}
	anon.Ext.ScopeIndex = tags.ScopeNone
	anonIndex, err := en.Make(&anon)
	if err != nil {
		t.Fatalf("Make(placeholder) error = %v", err)
	}
	if anonIndex == tags.ScopeNone {
		t.Fatal("placeholder should still get a cork index")
	}

	class := tags.NewEntry("A", testKind('c', "class"), f.Position(1))
	class.Ext.ScopeIndex = anonIndex
	classIndex, _ := en.Make(&class)

	fn := tags.NewEntry("f", testKind('f', "function"), f.Position(2))
	fn.Ext.ScopeIndex = classIndex
	if _, err := en.Make(&fn); err != nil {
		t.Fatalf("Make(fn) error = %v", err)
	}

	if err := en.Uncork(); err != nil {
		t.Fatalf("Uncork() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if strings.Contains(got, "\tclass:.A") || strings.Contains(got, "class:A.") {
		t.Errorf("placeholder leaked into scope chain:\n%s", got)
	}
	if !strings.Contains(got, "\tclass:A\n") {
		t.Errorf("missing scope for f:\n%s", got)
	}
	if lines := strings.Count(got, "\n"); lines != 2 {
		t.Errorf("placeholder should not be written; got %d lines:\n%s", lines, got)
	}
}

func TestCorkFlushOrderMatchesSubmission(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("o.go", "Go", "a\nb\nc\nd\n")
	en.SetInput(f)

	names := []string{"delta", "alpha", "charlie", "bravo"}
	en.Cork()
	for i, name := range names {
		entry := tags.NewEntry(name, testKind('v', "variable"), f.Position(i+1))
		if _, err := en.Make(&entry); err != nil {
			t.Fatalf("Make(%s) error = %v", name, err)
		}
	}
	if err := en.Uncork(); err != nil {
		t.Fatalf("Uncork() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != len(names) {
		t.Fatalf("got %d lines, want %d", len(lines), len(names))
	}
	for i, name := range names {
		if !strings.HasPrefix(lines[i], name+"\t") {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], name)
		}
	}
}

func TestNestedCorkOnlyOutermostFlushes(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("x.go", "Go", "one\ntwo\n")
	en.SetInput(f)

	en.Cork()
	en.Cork()
	entry := tags.NewEntry("one", testKind('v', "variable"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	if err := en.Uncork(); err != nil {
		t.Fatalf("inner Uncork() error = %v", err)
	}
	if !en.Corked() {
		t.Fatal("engine should still be corked after inner uncork")
	}
	if en.TagCount() != 0 {
		t.Fatal("inner uncork must not flush")
	}
	if err := en.Uncork(); err != nil {
		t.Fatalf("outer Uncork() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if !strings.HasPrefix(got, "one\t") {
		t.Errorf("outer uncork did not flush: %q", got)
	}
}

func TestNullTagSkipped(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("x.go", "Go", "line\n")
	en.SetInput(f)

	entry := tags.NewEntry("", testKind('f', "func"), f.Position(1))
	index, err := en.Make(&entry)
	if err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	if index != tags.ScopeNone {
		t.Errorf("null tag returned index %d", index)
	}

	got := closeAndRead(t, en, path)
	if got != "" {
		t.Errorf("null tag was written: %q", got)
	}
}

func TestTabInNameIsEscaped(t *testing.T) {
	en, path := newTestEngine(t, nil)
	f := inputFile("x.mk", "Make", "weird\ttarget:\n")
	en.SetInput(f)

	entry := tags.NewEntry("weird\ttarget", testKind('t', "target"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if !strings.HasPrefix(got, `weird\ttarget`+"\t") {
		t.Errorf("tab not escaped in name: %q", got)
	}
	body, _, _ := strings.Cut(got, ";\"")
	if n := strings.Count(body, "\t"); n != 2 {
		t.Errorf("escaping broke the column count: %q", got)
	}
}

func TestStrictRendererRejectsWhitespaceName(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)
	f := inputFile("x.txt", "Text", "some line\n")
	en.SetInput(f)

	entry := tags.NewEntry("bad name", testKind('x', "word"), f.Position(1))
	if _, err := en.RenderField(WriterJSON, FieldName, &entry, -1); err == nil {
		t.Fatal("expected rejection for whitespace in name")
	} else if err != ErrFieldRejected {
		t.Fatalf("got %v, want ErrFieldRejected", err)
	}

	// The escaping renderer accepts the same value.
	v, err := en.RenderField(WriterCtags, FieldName, &entry, -1)
	if err != nil || v != "bad name" {
		t.Errorf("ctags renderer got (%q, %v)", v, err)
	}
}

func TestPatternLengthLimit(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)
	en.Options().PatternLengthLimit = 80

	long := strings.Repeat("x", 4096) + "\n"
	f := inputFile("big.txt", "Text", long)
	en.SetInput(f)

	entry := tags.NewEntry("x", testKind('x', "word"), f.Position(1))
	pattern, err := en.makePatternString(&entry)
	if err != nil {
		t.Fatalf("makePatternString() error = %v", err)
	}

	want := "/^" + strings.Repeat("x", 80) + "/"
	if pattern != want {
		t.Errorf("got %q (len %d), want %q", pattern, len(pattern), want)
	}
	if strings.Contains(pattern, "$") {
		t.Error("cut pattern must not keep the $ anchor")
	}
}

func TestPatternEscaping(t *testing.T) {
	cases := []struct {
		name     string
		line     string
		backward bool
		want     string
	}{
		{"backslash doubled", `a\b` + "\n", false, `/^a\\b$/`},
		{"forward delimiter escaped", "a/b\n", false, `/^a\/b$/`},
		{"backward delimiter escaped", "a?b\n", true, `?^a\?b$?`},
		{"trailing dollar escaped", "ab$\n", false, `/^ab\$$/`},
		{"interior dollar kept", "a$b\n", false, `/^a$b$/`},
		{"no newline no anchor", "ab", false, `/^ab/`},
		{"cr terminates", "ab\r\n", false, `/^ab$/`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := config.DefaultOptions()
			opts.Backward = tc.backward
			en := NewEngine(opts, nil)
			f := inputFile("x.txt", "Text", tc.line)
			en.SetInput(f)

			entry := tags.NewEntry("ab", testKind('x', "word"), f.Position(1))
			got, err := en.makePatternString(&entry)
			if err != nil {
				t.Fatalf("makePatternString() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPatternCacheInvalidatedOnNewInput(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)

	f1 := inputFile("a.txt", "Text", "first line\n")
	en.SetInput(f1)
	e1 := tags.NewEntry("first", testKind('x', "word"), f1.Position(1))
	p1, err := en.makePatternString(&e1)
	if err != nil {
		t.Fatalf("makePatternString() error = %v", err)
	}

	// Same offset, different file: the cache must not serve p1.
	f2 := inputFile("b.txt", "Text", "other text\n")
	en.SetInput(f2)
	e2 := tags.NewEntry("other", testKind('x', "word"), f2.Position(1))
	p2, err := en.makePatternString(&e2)
	if err != nil {
		t.Fatalf("makePatternString() error = %v", err)
	}

	if p1 == p2 {
		t.Errorf("stale cached pattern served across inputs: %q", p2)
	}
	if p2 != "/^other text$/" {
		t.Errorf("got %q", p2)
	}
}

func TestTruncateLinePattern(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)
	f := inputFile("x.c", "C", "struct point origin = {0, 0};\n")
	en.SetInput(f)

	entry := tags.NewEntry("origin", testKind('v', "variable"), f.Position(1))
	entry.TruncateLine = true
	got, err := en.makePatternString(&entry)
	if err != nil {
		t.Fatalf("makePatternString() error = %v", err)
	}
	if got != "/^struct point origin /" {
		t.Errorf("got %q", got)
	}
}

func TestLineNumberEntry(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) { o.LineNumbers = true })
	f := inputFile("x.go", "Go", "package x\nfunc f() {}\n")
	en.SetInput(f)

	entry := tags.NewEntry("f", testKind('f', "func"), f.Position(2))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if !strings.HasPrefix(got, "f\tx.go\t2") {
		t.Errorf("got %q, want a line-number address", got)
	}
}

func TestRoleFieldEmitted(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) { o.TagFileFormat = 2 })
	en.Fields().Enable(FieldRole, true, false)

	f := inputFile("x.go", "Go", "import \"fmt\"\n")
	en.SetInput(f)

	kind := &tags.Kind{Letter: 'p', Name: "package", Enabled: true,
		Roles: []tags.Role{{Name: "imported", Enabled: true}}}
	entry := tags.NewRefEntry("fmt", kind, 1, f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if !strings.Contains(got, "\trole:imported") {
		t.Errorf("missing role field: %q", got)
	}
}

func TestFieldEnableDisableRoundTrip(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)
	reg := en.Fields()

	initial := reg.Enabled(FieldLineNumber)
	prev := reg.Enable(FieldLineNumber, !initial, false)
	if prev != initial {
		t.Errorf("Enable returned %v, want %v", prev, initial)
	}
	prev = reg.Enable(FieldLineNumber, initial, false)
	if prev != !initial {
		t.Errorf("second Enable returned %v, want %v", prev, !initial)
	}
	if reg.Enabled(FieldLineNumber) != initial {
		t.Error("state not restored after enable/disable/enable")
	}
}

func TestDisableFixedFieldIgnored(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)
	reg := en.Fields()

	if !reg.Fixed(FieldName) {
		t.Fatal("name field should be fixed")
	}
	prev := reg.Enable(FieldName, false, true)
	if !prev {
		t.Error("previous state should be true")
	}
	if !reg.Enabled(FieldName) {
		t.Error("fixed field must stay enabled")
	}
}

func TestFieldLookups(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)
	reg := en.Fields()

	if id := reg.ByLetter('n'); id != FieldLineNumber {
		t.Errorf("ByLetter('n') = %d", id)
	}
	if id := reg.ByName("line", ""); id != FieldLineNumber {
		t.Errorf(`ByName("line") = %d`, id)
	}
	if id := reg.ByLetter('@'); id != FieldUnknown {
		t.Errorf("ByLetter('@') = %d, want FieldUnknown", id)
	}
	if id := reg.ByName("nosuch", ""); id != FieldUnknown {
		t.Errorf(`ByName("nosuch") = %d, want FieldUnknown`, id)
	}
}

func TestDefineFieldAndSiblingChain(t *testing.T) {
	en := NewEngine(config.DefaultOptions(), nil)
	reg := en.Fields()

	goField, err := reg.Define(FieldDescriptor{
		Name:        "receiver",
		Description: "method receiver type",
		Enabled:     true,
	}, "Go")
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	pyField, err := reg.Define(FieldDescriptor{
		Name:        "receiver",
		Description: "bound object",
		Enabled:     true,
	}, "Python")
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}

	if got := reg.ByName("receiver", "Go"); got != goField {
		t.Errorf("ByName scoped to Go = %d, want %d", got, goField)
	}
	if got := reg.ByName("receiver", "Python"); got != pyField {
		t.Errorf("ByName scoped to Python = %d, want %d", got, pyField)
	}
	if got := reg.NextSibling(goField); got != pyField {
		t.Errorf("NextSibling = %d, want %d", got, pyField)
	}
	if got := reg.NextSibling(pyField); got != FieldUnknown {
		t.Errorf("chain should end, got %d", got)
	}
	if got := reg.Name(goField, true); got != FieldPrefix+"receiver" {
		t.Errorf("prefixed name = %q", got)
	}

	// Parser-field values render through the default renderer.
	entry := tags.Entry{Name: "m", ParserFields: []tags.ParserField{
		{Field: int(goField), Value: "*Engine"},
	}}
	v, err := en.RenderField(WriterCtags, goField, &entry, 0)
	if err != nil || v != "*Engine" {
		t.Errorf("RenderField = (%q, %v)", v, err)
	}

	if _, err := reg.Define(FieldDescriptor{Name: "bad name"}, "Go"); err == nil {
		t.Error("Define should reject non-alphanumeric names")
	}
}

func TestPseudoTagsHeader(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) {
		o.PseudoTags = true
		o.Sorted = config.Sorted
		o.OutputEncoding = "utf-8"
	})

	got := closeAndRead(t, en, path)
	for _, want := range []string{
		"!_TAG_FILE_FORMAT\t2\t",
		"!_TAG_FILE_SORTED\t1\t/0=unsorted, 1=sorted, 2=foldcase/",
		"!_TAG_PROGRAM_NAME\t" + ProgramName,
		"!_TAG_PROGRAM_VERSION\t" + ProgramVersion,
		"!_TAG_FILE_ENCODING\tutf-8\t",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("header missing %q:\n%s", want, got)
		}
	}
}

func TestRefuseToOverwriteNonTagFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := config.DefaultOptions()
	opts.TagFileName = path
	en := NewEngine(opts, nil)
	if err := en.OpenTagFile(); err == nil {
		en.CloseTagFile(false)
		t.Fatal("expected refusal to overwrite a non-tag file")
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "#!/bin/sh") {
		t.Error("refused file was modified")
	}
}

func TestOverwriteValidTagFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags")
	previous := "main\ta.c\t/^int main(void) {$/;\"\tf\n"
	if err := os.WriteFile(path, []byte(previous), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := config.DefaultOptions()
	opts.TagFileName = path
	opts.PseudoTags = false
	opts.Sorted = config.Unsorted
	en := NewEngine(opts, nil)
	if err := en.OpenTagFile(); err != nil {
		t.Fatalf("OpenTagFile() error = %v", err)
	}
	if err := en.CloseTagFile(false); err != nil {
		t.Fatalf("CloseTagFile() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Errorf("overwrite should truncate, got %q", data)
	}
}

func TestAppendRewritesSortedFlagInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags")
	previous := "!_TAG_FILE_FORMAT\t2\t/extended format/\n" +
		"!_TAG_FILE_SORTED\t0\t/0=unsorted, 1=sorted, 2=foldcase/\n" +
		"main\ta.c\t/^int main(void) {$/;\"\tf\n"
	if err := os.WriteFile(path, []byte(previous), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := config.DefaultOptions()
	opts.TagFileName = path
	opts.Append = true
	opts.Sorted = config.Sorted
	opts.PseudoTags = false

	en := NewEngine(opts, nil)
	if err := en.OpenTagFile(); err != nil {
		t.Fatalf("OpenTagFile() error = %v", err)
	}
	if en.PreviousTagCount() != 3 {
		t.Errorf("PreviousTagCount() = %d, want 3", en.PreviousTagCount())
	}

	f := inputFile("b.c", "C", "void helper(void) {}\n")
	en.SetInput(f)
	entry := tags.NewEntry("helper", testKind('f', "function"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	if err := en.CloseTagFile(true); err != nil {
		t.Fatalf("CloseTagFile() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	got := string(data)

	// The header keeps its byte length; only the one flag byte changes.
	prevLines := strings.SplitAfter(previous, "\n")
	gotLines := strings.SplitAfter(got, "\n")
	if gotLines[0] != prevLines[0] {
		t.Errorf("format pseudo-tag changed: %q", gotLines[0])
	}
	wantSorted := strings.Replace(prevLines[1],
		"!_TAG_FILE_SORTED\t0", "!_TAG_FILE_SORTED\t1", 1)
	if gotLines[1] != wantSorted {
		t.Errorf("sorted pseudo-tag = %q, want %q", gotLines[1], wantSorted)
	}
	if len(gotLines[1]) != len(prevLines[1]) {
		t.Error("flag rewrite changed the header line length")
	}
	if !strings.Contains(got, "main\ta.c\t") {
		t.Error("existing tag line lost")
	}
	if !strings.Contains(got, "helper\tb.c\t") {
		t.Error("appended tag line missing")
	}
}

func TestInternalSortOrdersTagsAndKeepsPseudoTagsFirst(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) {
		o.Sorted = config.Sorted
		o.PseudoTags = true
	})

	f := inputFile("x.go", "Go", "zebra\napple\n")
	en.SetInput(f)
	for i, name := range []string{"zebra", "apple"} {
		entry := tags.NewEntry(name, testKind('v', "variable"), f.Position(i+1))
		if _, err := en.Make(&entry); err != nil {
			t.Fatalf("Make(%s) error = %v", name, err)
		}
	}

	got := closeAndRead(t, en, path)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	sawTag := false
	appleAt, zebraAt := -1, -1
	for i, line := range lines {
		if strings.HasPrefix(line, "!_") {
			if sawTag {
				t.Errorf("pseudo-tag after real tag at line %d", i)
			}
			continue
		}
		sawTag = true
		if strings.HasPrefix(line, "apple\t") {
			appleAt = i
		}
		if strings.HasPrefix(line, "zebra\t") {
			zebraAt = i
		}
	}
	if appleAt == -1 || zebraAt == -1 || appleAt > zebraAt {
		t.Errorf("tags not sorted:\n%s", got)
	}
}

func TestEtagsOutput(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) { o.Etags = true })

	f := inputFile("a.c", "C", "int main(void) {\n  return 0;\n}\n")
	en.SetInput(f)
	if err := en.BeginEtagsFile(); err != nil {
		t.Fatalf("BeginEtagsFile() error = %v", err)
	}
	entry := tags.NewEntry("main", testKind('f', "function"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	if err := en.EndEtagsFile("a.c"); err != nil {
		t.Fatalf("EndEtagsFile() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	record := "int main(void) {\x7fmain\x011,0\n"
	want := fmt.Sprintf("\f\na.c,%d\n%s", len(record), record)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEtagsFileEntryAndIncludes(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) {
		o.Etags = true
		o.EtagsInclude = []string{"other/TAGS"}
	})

	f := inputFile("b.c", "C", "static int x;\n")
	en.SetInput(f)
	if err := en.BeginEtagsFile(); err != nil {
		t.Fatal(err)
	}
	entry := tags.NewEntry("b.c", testKind('F', "file"), f.Position(1))
	entry.IsFileEntry = true
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}
	if err := en.EndEtagsFile("b.c"); err != nil {
		t.Fatal(err)
	}

	got := closeAndRead(t, en, path)
	if !strings.Contains(got, "\x7fb.c\x011,0\n") {
		t.Errorf("file entry record missing: %q", got)
	}
	if !strings.Contains(got, "\f\nother/TAGS,include\n") {
		t.Errorf("include directive missing: %q", got)
	}
}

func TestXrefOutput(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) { o.Xref = true })

	f := inputFile("a.c", "C", "  int   main(void) {\n")
	en.SetInput(f)
	entry := tags.NewEntry("main", testKind('f', "function"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if !strings.HasPrefix(got, "main            ") {
		t.Errorf("name column not padded: %q", got)
	}
	if !strings.Contains(got, "function") {
		t.Errorf("kind column missing: %q", got)
	}
	if !strings.HasSuffix(got, "int main(void) {\n") {
		t.Errorf("compact line not compacted: %q", got)
	}
}

func TestXrefCustomFormat(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) {
		o.Xref = true
		o.CustomXfmt = "%N %{line} %K"
	})
	en.Fields().Enable(FieldLineNumber, true, false)

	f := inputFile("a.c", "C", "int main(void) {\n")
	en.SetInput(f)
	entry := tags.NewEntry("main", testKind('f', "function"), f.Position(1))
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	if got != "main 1 function\n" {
		t.Errorf("got %q", got)
	}
}

func TestJSONOutput(t *testing.T) {
	en, path := newTestEngine(t, func(o *config.Options) { o.JSON = true })

	f := inputFile("a.go", "Go", "func Run() {}\n")
	en.SetInput(f)
	entry := tags.NewEntry("Run", testKind('f', "func"), f.Position(1))
	entry.Ext.Signature = "()"
	if _, err := en.Make(&entry); err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	got := closeAndRead(t, en, path)
	for _, want := range []string{
		`"_type":"tag"`, `"name":"Run"`, `"path":"a.go"`,
		`"kind":"func"`, `"line":1`, `"language":"Go"`, `"signature":"()"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("JSON record missing %s: %s", want, got)
		}
	}
}

func TestCompactLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  int   main(void) {\n", "int main(void) {"},
		{"\t\tx = 1;\r\n", "x = 1;"},
		{"plain\n", "plain"},
		{"   \n", ""},
	}
	for _, tc := range cases {
		if got := compactLine(tc.in); got != tc.want {
			t.Errorf("compactLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncateTagLine(t *testing.T) {
	if got := truncateTagLine("struct point origin = {0};\n", "origin", false); got != "struct point origin " {
		t.Errorf("got %q", got)
	}
	if got := truncateTagLine("x\n", "x", true); got != "x" {
		t.Errorf("discardNewline: got %q", got)
	}
	if got := truncateTagLine("no match\n", "zzz", false); got != "no match\n" {
		t.Errorf("missing token: got %q", got)
	}
}
