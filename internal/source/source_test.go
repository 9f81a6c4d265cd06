package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromBytesLineIndex(t *testing.T) {
	f := FromBytes("x.txt", "Text", []byte("one\ntwo\nthree\n"))

	if f.LineCount() != 3 {
		t.Errorf("LineCount() = %d, want 3", f.LineCount())
	}
	if off := f.LineOffset(1); off != 0 {
		t.Errorf("LineOffset(1) = %d", off)
	}
	if off := f.LineOffset(2); off != 4 {
		t.Errorf("LineOffset(2) = %d", off)
	}
	if off := f.LineOffset(3); off != 8 {
		t.Errorf("LineOffset(3) = %d", off)
	}
	if off := f.LineOffset(4); off != -1 {
		t.Errorf("LineOffset(4) = %d, want -1", off)
	}
	if off := f.LineOffset(0); off != -1 {
		t.Errorf("LineOffset(0) = %d, want -1", off)
	}
}

func TestReadLineAt(t *testing.T) {
	f := FromBytes("x.txt", "Text", []byte("one\ntwo\nlast"))

	line, err := f.ReadLineAt(4)
	if err != nil {
		t.Fatalf("ReadLineAt(4) error = %v", err)
	}
	if line != "two\n" {
		t.Errorf("got %q, want line with terminator", line)
	}

	line, err = f.ReadLineAt(8)
	if err != nil {
		t.Fatalf("ReadLineAt(8) error = %v", err)
	}
	if line != "last" {
		t.Errorf("got %q, unterminated final line", line)
	}

	if _, err := f.ReadLineAt(99); err == nil {
		t.Error("out-of-range offset should fail")
	}
}

func TestPosition(t *testing.T) {
	f := FromBytes("x.go", "Go", []byte("package x\nfunc f() {}\n"))
	pos := f.Position(2)
	if pos.File != "x.go" || pos.Language != "Go" ||
		pos.Line != 2 || pos.Offset != 10 {
		t.Errorf("Position(2) = %+v", pos)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("package a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path, "Go")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if f.Name() != path || f.Language() != "Go" {
		t.Errorf("metadata = %q, %q", f.Name(), f.Language())
	}
	line, err := f.Line(1)
	if err != nil || line != "package a\n" {
		t.Errorf("Line(1) = (%q, %v)", line, err)
	}

	if _, err := Open(filepath.Join(dir, "missing.go"), "Go"); err == nil {
		t.Error("Open of missing file should fail")
	}
}

func TestAllowNullTags(t *testing.T) {
	f := FromBytes("x", "X", nil)
	if f.AllowsNullTags() {
		t.Error("default should be false")
	}
	f.SetAllowNullTags(true)
	if !f.AllowsNullTags() {
		t.Error("flag not recorded")
	}
}
