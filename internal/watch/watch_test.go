package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"tagsmith/internal/config"
	"tagsmith/internal/logging"
)

func TestRelevantEventFiltering(t *testing.T) {
	opts := config.DefaultOptions()
	w := New(opts, logging.Discard(), nil)

	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"go file write", fsnotify.Event{Name: "a.go", Op: fsnotify.Write}, true},
		{"python create", fsnotify.Event{Name: "b.py", Op: fsnotify.Create}, true},
		{"unsupported extension", fsnotify.Event{Name: "c.md", Op: fsnotify.Write}, false},
		{"dotfile", fsnotify.Event{Name: ".a.go.swp", Op: fsnotify.Write}, false},
		{"tag file itself", fsnotify.Event{Name: "tags", Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: "a.go", Op: fsnotify.Chmod}, false},
	}
	for _, tc := range cases {
		if got := w.relevant(tc.ev); got != tc.want {
			t.Errorf("%s: relevant() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRunInitialGeneration(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"),
		[]byte("package a\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := config.DefaultOptions()
	opts.TagFileName = filepath.Join(root, "tags")
	opts.Recurse = true

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	w := New(opts, logging.Discard(), []string{root})
	err := w.Run(ctx)
	if err != context.DeadlineExceeded && err != context.Canceled {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := os.Stat(opts.TagFileName); err != nil {
		t.Errorf("initial generation did not write the tag file: %v", err)
	}
}
