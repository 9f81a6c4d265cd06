// Package walker discovers the source files to scan, honoring
// .gitignore rules and user-supplied exclude patterns.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Options configures a walk.
type Options struct {
	// Recurse descends into directories named in the path arguments.
	Recurse bool

	// Exclude lists glob patterns matched against base names and
	// repo-relative paths, checked before .gitignore.
	Exclude []string
}

// Walk resolves the path arguments to the list of candidate files, in
// deterministic order. Directories are descended only when Recurse is
// set; a .gitignore at a directory root filters everything below it.
func Walk(paths []string, opts Options) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		if !opts.Recurse {
			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}
			for _, entry := range entries {
				if entry.IsDir() || excluded(entry.Name(), opts.Exclude) {
					continue
				}
				files = append(files, filepath.Join(path, entry.Name()))
			}
			continue
		}
		found, err := walkDir(path, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func walkDir(root string, opts Options) ([]string, error) {
	matcher := loadGitignore(root)

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") ||
				excluded(d.Name(), opts.Exclude) ||
				(matcher != nil && matcher.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if excluded(d.Name(), opts.Exclude) || excluded(rel, opts.Exclude) {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// loadGitignore compiles the .gitignore at root, if any.
func loadGitignore(root string) *ignore.GitIgnore {
	matcher, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return matcher
}

func excluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
