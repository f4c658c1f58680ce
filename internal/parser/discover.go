package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is one discovered input. Err is set when the file could not be read;
// the caller records it as a per-file failure.
type File struct {
	Path string
	Text []byte
	Err  error
}

var skipDirs = map[string]bool{
	"__pycache__":   true,
	"venv":          true,
	".venv":         true,
	"node_modules":  true,
	"site-packages": true,
}

// Discover collects Python sources under root. root may also name a single
// file. include holds base-name glob patterns; empty means "*.py".
func Discover(root string, include []string) ([]File, error) {
	if len(include) == 0 {
		include = []string{"*.py"}
	}
	for _, pat := range include {
		if _, err := filepath.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("bad include pattern %q: %w", pat, err)
		}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	if !info.IsDir() {
		return []File{readFile(filepath.Clean(root))}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory entries become per-file failures.
			paths = append(paths, p)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if p != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return fs.SkipDir
			}
			return nil
		}
		if matchAny(include, name) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(paths)
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		files = append(files, readFile(p))
	}
	return files, nil
}

func matchAny(patterns []string, name string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

func readFile(p string) File {
	b, err := os.ReadFile(p)
	if err != nil {
		return File{Path: p, Err: fmt.Errorf("read %s: %w", p, err)}
	}
	return File{Path: p, Text: b}
}
