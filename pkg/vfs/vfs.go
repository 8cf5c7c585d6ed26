// Package vfs abstracts the host filesystem access INCLUDE, INCBIN and the
// save-directive emitters need, so the assembler can run against either the
// real filesystem or an in-memory fixture for tests.
package vfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FS is the minimal filesystem surface the assembler depends on.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Resolve(base, include string) string
}

// OSFS implements FS directly against the operating system, optionally
// with an include-search path list (the including file's own directory is
// checked first, then each search path in order).
type OSFS struct {
	SearchPaths []string
}

func (fs OSFS) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vfs: reading %s: %w", path, err)
	}
	return data, nil
}

func (fs OSFS) WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("vfs: creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("vfs: writing %s: %w", path, err)
	}
	return nil
}

// Resolve finds include relative to base's directory first, then each
// configured search path, returning the first candidate that exists.
func (fs OSFS) Resolve(base, include string) string {
	if filepath.IsAbs(include) {
		return include
	}
	candidates := []string{filepath.Join(filepath.Dir(base), include)}
	for _, sp := range fs.SearchPaths {
		candidates = append(candidates, filepath.Join(sp, include))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}

// MemFS is an in-memory FS, useful for tests and embedding a project's
// sources without touching disk.
type MemFS struct {
	Files map[string][]byte
}

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{Files: make(map[string][]byte)}
}

func (fs *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := fs.Files[path]
	if !ok {
		return nil, fmt.Errorf("vfs: %s not found", path)
	}
	return data, nil
}

func (fs *MemFS) WriteFile(path string, data []byte) error {
	fs.Files[path] = append([]byte(nil), data...)
	return nil
}

// Resolve joins base's directory with include unless include is already
// rooted; MemFS paths are virtual, so this is plain string manipulation.
func (fs *MemFS) Resolve(base, include string) string {
	if filepath.IsAbs(include) || include[0] == '/' {
		return include
	}
	dir := filepath.Dir(base)
	if dir == "." {
		return include
	}
	return dir + "/" + include
}

// ReadAll is a convenience for callers that have an io.Reader instead of a
// path (e.g. piping INCBIN data through a pipeline stage).
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vfs: read: %w", err)
	}
	return data, nil
}
