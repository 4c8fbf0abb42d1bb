// Package files provides file access for framework components over an afero filesystem.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// File modes used by the framework.
const (
	// Runtime files are written by the application and must stay writable by it.
	Runtime os.FileMode = 0o666
	// ReadOnly files are not expected to change after being written.
	ReadOnly os.FileMode = 0o644

	dirMode os.FileMode = 0o777
)

// ErrNotFound is returned when a requested file does not exist.
var ErrNotFound = errors.New("file not found")

// Manager reads and writes files.
type Manager struct {
	fs afero.Fs
}

// New creates a manager over fs. A nil fs uses the OS filesystem.
func New(fs afero.Fs) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{fs: fs}
}

// NewMemory creates a manager over an in-memory filesystem.
func NewMemory() *Manager {
	return New(afero.NewMemMapFs())
}

// Fs exposes the underlying filesystem.
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// Read returns the content of filename.
func (m *Manager) Read(filename string) ([]byte, error) {
	data, err := afero.ReadFile(m.fs, filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return data, nil
}

// Write replaces the content of filename, creating parent directories when ensureDir is set.
func (m *Manager) Write(filename string, data []byte, mode os.FileMode, ensureDir bool) error {
	if ensureDir {
		if err := m.EnsureDir(filepath.Dir(filename)); err != nil {
			return err
		}
	}
	if err := afero.WriteFile(m.fs, filename, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return m.fs.Chmod(filename, mode)
}

// Append adds data to the end of filename, creating it when missing.
func (m *Manager) Append(filename string, data []byte, mode os.FileMode, ensureDir bool) error {
	if ensureDir {
		if err := m.EnsureDir(filepath.Dir(filename)); err != nil {
			return err
		}
	}
	f, err := m.fs.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append %s: %w", filename, err)
	}
	return nil
}

// Exists reports whether filename exists.
func (m *Manager) Exists(filename string) bool {
	ok, err := afero.Exists(m.fs, filename)
	return err == nil && ok
}

// IsDir reports whether path exists and is a directory.
func (m *Manager) IsDir(path string) bool {
	ok, err := afero.IsDir(m.fs, path)
	return err == nil && ok
}

// Time returns the modification time of filename.
func (m *Manager) Time(filename string) (time.Time, error) {
	info, err := m.stat(filename)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Size returns the size of filename in bytes.
func (m *Manager) Size(filename string) (int64, error) {
	info, err := m.stat(filename)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (m *Manager) stat(filename string) (os.FileInfo, error) {
	info, err := m.fs.Stat(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, err
	}
	return info, nil
}

// Delete removes filename. Missing files are not an error.
func (m *Manager) Delete(filename string) error {
	if err := m.fs.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	return nil
}

// Touch sets the modification time of filename, creating an empty file when missing.
func (m *Manager) Touch(filename string, at time.Time) error {
	if !m.Exists(filename) {
		if err := m.Write(filename, nil, Runtime, true); err != nil {
			return err
		}
	}
	return m.fs.Chtimes(filename, at, at)
}

// EnsureDir creates directory and its parents.
func (m *Manager) EnsureDir(directory string) error {
	if directory == "" || directory == "." {
		return nil
	}
	if err := m.fs.MkdirAll(directory, dirMode); err != nil {
		return fmt.Errorf("ensure directory %s: %w", directory, err)
	}
	return nil
}

// GetFiles lists regular files under directory recursively, optionally filtered by
// extension (without the dot). Results are sorted.
func (m *Manager) GetFiles(directory, extension string) ([]string, error) {
	if !m.IsDir(directory) {
		return nil, nil
	}

	var out []string
	err := afero.Walk(m.fs, directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if extension != "" && Extension(path) != extension {
			return nil
		}
		out = append(out, m.NormalizePath(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", directory, err)
	}
	sort.Strings(out)
	return out, nil
}

// Extension returns the lower-cased extension of filename without the leading dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// NormalizePath converts separators to forward slashes and removes duplicate ones.
func (m *Manager) NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

// RelativePath expresses path relative to the from directory. Paths outside from are
// returned normalized but unchanged.
func (m *Manager) RelativePath(path, from string) string {
	path = m.NormalizePath(path)
	from = strings.TrimSuffix(m.NormalizePath(from), "/")

	rel, err := filepath.Rel(from, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
