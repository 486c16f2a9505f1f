package jsonldb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File handles storage for a single collection persisted as a JSON array.
//
// File keeps no rows in memory and holds no lock. Concurrent saves to the same
// path race and the last rename wins.
type File[T any] struct {
	path string
}

// NewFile returns a File backed by path. The file is not touched until Load or
// Save.
func NewFile[T any](path string) *File[T] {
	return &File[T]{path: path}
}

// Path returns the backing file path.
func (f *File[T]) Path() string {
	return f.path
}

// Load reads and decodes the whole file.
//
// A missing file is an error. An empty array or a JSON null decode to an empty,
// non-nil slice.
func (f *File[T]) Load() ([]T, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read table file %s: %w", f.path, err)
	}
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows in %s: %w", f.path, err)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// Save encodes rows and replaces the file content.
func (f *File[T]) Save(rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rows for %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	writer := bufio.NewWriter(tmp)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close table file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}
