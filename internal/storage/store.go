// Package storage keeps note attachments as opaque blobs on disk.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidName indicates a blob name that does not look like one we issued.
	ErrInvalidName = errors.New("storage: invalid blob name")
	// ErrNotFound indicates the blob does not exist.
	ErrNotFound = errors.New("storage: blob not found")

	errMissingDir = errors.New("storage: directory required")
)

// Store writes blobs under a single directory with generated names. Names
// are opaque to callers; the extension is kept so file servers can infer a
// content type.
type Store struct {
	dir string
}

// NewStore creates the backing directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errMissingDir
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	return &Store{dir: trimmed}, nil
}

// Put persists the bytes under a fresh name and returns it.
func (s *Store) Put(data []byte, extension string) (string, error) {
	ext := strings.TrimSpace(extension)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write blob: %w", err)
	}
	return name, nil
}

// Read returns the blob's bytes.
func (s *Store) Read(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Remove deletes the blob; removing a missing blob is a no-op.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path resolves a blob name to its on-disk path, rejecting anything that
// could escape the store directory.
func (s *Store) Path(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != filepath.Base(trimmed) || strings.HasPrefix(trimmed, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, trimmed), nil
}
