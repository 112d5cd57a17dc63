package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore persists uploaded dataset files on disk under a base
// directory and derives the public URL they are served at.
type ObjectStore struct {
	baseDir       string
	publicBaseURL string
}

// NewObjectStore ensures the base directory exists and returns a handle.
func NewObjectStore(baseDir, publicBaseURL string) (*ObjectStore, error) {
	if baseDir == "" {
		baseDir = "./data/objects"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create object store directory: %w", err)
	}
	return &ObjectStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Upload copies from reader into the object identified by key.
func (s *ObjectStore) Upload(key string, r io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare object directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create object file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write object stream: %w", err)
	}
	return key, nil
}

// Open returns a read-only handle for the stored object.
func (s *ObjectStore) Open(key string) (*os.File, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open object file: %w", err)
	}
	return file, nil
}

// Delete removes a stored object if present.
func (s *ObjectStore) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object file: %w", err)
	}
	return nil
}

// PublicURL returns the URL the object is downloadable at.
func (s *ObjectStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/files/%s", s.publicBaseURL, key)
}

// Dir exposes the base directory (mounted as the /files static root).
func (s *ObjectStore) Dir() string {
	return s.baseDir
}

func (s *ObjectStore) resolve(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	cleaned := filepath.Clean(key)
	if strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
