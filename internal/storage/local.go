package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects on disk under dir and serves them from baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir when missing.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory, for serving files statically.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload writes data to <hash[:2]>/<hash><ext>.
func (s *LocalStore) Upload(_ context.Context, data []byte, _ string) (string, error) {
	hash := contentHash(data)
	rel := filepath.ToSlash(filepath.Join(hash[:2], hash+Extension(data)))
	abs := filepath.Join(s.dir, filepath.FromSlash(rel))

	if _, err := os.Stat(abs); err == nil {
		return s.baseURL + "/" + rel, nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", err
	}
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return s.baseURL + "/" + rel, nil
}

// Delete removes the file behind url. A missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, url string) error {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return ErrForeignURL
	}
	rel := strings.TrimPrefix(url, prefix)
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return ErrForeignURL
	}
	if err := os.Remove(filepath.Join(s.dir, clean)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
