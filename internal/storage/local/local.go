// Package local stores avatars on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/utafrali/accounts/internal/storage"
)

// Store deletes files under a root directory. Keys are slash separated paths
// relative to the root and may never resolve outside it.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a Store rooted there.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("avatar root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve avatar root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

// Delete removes the file stored under key. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) resolve(key string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(key), `\`, "/")
	normalized = strings.TrimPrefix(normalized, "/")
	if normalized == "" {
		return "", fmt.Errorf("%w: empty key", storage.ErrInvalidKey)
	}
	for _, c := range normalized {
		if unicode.IsControl(c) {
			return "", fmt.Errorf("%w: control character in %q", storage.ErrInvalidKey, key)
		}
	}
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: path traversal in %q", storage.ErrInvalidKey, key)
		}
	}

	clean := filepath.Clean(filepath.FromSlash(normalized))
	if clean == "." {
		return "", fmt.Errorf("%w: %q names the root", storage.ErrInvalidKey, key)
	}

	resolved := filepath.Join(s.root, clean)
	if !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q resolves outside the root", storage.ErrInvalidKey, key)
	}
	return resolved, nil
}
