// Package keystore persists the deployment's API key across restarts.
// The key lives in a single file so a key accepted once (typed in or
// delivered via URL) survives until it is explicitly cleared.
package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the on-disk name of the key slot.
const FileName = "nexus_api_key"

// Store reads and writes the API key under a base directory.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on the
// first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, FileName)
}

// Load returns the stored key, or "" when no key has been saved.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read api key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save stores the key, replacing any previous one. The write goes through
// a temp file and rename so a crash never leaves a truncated key.
func (s *Store) Save(key string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("stage api key: %w", err)
	}
	if _, err := tmp.WriteString(key); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write api key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close api key: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

// Clear removes the stored key. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear api key: %w", err)
	}
	return nil
}
