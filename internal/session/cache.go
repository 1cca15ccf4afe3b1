package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const cacheFileName = "last_recording"

// FileCache stores the last persisted recording id in a small file so a
// restarted client can offer to restore the session.
type FileCache struct {
	path string
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &FileCache{path: filepath.Join(dir, cacheFileName)}, nil
}

func (c *FileCache) Put(id string) error {
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Get returns the cached id, or "" when nothing is cached.
func (c *FileCache) Get() (string, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cache file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Clear is idempotent; a missing cache file is not an error.
func (c *FileCache) Clear() error {
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
