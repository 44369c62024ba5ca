package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalHost writes renditions under a directory that the HTTP backend
// serves at publicBase. The platforms fetch them from there, so publicBase
// must be reachable from the internet when publishing for real.
type LocalHost struct {
	dir        string
	publicBase string
	now        func() time.Time
}

// NewLocalHost creates dir if needed.
func NewLocalHost(dir, publicBase string) (*LocalHost, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("local host: create dir: %w", err)
	}
	return &LocalHost{
		dir:        dir,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}, nil
}

// Dir is the root directory files are written under.
func (h *LocalHost) Dir() string {
	return h.dir
}

// Put writes data at key and returns its public URL with a cache-busting
// version parameter.
func (h *LocalHost) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	path, err := h.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("local host: create dir for %q: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("local host: write %q: %w", key, err)
	}
	return fmt.Sprintf("%s/%s?v=%d", h.publicBase, filepath.ToSlash(key), h.now().Unix()), nil
}

// Delete removes key and any directories it leaves empty. Missing files
// are not an error.
func (h *LocalHost) Delete(_ context.Context, key string) error {
	path, err := h.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local host: delete %q: %w", key, err)
	}

	root := filepath.Clean(h.dir)
	for dir := filepath.Dir(path); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Sweep removes tm-* run directories older than maxAge, left behind by a
// process that exited before cleaning up. It returns how many it removed.
func (h *LocalHost) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return 0, fmt.Errorf("local host: read dir: %w", err)
	}
	cutoff := h.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "tm-") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(h.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("local host: sweep %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (h *LocalHost) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("local host: invalid key %q", key)
	}
	return filepath.Join(h.dir, clean), nil
}
