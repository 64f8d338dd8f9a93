// Package cache persists per-file inspection results between runs.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/anycop/internal/model"
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

// Entry is the cached outcome for one file.
type Entry struct {
	Size     int64           `msgpack:"size"`
	ModTime  int64           `msgpack:"mtime"`
	Offenses []model.Offense `msgpack:"offenses"`
}

type payload struct {
	Format  int              `msgpack:"format"`
	Version string           `msgpack:"version"`
	Files   map[string]Entry `msgpack:"files"`
}

// Cache maps repo-relative paths to results. It is safe for concurrent use.
// A nil *Cache is valid and never hits.
type Cache struct {
	path    string
	version string

	mu    sync.RWMutex
	files map[string]Entry
	dirty bool
}

// Open loads the cache at path. A missing, unreadable, or stale file gives
// an empty cache; only I/O errors other than not-exist are returned.
func Open(path, version string) (*Cache, error) {
	c := &Cache{path: path, version: version, files: make(map[string]Entry)}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	defer func() { _ = f.Close() }()

	var p payload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		// Corrupt caches are rebuilt.
		return c, nil
	}
	if p.Format != formatVersion || p.Version != version || p.Files == nil {
		return c, nil
	}
	c.files = p.Files
	return c, nil
}

// Get returns the cached offenses for rel if size and modTime still match.
func (c *Cache) Get(rel string, size int64, modTime time.Time) ([]model.Offense, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.files[rel]
	if !ok || e.Size != size || e.ModTime != modTime.UnixNano() {
		return nil, false
	}
	return e.Offenses, true
}

// Put records the result for rel.
func (c *Cache) Put(rel string, size int64, modTime time.Time, offenses []model.Offense) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.files[rel] = Entry{Size: size, ModTime: modTime.UnixNano(), Offenses: offenses}
	c.dirty = true
}

// Retain drops entries for paths not in keep.
func (c *Cache) Retain(keep map[string]struct{}) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for rel := range c.files {
		if _, ok := keep[rel]; !ok {
			delete(c.files, rel)
			c.dirty = true
		}
	}
}

// Save writes the cache if it changed since Open.
func (c *Cache) Save() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "anycop-cache-*")
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	enc := msgpack.NewEncoder(f)
	err = enc.Encode(&payload{Format: formatVersion, Version: c.version, Files: c.files})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	c.dirty = false
	return nil
}
