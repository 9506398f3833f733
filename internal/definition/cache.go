package definition

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"grpcheck/pkg/logging"
)

// Cache memoizes parsed definitions keyed by absolute path and modification
// time. Modifying a file invalidates its entry automatically. Safe for
// concurrent use: writes for a given key are idempotent, so parallel workers
// at worst parse the same file twice.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	modTime time.Time
	def     *TestDefinition
}

// NewCache returns an empty parsed-definition cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Load returns the parsed definition for path, parsing it only when the
// cache has no entry for the file's current modification time.
func (c *Cache) Load(path string) (*TestDefinition, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}

	c.mu.RLock()
	entry, ok := c.entries[abs]
	c.mu.RUnlock()
	if ok && entry.modTime.Equal(info.ModTime()) {
		logging.Debug("Parser", "cache hit for %s", abs)
		return entry.def, nil
	}

	def, err := Parse(abs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[abs] = cacheEntry{modTime: info.ModTime(), def: def}
	c.mu.Unlock()

	return def, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
