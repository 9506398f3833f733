package definition

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheReturnsSameDefinitionForUnchangedFile(t *testing.T) {
	path := writeDefinition(t, `
--- ENDPOINT ---
a.B/C

--- REQUEST ---
{}
`)

	cache := NewCache()
	first, err := cache.Load(path)
	require.NoError(t, err)
	second, err := cache.Load(path)
	require.NoError(t, err)

	assert.Same(t, first, second, "unchanged file must hit the cache")
	assert.Equal(t, 1, cache.Len())
}

func TestCacheInvalidatesOnModification(t *testing.T) {
	path := writeDefinition(t, `
--- ENDPOINT ---
a.B/C

--- REQUEST ---
{}
`)

	cache := NewCache()
	first, err := cache.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a.B/C", first.Endpoint)

	updated := `
--- ENDPOINT ---
d.E/F

--- REQUEST ---
{}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	// Push the modification time forward in case the rewrite lands within
	// the filesystem's timestamp granularity.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	second, err := cache.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "d.E/F", second.Endpoint)
	assert.NotSame(t, first, second)
}

func TestCacheMissingFile(t *testing.T) {
	cache := NewCache()
	_, err := cache.Load(filepath.Join(t.TempDir(), "absent.gct"))
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheParseErrorIsNotCached(t *testing.T) {
	path := writeDefinition(t, `
--- REQUEST ---
{}
`)

	cache := NewCache()
	_, err := cache.Load(path)
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}
