package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("openai", "gpt-4o-mini", "profile", "https://arxiv.org/abs/2401.00001")
	b := CacheKey("openai", "gpt-4o-mini", "profile", "https://arxiv.org/abs/2401.00001")
	c := CacheKey("openai", "gpt-4o", "profile", "https://arxiv.org/abs/2401.00001")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, KeyPrefix)

	// Joining must not make different part boundaries collide
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("[7,8]"), 0))
	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("[7,8]"), val)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	value := []byte("[1]")

	require.NoError(t, c.Set("k", value, 0))
	value[1] = '9'

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("[1]"), got)

	got[1] = '5'
	again, _ := c.Get("k")
	assert.Equal(t, []byte("[1]"), again)
}

func TestDiskCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := CacheKey("x")

	require.NoError(t, c.Set(key, []byte("[1,2,3]"), 0))
	val, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("[1,2,3]"), val)

	// Sharded by the first two hash characters
	_, err := os.Stat(c.path(key))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, key[len(KeyPrefix):len(KeyPrefix)+2]), filepath.Dir(c.path(key)))
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	key := CacheKey("x")

	require.NoError(t, c.Set(key, []byte("[4]"), -time.Second))
	_, ok := c.Get(key)
	assert.False(t, ok, "expired entry should miss")

	_, err := os.Stat(c.path(key))
	assert.True(t, os.IsNotExist(err), "expired entry should be removed")
}

func TestDiskCache_DeleteMissing(t *testing.T) {
	c := NewDiskCache(filepath.Join(t.TempDir(), "nested"), time.Hour)
	assert.NoError(t, c.Delete(CacheKey("never-set")))
}

func TestDiskCache_StatsAndPrune(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, c.Set(CacheKey("live"), []byte("[1]"), 0))
	require.NoError(t, c.Set(CacheKey("stale"), []byte("[2]"), time.Minute))

	corrupt := filepath.Join(dir, "zz", "broken.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(corrupt), 0o755))
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	// Move the clock past the short entry's expiry
	c.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 2, stats.Expired)
	assert.Positive(t, stats.Bytes)

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := c.Get(CacheKey("live"))
	assert.True(t, ok)
}

func TestDiskCache_StatsOnMissingDir(t *testing.T) {
	c := NewDiskCache(filepath.Join(t.TempDir(), "absent"), time.Hour)

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	dir := t.TempDir()
	key := CacheKey("batch")

	disk := NewDiskCache(dir, time.Hour)
	require.NoError(t, disk.Set(key, []byte("[9]"), 0))

	layered := NewLayeredCache(NewMemoryCache(time.Minute), disk)
	val, ok := layered.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("[9]"), val)

	// Served from memory even after the disk copy is gone
	require.NoError(t, disk.Delete(key))
	val, ok = layered.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("[9]"), val)
}

func TestLayeredCache_Clear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := New(dir, time.Minute, time.Hour)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())

	_, ok := c.Get("a")
	assert.False(t, ok)
}
