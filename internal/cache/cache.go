// Package cache stores validated batch scores so repeated runs over the
// same digest and profile skip the scoring service.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// KeyPrefix namespaces score cache keys; bump the version when the cached
// payload changes shape
const KeyPrefix = "digestrank:v1:"

// Cache stores opaque values by key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Stats describes the contents of a persistent cache
type Stats struct {
	Entries int
	Expired int
	Bytes   int64
}

// CacheKey hashes the parts that identify a cached value
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return KeyPrefix + hex.EncodeToString(hash[:])
}

// New builds the layered memory+disk cache used by ranking runs
func New(dir string, memoryTTL, diskTTL time.Duration) Cache {
	return NewLayeredCache(NewMemoryCache(memoryTTL), NewDiskCache(dir, diskTTL))
}
