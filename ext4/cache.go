package ext4

import "fmt"

var (
	_ Cache[string, Inode] = &noCache[string, Inode]{}
)

// Cache keeps decoded inodes. Implementations shared between goroutines
// must be safe for concurrent use.
type Cache[K comparable, V any] interface {
	// Add cache data
	Add(key K, value V) bool

	// Get returns key's value from the cache
	Get(key K) (value V, ok bool)
}

type noCache[K comparable, V any] struct{}

func (c *noCache[K, V]) Add(_ K, _ V) bool {
	return false
}

func (c *noCache[K, V]) Get(_ K) (v V, ok bool) {
	return
}

func inodeCacheKey(n uint64) string {
	return fmt.Sprintf("ext4:%d", n)
}
