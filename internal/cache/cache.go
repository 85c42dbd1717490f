package cache

// A small LRU wrapper used to memoize per-module render output across
// repeated renders of the same link result (watch-mode rebuilds hit this a
// lot). Correctness never depends on a hit: a miss just renders again.

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

type Cache[V any] struct {
	inner *lru.Cache[uint64, V]
}

func New[V any](size int) (*Cache[V], error) {
	inner, err := lru.New[uint64, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{inner: inner}, nil
}

func (c *Cache[V]) Get(key uint64) (V, bool) {
	return c.inner.Get(key)
}

func (c *Cache[V]) Add(key uint64, value V) {
	c.inner.Add(key, value)
}

// Key hashes the given parts into one cache key. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") never collide.
func Key(parts ...string) uint64 {
	d := xxhash.New()
	var lengthPrefix [8]byte
	for _, part := range parts {
		n := len(part)
		for i := 0; i < 8; i++ {
			lengthPrefix[i] = byte(n >> (8 * i))
		}
		d.Write(lengthPrefix[:])
		d.WriteString(part)
	}
	return d.Sum64()
}
