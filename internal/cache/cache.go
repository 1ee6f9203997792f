// Package cache keeps recent merge results keyed by a hash of their input.
// Merges are deterministic, so identical input and options always map to the
// same rows.
package cache

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// Cache is a bounded, concurrency-safe result cache. When full it is
// emptied before the next insert.
type Cache struct {
	entries *xsync.Map[uint64, *merge.Result]
	max     int
}

// New creates a cache holding at most size results. A non-positive size
// disables caching.
func New(size int) *Cache {
	return &Cache{entries: xsync.NewMap[uint64, *merge.Result](), max: size}
}

// Key hashes a canonical request body together with the options that affect
// the result.
func Key(body []byte, opts merge.Options) uint64 {
	loc := ""
	if opts.Location != nil {
		loc = opts.Location.String()
	}
	desc := fmt.Sprintf("%s|%d|%d|%s|%t|%s",
		opts.Target, opts.ChunkSize, opts.MaxFrequencySampleSize, opts.Completeness, opts.BareBaseKeys, loc)
	return xxh3.HashStringSeed(desc, xxh3.Hash(body))
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c.max > 0
}

// Get returns the cached result for key. Callers must not modify it.
func (c *Cache) Get(key uint64) (*merge.Result, bool) {
	if c.max <= 0 {
		return nil, false
	}
	return c.entries.Load(key)
}

// Put stores res under key.
func (c *Cache) Put(key uint64, res *merge.Result) {
	if c.max <= 0 {
		return
	}
	if c.entries.Size() >= c.max {
		c.entries.Clear()
	}
	c.entries.Store(key, res)
}

// Len reports the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Size()
}
