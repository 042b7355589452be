// Package cache provides the read-through cache primitive consumed by the
// data layer, and two backends: an in-process LRU and Redis.
//
// Entries are tagged, typically with a collection name, so a write can purge
// every cached read for that collection without enumerating exact keys.
package cache

import "context"

// Fill computes the value for a key on a cache miss.
type Fill func(ctx context.Context) ([]byte, error)

// Cache is a read-through cache with tag-based bulk invalidation.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Do returns the cached value for key, or runs fill, stores the result
	// under key with the given tags, and returns it. hit reports whether
	// the value came from the cache.
	Do(ctx context.Context, key string, tags []string, fill Fill) (data []byte, hit bool, err error)

	// Invalidate removes every entry associated with any of the tags.
	Invalidate(ctx context.Context, tags ...string) error
}
