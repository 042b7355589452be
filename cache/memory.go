package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Memory is an in-process Cache backed by an LRU plus a tag index.
type Memory struct {
	mu      sync.Mutex
	entries *lru.Cache
	tags    map[string]map[string]struct{}
}

// NewMemory creates a Memory cache holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Memory{
		entries: entries,
		tags:    make(map[string]map[string]struct{}),
	}, nil
}

// Do implements Cache. The fill function runs outside the lock; concurrent
// misses for the same key may fill more than once, last write wins.
func (m *Memory) Do(ctx context.Context, key string, tags []string, fill Fill) ([]byte, bool, error) {
	m.mu.Lock()
	if v, ok := m.entries.Get(key); ok {
		m.mu.Unlock()
		return v.([]byte), true, nil
	}
	m.mu.Unlock()

	data, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	m.entries.Add(key, data)
	for _, tag := range tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	m.mu.Unlock()

	return data, false, nil
}

// Invalidate implements Cache.
func (m *Memory) Invalidate(ctx context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range tags {
		for key := range m.tags[tag] {
			m.entries.Remove(key)
		}
		delete(m.tags, tag)
	}
	return nil
}

// Len returns the number of live entries. Intended for tests and telemetry.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}
