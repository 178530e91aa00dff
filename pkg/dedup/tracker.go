// Package dedup provides a bounded set of recently seen event keys.
//
// A Tracker suppresses repeated identical observations (for example the
// same file being reported as modified several times in a burst) while
// keeping memory bounded. When the set is full the oldest key is evicted
// to admit a new one.
package dedup

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the number of keys retained when no capacity is given.
const DefaultCapacity = 50

// Tracker is a fixed-capacity, insertion-ordered set of keys.
//
// Thread Safety: All methods are safe for concurrent use. The underlying
// cache serializes check-and-insert, so two goroutines adding the same key
// concurrently observe exactly one true result.
type Tracker struct {
	keys     *lru.Cache[string, struct{}]
	capacity int
}

// New creates a Tracker holding at most capacity keys.
// A capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only fails for a non-positive size.
	keys, _ := lru.New[string, struct{}](capacity)
	return &Tracker{keys: keys, capacity: capacity}
}

// Add records key and reports whether it was not already present.
//
// ContainsOrAdd never refreshes recency, so eviction follows insertion
// order: the oldest key leaves first.
func (t *Tracker) Add(key string) bool {
	found, _ := t.keys.ContainsOrAdd(key, struct{}{})
	return !found
}

// Contains reports whether key is currently tracked.
func (t *Tracker) Contains(key string) bool {
	return t.keys.Contains(key)
}

// Clear removes every key.
func (t *Tracker) Clear() {
	t.keys.Purge()
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	return t.keys.Len()
}

// Capacity returns the maximum number of tracked keys.
func (t *Tracker) Capacity() int {
	return t.capacity
}
