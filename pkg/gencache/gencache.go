// Package gencache defines the TTL key/value store used for server
// affinity, negative-result caching and the name cache, plus a default
// in-memory implementation.
package gencache

import (
	"time"

	"github.com/bluele/gcache"
)

// DefaultSize is the entry limit of the default in-memory store.
const DefaultSize = 4096

// A Store is a TTL-expiring key/value cache. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the value and its expiry, or ok=false on a miss.
	Get(key string) (value string, expire time.Time, ok bool)
	// Set stores value under key until expire. A zero expire means
	// the entry does not expire.
	Set(key, value string, expire time.Time)
	// Delete removes key if present.
	Delete(key string)
}

var _ Store = (*MemStore)(nil)

type entry struct {
	value  string
	expire time.Time
}

// MemStore is the default in-memory [Store].
type MemStore struct {
	c gcache.Cache
}

// NewMemStore creates a [MemStore] holding up to size entries,
// or [DefaultSize] if size is zero.
func NewMemStore(size int) *MemStore {
	if size <= 0 {
		size = DefaultSize
	}

	return &MemStore{
		c: gcache.New(size).ARC().Build(),
	}
}

// Get implements the [Store] interface.
func (m *MemStore) Get(key string) (string, time.Time, bool) {
	v, err := m.c.GetIFPresent(key)
	if err != nil {
		return "", time.Time{}, false
	}

	e, ok := v.(entry)
	if !ok {
		return "", time.Time{}, false
	}

	if !e.expire.IsZero() && time.Now().After(e.expire) {
		m.c.Remove(key)
		return "", time.Time{}, false
	}

	return e.value, e.expire, true
}

// Set implements the [Store] interface.
func (m *MemStore) Set(key, value string, expire time.Time) {
	e := entry{value: value, expire: expire}

	if expire.IsZero() {
		_ = m.c.Set(key, e)
		return
	}

	_ = m.c.SetWithExpire(key, e, time.Until(expire))
}

// Delete implements the [Store] interface.
func (m *MemStore) Delete(key string) {
	m.c.Remove(key)
}
