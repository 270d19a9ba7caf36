// Package timedmap implements the fixed-capacity, per-entry-TTL associative
// container used for the ARP table, the ARP pending-buffer queue, and the
// UDP port table. Eviction is opportunistic: expired entries are dropped
// lazily on access rather than by a background sweep, matching the single
// threaded, run-to-completion model of the rest of the stack.
package timedmap

import "time"

// CopyFn deep-copies a value on insertion, for maps whose values own
// resources that must not alias the caller (the ARP pending buffer stores
// *buf.Buffer this way).
type CopyFn[V any] func(V) V

type entry[V any] struct {
	value    V
	inserted time.Time
}

// Map is a fixed-capacity, optionally-TTL'd key-value container. The zero
// value is not usable; construct with New. A Map is not safe for concurrent
// use.
type Map[K comparable, V any] struct {
	entries map[K]entry[V]
	max     int
	ttl     time.Duration
	copy    CopyFn[V]
	now     func() time.Time
}

// New constructs a Map. max bounds the entry count (0 = unbounded, and a
// Set beyond the bound is refused). ttl bounds entry lifetime (0 = entries
// never expire). copyFn, if non-nil, is applied to every value on Set so
// the map owns an independent copy.
func New[K comparable, V any](max int, ttl time.Duration, copyFn CopyFn[V]) *Map[K, V] {
	return &Map[K, V]{
		entries: make(map[K]entry[V]),
		max:     max,
		ttl:     ttl,
		copy:    copyFn,
		now:     time.Now,
	}
}

// Set inserts or overwrites the entry for k, refreshing its timestamp.
// Reports false if the map is at capacity and k is not already present.
func (m *Map[K, V]) Set(k K, v V) bool {
	m.evictKey(k)
	if _, ok := m.entries[k]; !ok && m.max > 0 && len(m.entries) >= m.max {
		return false
	}
	if m.copy != nil {
		v = m.copy(v)
	}
	m.entries[k] = entry[V]{value: v, inserted: m.now()}
	return true
}

// Get returns the stored value for k and whether it was present and
// unexpired. Accessing an expired entry evicts it as a side effect.
func (m *Map[K, V]) Get(k K) (V, bool) {
	m.evictKey(k)
	e, ok := m.entries[k]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether k has a live entry, without returning the value.
func (m *Map[K, V]) Has(k K) bool {
	m.evictKey(k)
	_, ok := m.entries[k]
	return ok
}

// Delete removes the entry for k, if any.
func (m *Map[K, V]) Delete(k K) {
	delete(m.entries, k)
}

// ForEach calls fn for every live entry, evicting expired entries
// encountered along the way.
func (m *Map[K, V]) ForEach(fn func(K, V)) {
	expired := m.expiredKeys()
	for _, k := range expired {
		delete(m.entries, k)
	}
	for k, e := range m.entries {
		fn(k, e.value)
	}
}

// Len returns the number of live entries, after evicting expired ones.
func (m *Map[K, V]) Len() int {
	for _, k := range m.expiredKeys() {
		delete(m.entries, k)
	}
	return len(m.entries)
}

// withClock overrides the time source, for deterministic TTL tests.
func (m *Map[K, V]) withClock(now func() time.Time) *Map[K, V] {
	m.now = now
	return m
}

func (m *Map[K, V]) evictKey(k K) {
	if m.ttl <= 0 {
		return
	}
	if e, ok := m.entries[k]; ok && m.now().Sub(e.inserted) >= m.ttl {
		delete(m.entries, k)
	}
}

func (m *Map[K, V]) expiredKeys() []K {
	if m.ttl <= 0 {
		return nil
	}
	now := m.now()
	var expired []K
	for k, e := range m.entries {
		if now.Sub(e.inserted) >= m.ttl {
			expired = append(expired, k)
		}
	}
	return expired
}
