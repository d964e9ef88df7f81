package cache

import "sync"

// Store is an insertion-ordered map that owns its values.
//
// Iteration, Find and Clear visit entries oldest first, so releasing a
// store's values happens in the order they were created. Values are never
// evicted; they leave the store only through Delete or Clear.
//
// Store is safe for concurrent use. Callbacks passed to Range, Find and
// Clear run without the lock held and may call back into the store.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*storeEntry[K, V]
	order   orderList[K]
	hits    uint64
	misses  uint64
}

type storeEntry[K comparable, V any] struct {
	value V
	node  *orderNode[K]
}

// New creates an empty store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		entries: make(map[K]*storeEntry[K, V]),
	}
}

// Get returns the value stored under key.
// Returns (value, true) if found, (zero, false) otherwise.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		var zero V
		return zero, false
	}
	s.hits++
	return e.value, true
}

// Has reports whether key is present without touching the hit counters.
func (s *Store[K, V]) Has(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	return ok
}

// Put stores value under key. Replacing an existing value keeps the
// entry's position in the insertion order.
func (s *Store[K, V]) Put(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.value = value
		return
	}
	s.entries[key] = &storeEntry[K, V]{
		value: value,
		node:  s.order.PushBack(key),
	}
}

// Delete removes key and returns the value it held.
func (s *Store[K, V]) Delete(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	s.order.Remove(e.node)
	delete(s.entries, key)
	return e.value, true
}

// snapshot returns the entries oldest first.
func (s *Store[K, V]) snapshot() ([]K, []V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.order.Keys()
	values := make([]V, len(keys))
	for i, k := range keys {
		values[i] = s.entries[k].value
	}
	return keys, values
}

// Range calls fn for each entry oldest first until fn returns false.
// Entries added or removed during the walk are not reflected.
func (s *Store[K, V]) Range(fn func(key K, value V) bool) {
	keys, values := s.snapshot()
	for i := range keys {
		if !fn(keys[i], values[i]) {
			return
		}
	}
}

// Find returns the oldest entry for which match returns true.
func (s *Store[K, V]) Find(match func(key K, value V) bool) (K, V, bool) {
	keys, values := s.snapshot()
	for i := range keys {
		if match(keys[i], values[i]) {
			return keys[i], values[i], true
		}
	}
	var (
		zk K
		zv V
	)
	return zk, zv, false
}

// Len returns the number of entries.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Clear empties the store and then hands every former entry to release,
// oldest first. A nil release just drops the values.
func (s *Store[K, V]) Clear(release func(key K, value V)) {
	keys, values := s.snapshot()

	s.mu.Lock()
	s.entries = make(map[K]*storeEntry[K, V])
	s.order.Clear()
	s.mu.Unlock()

	if release == nil {
		return
	}
	for i := range keys {
		release(keys[i], values[i])
	}
}

// Stats returns store statistics.
func (s *Store[K, V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Len:    len(s.entries),
		Hits:   s.hits,
		Misses: s.misses,
	}
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}

// ResetStats zeroes the hit and miss counters.
func (s *Store[K, V]) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits = 0
	s.misses = 0
}

// Stats contains store statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Hits is the number of successful Get calls.
	Hits uint64
	// Misses is the number of Get calls that found nothing.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0.0 to 1.0.
	HitRate float64
}
