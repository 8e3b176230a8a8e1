package ibus

import "sync"

// Store is a single-slot, overwrite-on-write cell holding the last observed
// engine identifier. The listener is the sole writer; the block (and anyone
// it hands the store to) reads on demand. Readers always see a fully-written
// value, and the lock is only ever held for a copy, never across I/O.
type Store struct {
	mu       sync.RWMutex
	engine   string
	degraded bool
}

// NewStore creates a store seeded with the given engine identifier.
func NewStore(engine string) *Store {
	return &Store{engine: engine}
}

// Set replaces the stored engine identifier.
func (s *Store) Set(engine string) {
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()
}

// SetDegraded marks whether the listener currently has a live bus
// connection behind the value. The engine identifier itself is kept, so a
// reader still gets the last known value while degraded.
func (s *Store) SetDegraded(degraded bool) {
	s.mu.Lock()
	s.degraded = degraded
	s.mu.Unlock()
}

// Snapshot returns the current engine identifier and degraded flag.
func (s *Store) Snapshot() (engine string, degraded bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, s.degraded
}
