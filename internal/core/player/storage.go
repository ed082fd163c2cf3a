package player

import "sync"

// Storage holds a player's resource attributes ("Bit" and friends).
// Written by the tick goroutine and by player initialisation, so it locks.
type Storage struct {
	mu    sync.Mutex
	attrs map[string]int
}

func NewStorage() *Storage {
	return &Storage{attrs: make(map[string]int, 4)}
}

func (s *Storage) Get(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs[name]
}

func (s *Storage) Set(name string, value int) {
	s.mu.Lock()
	s.attrs[name] = value
	s.mu.Unlock()
}

// Add adjusts an attribute and returns the new value.
func (s *Storage) Add(name string, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[name] += delta
	return s.attrs[name]
}

// Take subtracts amount only if the attribute covers it.
func (s *Storage) Take(name string, amount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount < 0 || s.attrs[name] < amount {
		return false
	}
	s.attrs[name] -= amount
	return true
}

// Snapshot copies the current attributes.
func (s *Storage) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}
