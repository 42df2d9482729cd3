// internal/history/store.go
package history

import (
	"sync"

	"whatsapp-relay/internal/metrics"
	"whatsapp-relay/internal/model"
)

const DefaultCapacity = 100

// Store keeps the most recent inbound messages, newest first. Records live
// in a ring so Append never shifts the backlog.
type Store struct {
	mu       sync.RWMutex
	capacity int
	ring     []model.Message
	head     int // next slot to write
}

func New(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		ring:     make([]model.Message, 0, capacity),
	}
}

// Append adds m as the newest record, overwriting the oldest one once the
// store is full.
func (s *Store) Append(m model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ring) < s.capacity {
		s.ring = append(s.ring, m)
	} else {
		s.ring[s.head] = m
	}
	s.head = (s.head + 1) % s.capacity

	metrics.HistorySize.Set(float64(len(s.ring)))
}

// List returns a snapshot of the stored messages, newest first, and their count.
func (s *Store) List() ([]model.Message, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.ring)
	out := make([]model.Message, n)
	for i := range out {
		out[i] = s.ring[(s.head-1-i+2*s.capacity)%s.capacity]
	}
	return out, n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ring)
}

func (s *Store) Cap() int { return s.capacity }
