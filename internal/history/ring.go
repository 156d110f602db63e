package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultRingCapacity = 256

// RingStore keeps the last N turns in process memory for running without a
// database. Oldest turns fall off as new ones arrive.
type RingStore struct {
	mu    sync.RWMutex
	turns []Turn
	next  int
	full  bool
}

func NewRingStore(capacity int) *RingStore {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}
	return &RingStore{turns: make([]Turn, capacity)}
}

func (s *RingStore) SaveTurn(_ context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.turns[s.next] = turn
	s.next = (s.next + 1) % len(s.turns)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

func (s *RingStore) RecentTurns(_ context.Context, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.next
	if s.full {
		n = len(s.turns)
	}
	if n == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Turn, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.next + len(s.turns) - limit + i) % len(s.turns)
		out = append(out, s.turns[idx])
	}
	return out, nil
}

func (s *RingStore) Close() error { return nil }
