package window

import (
	"sync"
	"time"
)

// Timestamped is anything carrying its own creation time in epoch millis.
// The timestamp is used solely for eviction.
type Timestamped interface {
	When() int64
}

// Store holds a sequence of timestamped items and evicts the ones older than
// a horizon. Eviction and append are applied as one state transition under
// the lock so partial views are never observable.
//
// Concurrent overlapping refresh cycles are tolerated: every operation is an
// additive filtered-append, so ordering between cycles does not matter.
type Store[T Timestamped] struct {
	mu    sync.RWMutex
	items []T
	now   func() time.Time
}

// NewStore creates a store. A nil clock means time.Now.
func NewStore[T Timestamped](now func() time.Time) *Store[T] {
	if now == nil {
		now = time.Now
	}
	return &Store[T]{now: now}
}

// Refresh evicts items older than horizon, then appends the batch, as a
// single transition. A no-op on empty input is valid and never fails.
func (s *Store[T]) Refresh(horizon time.Duration, batch ...T) {
	nowMillis := s.now().UnixMilli()
	horizonMillis := horizon.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, item := range s.items {
		if age(nowMillis, item.When()) <= horizonMillis {
			kept = append(kept, item)
		}
	}
	s.items = append(kept, batch...)
}

// Evict removes items older than horizon without appending anything.
func (s *Store[T]) Evict(horizon time.Duration) {
	s.Refresh(horizon)
}

// Snapshot returns a copy of the retained items.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of retained items.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func age(nowMillis, ts int64) int64 {
	d := nowMillis - ts
	if d < 0 {
		d = -d
	}
	return d
}
