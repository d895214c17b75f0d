package window

import (
	"sync"
	"time"
)

// LabelStore is a time-window store for labels with uniqueness by text: a
// newly inserted label whose sanitized text matches a retained one replaces
// it (last-write-wins). Under overlapping refresh cycles the winner of a
// duplicate race follows arrival order, an accepted inconsistency.
type LabelStore struct {
	mu     sync.RWMutex
	labels []Label
	now    func() time.Time
}

// NewLabelStore creates a label store. A nil clock means time.Now.
func NewLabelStore(now func() time.Time) *LabelStore {
	if now == nil {
		now = time.Now
	}
	return &LabelStore{now: now}
}

// Refresh evicts labels older than horizon, filters out unusable text,
// sanitizes incoming text, and de-duplicates by text keeping the most recent
// entry. Applied as one state transition.
func (s *LabelStore) Refresh(horizon time.Duration, batch ...Label) {
	nowMillis := s.now().UnixMilli()
	horizonMillis := horizon.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]Label, 0, len(s.labels)+len(batch))
	for _, l := range s.labels {
		if age(nowMillis, l.Timestamp) <= horizonMillis && usableLabelText(l.Text) {
			merged = append(merged, l)
		}
	}
	for _, l := range batch {
		l.Text = SanitizeLabel(l.Text)
		if usableLabelText(l.Text) {
			merged = append(merged, l)
		}
	}

	// Later entries win; iterate backwards and keep first occurrence.
	seen := make(map[string]struct{}, len(merged))
	deduped := make([]Label, 0, len(merged))
	for i := len(merged) - 1; i >= 0; i-- {
		if _, dup := seen[merged[i].Text]; dup {
			continue
		}
		seen[merged[i].Text] = struct{}{}
		deduped = append(deduped, merged[i])
	}

	// Restore insertion order.
	for i, j := 0, len(deduped)-1; i < j; i, j = i+1, j-1 {
		deduped[i], deduped[j] = deduped[j], deduped[i]
	}
	s.labels = deduped
}

// Snapshot returns a copy of the retained labels.
func (s *LabelStore) Snapshot() []Label {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Label, len(s.labels))
	copy(out, s.labels)
	return out
}

// Len returns the number of retained labels.
func (s *LabelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labels)
}
