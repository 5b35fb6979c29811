package points

import (
	"sync"

	"github.com/omkom/live-community-tool-sub000/internal/metrics"
)

const defaultSeenLimit = 1000

// SeenSet is a bounded set of already-processed redemption ids, keeping
// insertion order so compaction can retain the most recent entries. The
// polling windows overlap deliberately, so the same redemption shows up in
// consecutive polls; membership here is what makes delivery at-most-once.
type SeenSet struct {
	mu    sync.Mutex
	limit int
	ids   map[string]struct{}
	order []string
}

func NewSeenSet(limit int) *SeenSet {
	if limit <= 0 {
		limit = defaultSeenLimit
	}
	return &SeenSet{
		limit: limit,
		ids:   make(map[string]struct{}),
	}
}

// Contains reports whether id was already processed.
func (s *SeenSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Add records id as processed. When the set grows past its limit it is
// compacted down to the most recently added half; it never grows unbounded.
func (s *SeenSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)

	if len(s.order) > s.limit {
		keep := s.order[len(s.order)-s.limit/2:]
		s.ids = make(map[string]struct{}, len(keep))
		for _, kept := range keep {
			s.ids[kept] = struct{}{}
		}
		s.order = append(s.order[:0], keep...)
	}

	metrics.DedupSetSize.Set(float64(len(s.order)))
}

// Len returns the current number of tracked ids.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Clear empties the set. Maintenance operation only; normal Stop leaves the
// set intact so a restart of polling cannot re-trigger old redemptions.
func (s *SeenSet) Clear() {
	s.mu.Lock()
	s.ids = make(map[string]struct{})
	s.order = s.order[:0]
	s.mu.Unlock()

	metrics.DedupSetSize.Set(0)
}
