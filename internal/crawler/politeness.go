package crawler

import (
	"context"
	"sync"
	"time"
)

// DedupStore is the per-run working set keyed by place ID. The first
// insertion of an ID wins; later duplicates are dropped without touching the
// stored record.
type DedupStore struct {
	mu    sync.Mutex
	index map[string]int
	items []Candidate
}

// NewDedupStore returns an empty working set.
func NewDedupStore() *DedupStore {
	return &DedupStore{index: make(map[string]int)}
}

// InsertIfAbsent stores c if its ID has not been seen and reports whether it
// was inserted.
func (s *DedupStore) InsertIfAbsent(c Candidate) bool {
	if c.ID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[c.ID]; ok {
		return false
	}
	s.index[c.ID] = len(s.items)
	s.items = append(s.items, c)
	return true
}

// Len returns the number of unique candidates.
func (s *DedupStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Candidates returns a copy of the working set in insertion order.
func (s *DedupStore) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Candidate, len(s.items))
	copy(out, s.items)
	return out
}

// TimerPauser sleeps for the requested delay or until ctx is done.
type TimerPauser struct{}

// Pause implements Pauser.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
