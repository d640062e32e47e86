// ABOUTME: ThreadStore holds conversation summaries with merge-on-upsert
// ABOUTME: Ordering policy computes pin/favorite tiers over recency, stably

package chat

import (
	"sort"
	"sync"
	"time"
)

// threadRecord pairs a thread with its insertion sequence number, which
// is the final tie-break so re-sorting never reorders equal threads.
type threadRecord struct {
	thread Thread
	seq    int
}

// ThreadStore holds exactly one Thread per id. All mutation goes through
// Upsert/Patch/Remove/MarkRead; the visible order is re-derived by List
// from the ordering policy, never stored.
type ThreadStore struct {
	mu      sync.RWMutex
	records []*threadRecord
	index   map[string]int // thread id -> position in records
	nextSeq int
}

// NewThreadStore creates an empty thread store.
func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		index: make(map[string]int),
	}
}

// Upsert inserts the thread or merges it into the existing record with
// the same id. Server-owned fields are taken from the incoming thread;
// the client-local IsPinned and IsArchived flags are always retained,
// so a page refetch cannot clobber them. A zero LastMessageAt or empty
// About on the incoming thread also retains the existing value, which
// lets summaries synthesized from sparse push payloads be backfilled
// later without losing what is already known.
func (s *ThreadStore) Upsert(t Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[t.ID]
	if !ok {
		s.index[t.ID] = len(s.records)
		s.records = append(s.records, &threadRecord{thread: t, seq: s.nextSeq})
		s.nextSeq++
		return
	}

	existing := &s.records[pos].thread
	merged := t
	merged.IsPinned = existing.IsPinned
	merged.IsArchived = existing.IsArchived
	if merged.LastMessageAt.IsZero() {
		merged.LastMessageAt = existing.LastMessageAt
	}
	if merged.About == "" {
		merged.About = existing.About
	}
	if merged.OtherParty.DisplayName == "" {
		merged.OtherParty = existing.OtherParty
	}
	*existing = merged
}

// ThreadPatch is a partial update; nil fields are left unchanged.
type ThreadPatch struct {
	LastMessageAt *time.Time
	UnreadCount   *int
	IsFavorite    *bool
	IsPinned      *bool
	IsArchived    *bool
	About         *string
}

// Patch applies a partial update to the thread with the given id.
func (s *ThreadStore) Patch(id string, p ThreadPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	t := &s.records[pos].thread

	if p.LastMessageAt != nil {
		t.LastMessageAt = *p.LastMessageAt
	}
	if p.UnreadCount != nil {
		if *p.UnreadCount < 0 {
			t.UnreadCount = 0
		} else {
			t.UnreadCount = *p.UnreadCount
		}
	}
	if p.IsFavorite != nil {
		t.IsFavorite = *p.IsFavorite
	}
	if p.IsPinned != nil {
		t.IsPinned = *p.IsPinned
	}
	if p.IsArchived != nil {
		t.IsArchived = *p.IsArchived
	}
	if p.About != nil {
		t.About = *p.About
	}
	return nil
}

// Remove deletes the thread with the given id. Positions in the index
// are rewritten for every record after the removed one.
func (s *ThreadStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return
	}
	s.records = append(s.records[:pos], s.records[pos+1:]...)
	delete(s.index, id)
	for i := pos; i < len(s.records); i++ {
		s.index[s.records[i].thread.ID] = i
	}
}

// Get returns a copy of the thread with the given id.
func (s *ThreadStore) Get(id string) (Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return Thread{}, false
	}
	return s.records[pos].thread, true
}

// MarkRead zeroes the thread's unread count and returns how many
// messages were marked read, so the caller can decrement its global
// counter by the exact same amount.
func (s *ThreadStore) MarkRead(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return 0, ErrNotFound
	}
	t := &s.records[pos].thread
	n := t.UnreadCount
	t.UnreadCount = 0
	return n, nil
}

// Len returns the number of stored threads.
func (s *ThreadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// UnreadTotal returns the sum of per-thread unread counts.
func (s *ThreadStore) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, r := range s.records {
		total += r.thread.UnreadCount
	}
	return total
}

// orderTier computes the ordering priority for a thread. Higher sorts
// first.
func orderTier(t *Thread) int {
	switch {
	case t.IsPinned && t.IsFavorite:
		return 3
	case t.IsPinned:
		return 2
	case t.IsFavorite:
		return 1
	default:
		return 0
	}
}

// visibleIn reports whether the thread belongs on the given tab.
// Filtering happens before ordering.
func visibleIn(t *Thread, tab Tab) bool {
	switch tab {
	case TabArchived:
		return t.IsArchived
	case TabFavorites:
		return t.IsFavorite && !t.IsArchived
	default:
		return !t.IsArchived
	}
}

// List returns copies of the threads visible on the given tab, ordered
// by tier (pinned+favorite, pinned, favorite, none), then last-message
// time descending, then original insertion order.
func (s *ThreadStore) List(tab Tab) []Thread {
	s.mu.RLock()
	filtered := make([]threadRecord, 0, len(s.records))
	for _, r := range s.records {
		if visibleIn(&r.thread, tab) {
			filtered = append(filtered, *r)
		}
	}
	s.mu.RUnlock()

	// filtered holds copies, so a concurrent Patch/Upsert cannot write
	// the records the sort is reading
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := &filtered[i], &filtered[j]
		ta, tb := orderTier(&a.thread), orderTier(&b.thread)
		if ta != tb {
			return ta > tb
		}
		if !a.thread.LastMessageAt.Equal(b.thread.LastMessageAt) {
			return a.thread.LastMessageAt.After(b.thread.LastMessageAt)
		}
		return a.seq < b.seq
	})

	out := make([]Thread, len(filtered))
	for i := range filtered {
		out[i] = filtered[i].thread
	}
	return out
}
