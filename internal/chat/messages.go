// ABOUTME: MessageStore holds per-thread ordered message sequences
// ABOUTME: Reconcile and PrependPage implement the deduplication rules

package chat

import (
	"sync"
)

// sequence is one thread's ordered messages plus the incrementally
// maintained key index. Every message is reachable under each of its
// identity keys ("id:", "cmid:", or the author+timestamp fallback), so
// duplicate detection never rescans the slice.
type sequence struct {
	msgs []Message
	keys map[string]int // identity key -> position in msgs
}

func newSequence() *sequence {
	return &sequence{keys: make(map[string]int)}
}

// identityKeys returns every key form the message can be recognized by.
func identityKeys(m *Message) []string {
	keys := make([]string, 0, 2)
	if m.ID != "" {
		keys = append(keys, "id:"+m.ID)
	}
	if m.ClientMessageID != "" {
		keys = append(keys, "cmid:"+m.ClientMessageID)
	}
	if len(keys) == 0 {
		keys = append(keys, m.DedupeKey())
	}
	return keys
}

// register indexes the message at the given position under all of its keys.
func (q *sequence) register(pos int) {
	for _, k := range identityKeys(&q.msgs[pos]) {
		q.keys[k] = pos
	}
}

// known reports whether any of the message's identity keys is already
// present in the sequence.
func (q *sequence) known(m *Message) bool {
	for _, k := range identityKeys(m) {
		if _, ok := q.keys[k]; ok {
			return true
		}
	}
	return false
}

// MessageStore holds the message sequences of all threads. Mutation is
// keyed by thread id so a reconciliation can never land in the wrong
// thread's sequence.
type MessageStore struct {
	mu      sync.RWMutex
	threads map[string]*sequence
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{threads: make(map[string]*sequence)}
}

func (s *MessageStore) seq(threadID string) *sequence {
	q, ok := s.threads[threadID]
	if !ok {
		q = newSequence()
		s.threads[threadID] = q
	}
	return q
}

// Append adds a message at the newest end of the thread's sequence.
// If the message is already present under any identity key the call is
// a no-op: duplicates are absorbed, never surfaced.
func (s *MessageStore) Append(threadID string, m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.seq(threadID)
	if q.known(&m) {
		return
	}
	q.msgs = append(q.msgs, m)
	q.register(len(q.msgs) - 1)
}

// PrependPage merges an older history page at the head of the sequence,
// dropping any entry already present under its composite identity key.
// Incoming order is preserved for the surviving entries. Re-prepending
// an already-merged page is a no-op.
func (s *MessageStore) PrependPage(threadID string, page []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.seq(threadID)
	fresh := make([]Message, 0, len(page))
	for _, m := range page {
		if q.known(&m) {
			continue
		}
		fresh = append(fresh, m)
		// Guard against the same message twice within one page, under
		// any of its key forms
		for _, k := range identityKeys(&fresh[len(fresh)-1]) {
			q.keys[k] = -1
		}
	}
	if len(fresh) == 0 {
		return
	}

	q.msgs = append(fresh, q.msgs...)
	// Positions shifted for every message; rebuild the index once
	q.keys = make(map[string]int, len(q.msgs))
	for i := range q.msgs {
		q.register(i)
	}
}

// Reconcile converges a server or push message with the sequence using
// the decision order:
//
//  1. incoming id already present         -> no-op
//  2. incoming clientMessageId present    -> replace that entry in place
//  3. otherwise                           -> append as new
//
// Returns the stored message and whether it was appended as new (false
// means it was absorbed or replaced an optimistic entry).
func (s *MessageStore) Reconcile(threadID string, incoming Message) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.seq(threadID)

	if incoming.ID != "" {
		if pos, ok := q.keys["id:"+incoming.ID]; ok && pos >= 0 {
			return q.msgs[pos], false
		}
	}

	if incoming.ClientMessageID != "" {
		if pos, ok := q.keys["cmid:"+incoming.ClientMessageID]; ok && pos >= 0 {
			incoming.Pending = false
			incoming.Failed = false
			q.msgs[pos] = incoming
			q.register(pos)
			return q.msgs[pos], false
		}
	}

	incoming.Pending = false
	q.msgs = append(q.msgs, incoming)
	q.register(len(q.msgs) - 1)
	return incoming, true
}

// MarkFailed flips the optimistic entry with the given clientMessageId
// to failed in place. The entry stays visible so the user can retry.
func (s *MessageStore) MarkFailed(threadID, clientMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.threads[threadID]
	if !ok {
		return ErrNotFound
	}
	pos, ok := q.keys["cmid:"+clientMessageID]
	if !ok || pos < 0 {
		return ErrNotFound
	}
	q.msgs[pos].Failed = true
	q.msgs[pos].Pending = false
	return nil
}

// MarkPending flips a failed entry back to pending for a retry.
func (s *MessageStore) MarkPending(threadID, clientMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.threads[threadID]
	if !ok {
		return ErrNotFound
	}
	pos, ok := q.keys["cmid:"+clientMessageID]
	if !ok || pos < 0 {
		return ErrNotFound
	}
	q.msgs[pos].Failed = false
	q.msgs[pos].Pending = true
	return nil
}

// Get returns the message stored under the given clientMessageId.
func (s *MessageStore) Get(threadID, clientMessageID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.threads[threadID]
	if !ok {
		return Message{}, false
	}
	pos, ok := q.keys["cmid:"+clientMessageID]
	if !ok || pos < 0 {
		return Message{}, false
	}
	return q.msgs[pos], true
}

// List returns a copy of the thread's message sequence, oldest first.
func (s *MessageStore) List(threadID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	out := make([]Message, len(q.msgs))
	copy(out, q.msgs)
	return out
}

// Len returns the number of messages held for the thread.
func (s *MessageStore) Len(threadID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.threads[threadID]
	if !ok {
		return 0
	}
	return len(q.msgs)
}
