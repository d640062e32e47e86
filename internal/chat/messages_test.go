// ABOUTME: Tests for MessageStore reconciliation and page merging
// ABOUTME: Covers the dedupe invariant, optimistic echo, prepend idempotency

package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgAt(min int) time.Time {
	return time.Date(2026, 3, 1, 9, min, 0, 0, time.UTC)
}

func TestMessageStore_AppendThenList(t *testing.T) {
	s := NewMessageStore()
	s.Append("t1", Message{ClientMessageID: "c1", Text: "hello", CreatedAt: msgAt(0)})
	s.Append("t1", Message{ClientMessageID: "c2", Text: "again", CreatedAt: msgAt(1)})

	msgs := s.List("t1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "again", msgs[1].Text)
}

func TestMessageStore_AppendAbsorbsDuplicates(t *testing.T) {
	s := NewMessageStore()
	s.Append("t1", Message{ID: "m1", Text: "one"})
	s.Append("t1", Message{ID: "m1", Text: "one again"})
	s.Append("t1", Message{ClientMessageID: "c1", Text: "two"})
	s.Append("t1", Message{ClientMessageID: "c1", Text: "two again"})

	assert.Equal(t, 2, s.Len("t1"))
}

func TestMessageStore_ReconcileByIdIsNoop(t *testing.T) {
	s := NewMessageStore()
	s.Append("t1", Message{ID: "server-1", Text: "original"})

	_, appended := s.Reconcile("t1", Message{ID: "server-1", Text: "duplicate delivery"})

	assert.False(t, appended)
	msgs := s.List("t1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "original", msgs[0].Text)
}

func TestMessageStore_ReconcileMatchesOptimisticEcho(t *testing.T) {
	s := NewMessageStore()
	s.Append("t1", Message{ClientMessageID: "abc", Text: "hi", Pending: true, CreatedAt: msgAt(0)})

	stored, appended := s.Reconcile("t1", Message{
		ID:              "server-9",
		ClientMessageID: "abc",
		Text:            "hi",
		CreatedAt:       msgAt(1),
	})

	assert.False(t, appended)
	assert.Equal(t, 1, s.Len("t1"))
	assert.Equal(t, "server-9", stored.ID)
	assert.False(t, stored.Pending)

	// The entry is now reachable by server id too
	_, appended = s.Reconcile("t1", Message{ID: "server-9", ClientMessageID: "abc"})
	assert.False(t, appended)
	assert.Equal(t, 1, s.Len("t1"))
}

func TestMessageStore_ReconcileAppendsUnknown(t *testing.T) {
	s := NewMessageStore()
	stored, appended := s.Reconcile("t1", Message{ID: "server-1", Text: "from them", Pending: true})

	assert.True(t, appended)
	assert.False(t, stored.Pending, "push-delivered messages are never pending")
	assert.Equal(t, 1, s.Len("t1"))
}

func TestMessageStore_ReconcileInvariant(t *testing.T) {
	// Any interleaving of reconciles yields at most one entry per id
	// and one per clientMessageId.
	s := NewMessageStore()
	inputs := []Message{
		{ClientMessageID: "c1"},
		{ID: "s1", ClientMessageID: "c1"},
		{ID: "s1"},
		{ID: "s2"},
		{ID: "s2", ClientMessageID: "c2"},
		{ClientMessageID: "c1"},
	}
	for _, m := range inputs {
		s.Reconcile("t1", m)
	}

	seenID := map[string]bool{}
	seenCMID := map[string]bool{}
	for _, m := range s.List("t1") {
		if m.ID != "" {
			assert.False(t, seenID[m.ID], "duplicate id %s", m.ID)
			seenID[m.ID] = true
		}
		if m.ClientMessageID != "" {
			assert.False(t, seenCMID[m.ClientMessageID], "duplicate clientMessageId %s", m.ClientMessageID)
			seenCMID[m.ClientMessageID] = true
		}
	}
	assert.Equal(t, 2, s.Len("t1"))
}

func TestMessageStore_PrependPageMergesOlderHistory(t *testing.T) {
	s := NewMessageStore()
	s.Append("t1", Message{ID: "m3", Text: "newest", CreatedAt: msgAt(3)})

	s.PrependPage("t1", []Message{
		{ID: "m1", Text: "oldest", CreatedAt: msgAt(1)},
		{ID: "m2", Text: "older", CreatedAt: msgAt(2)},
	})

	msgs := s.List("t1")
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestMessageStore_PrependPageIsIdempotent(t *testing.T) {
	s := NewMessageStore()
	page := []Message{
		{ID: "m1", CreatedAt: msgAt(1)},
		{ID: "m2", CreatedAt: msgAt(2)},
	}
	s.PrependPage("t1", page)
	require.Equal(t, 2, s.Len("t1"))

	s.PrependPage("t1", page)
	assert.Equal(t, 2, s.Len("t1"), "re-prepending a merged page must not grow the sequence")
}

func TestMessageStore_PrependPageSkipsLiveReceivedMessage(t *testing.T) {
	// A message arrived live over push, then shows up again in a
	// freshly fetched older page.
	s := NewMessageStore()
	s.Reconcile("t1", Message{ID: "m2", Text: "live", CreatedAt: msgAt(2)})

	s.PrependPage("t1", []Message{
		{ID: "m1", Text: "old", CreatedAt: msgAt(1)},
		{ID: "m2", Text: "live again", CreatedAt: msgAt(2)},
	})

	msgs := s.List("t1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "live", msgs[1].Text)
}

func TestMessageStore_PrependPageFallbackKey(t *testing.T) {
	// Neither side has ids: dedupe falls back to author+timestamp.
	ts := msgAt(5)
	s := NewMessageStore()
	s.Append("t1", Message{AuthorID: "u2", Text: "hey", CreatedAt: ts})

	s.PrependPage("t1", []Message{{AuthorID: "u2", Text: "hey", CreatedAt: ts}})

	assert.Equal(t, 1, s.Len("t1"))
}

func TestMessageStore_MarkFailedKeepsEntryVisible(t *testing.T) {
	s := NewMessageStore()
	s.Append("t1", Message{ClientMessageID: "c1", Text: "will fail", Pending: true})

	require.NoError(t, s.MarkFailed("t1", "c1"))

	msgs := s.List("t1")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Failed)
	assert.False(t, msgs[0].Pending)

	assert.ErrorIs(t, s.MarkFailed("t1", "nope"), ErrNotFound)
	assert.ErrorIs(t, s.MarkFailed("t9", "c1"), ErrNotFound)
}

func TestMessageStore_ThreadsAreIsolated(t *testing.T) {
	s := NewMessageStore()
	s.Reconcile("t1", Message{ID: "m1"})
	s.Reconcile("t2", Message{ID: "m1"})

	assert.Equal(t, 1, s.Len("t1"))
	assert.Equal(t, 1, s.Len("t2"))
}

func TestMessageStore_ListCopyIsDetached(t *testing.T) {
	s := NewMessageStore()
	s.Append("t1", Message{ID: "m1", Text: "original"})

	msgs := s.List("t1")
	msgs[0].Text = "mutated"

	again := s.List("t1")
	assert.Equal(t, "original", again[0].Text)
}

func TestMessageStore_LargeSequenceIndexStaysConsistent(t *testing.T) {
	s := NewMessageStore()
	for i := 0; i < 200; i++ {
		s.Reconcile("t1", Message{ID: fmt.Sprintf("m%03d", i), CreatedAt: msgAt(i % 60)})
	}
	require.Equal(t, 200, s.Len("t1"))

	// Every message is still findable after a page prepend shifts positions
	s.PrependPage("t1", []Message{{ID: "ancient", CreatedAt: msgAt(0)}})
	require.Equal(t, 201, s.Len("t1"))

	_, appended := s.Reconcile("t1", Message{ID: "m150"})
	assert.False(t, appended)
}

func TestMessageStore_PrependPageInPageDuplicateAcrossKeyForms(t *testing.T) {
	s := NewMessageStore()

	// The same message appears twice in one page: once with both keys,
	// once with only its clientMessageId
	s.PrependPage("t1", []Message{
		{ID: "m1", ClientMessageID: "c1", CreatedAt: msgAt(0)},
		{ClientMessageID: "c1", CreatedAt: msgAt(0)},
	})

	require.Equal(t, 1, s.Len("t1"))
	msgs := s.List("t1")
	assert.Equal(t, "m1", msgs[0].ID)
}
