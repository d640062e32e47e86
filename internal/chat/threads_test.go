// ABOUTME: Tests for ThreadStore merge-on-upsert and the ordering policy
// ABOUTME: Covers tier ordering, stable ties, tab filtering, mark-read

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func TestThreadStore_UpsertMergesById(t *testing.T) {
	s := NewThreadStore()

	s.Upsert(Thread{ID: "t1", LastMessageAt: at("10:00"), UnreadCount: 2})
	s.Upsert(Thread{ID: "t1", LastMessageAt: at("11:00"), UnreadCount: 3})

	assert.Equal(t, 1, s.Len())
	th, ok := s.Get("t1")
	require.True(t, ok)
	assert.Equal(t, at("11:00"), th.LastMessageAt)
	assert.Equal(t, 3, th.UnreadCount)
}

func TestThreadStore_UpsertRetainsClientLocalFlags(t *testing.T) {
	s := NewThreadStore()
	s.Upsert(Thread{ID: "t1", LastMessageAt: at("10:00")})

	pinned := true
	archived := true
	require.NoError(t, s.Patch("t1", ThreadPatch{IsPinned: &pinned, IsArchived: &archived}))

	// A server page refetch carries neither flag
	s.Upsert(Thread{ID: "t1", LastMessageAt: at("12:00"), UnreadCount: 1})

	th, _ := s.Get("t1")
	assert.True(t, th.IsPinned, "pin flag must survive server refetch")
	assert.True(t, th.IsArchived, "archive flag must survive server refetch")
	assert.Equal(t, at("12:00"), th.LastMessageAt)
}

func TestThreadStore_UpsertRetainsKnownFieldsOverSparsePayload(t *testing.T) {
	s := NewThreadStore()
	s.Upsert(Thread{
		ID:            "t1",
		OtherParty:    Party{ID: "u2", DisplayName: "Ada"},
		About:         "backend engineer",
		LastMessageAt: at("10:00"),
	})

	// Synthesized from a sparse push payload
	s.Upsert(Thread{ID: "t1", UnreadCount: 1})

	th, _ := s.Get("t1")
	assert.Equal(t, "Ada", th.OtherParty.DisplayName)
	assert.Equal(t, "backend engineer", th.About)
	assert.Equal(t, at("10:00"), th.LastMessageAt)
}

func TestThreadStore_OrderingTiers(t *testing.T) {
	s := NewThreadStore()
	now := at("12:00")

	// Insert in scrambled order; all share the same timestamp
	s.Upsert(Thread{ID: "D", LastMessageAt: now})
	s.Upsert(Thread{ID: "B", LastMessageAt: now, IsPinned: true})
	s.Upsert(Thread{ID: "A", LastMessageAt: now, IsPinned: true, IsFavorite: true})
	s.Upsert(Thread{ID: "C", LastMessageAt: now, IsFavorite: true})

	var ids []string
	for _, th := range s.List(TabAll) {
		ids = append(ids, th.ID)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids)
}

func TestThreadStore_OrderingRecencyWithinTier(t *testing.T) {
	s := NewThreadStore()

	s.Upsert(Thread{ID: "t1", IsPinned: true, LastMessageAt: at("10:00")})
	s.Upsert(Thread{ID: "t2", LastMessageAt: at("11:00")})

	ids := func() []string {
		var out []string
		for _, th := range s.List(TabAll) {
			out = append(out, th.ID)
		}
		return out
	}

	// Pinned outranks recency across tiers
	assert.Equal(t, []string{"t1", "t2"}, ids())

	// Once t2 is pinned too, recency decides within the tier
	pinned := true
	require.NoError(t, s.Patch("t2", ThreadPatch{IsPinned: &pinned}))
	assert.Equal(t, []string{"t2", "t1"}, ids())
}

func TestThreadStore_OrderingStableOnEqualKeys(t *testing.T) {
	s := NewThreadStore()
	now := at("09:30")
	s.Upsert(Thread{ID: "first", LastMessageAt: now})
	s.Upsert(Thread{ID: "second", LastMessageAt: now})

	for n := 0; n < 5; n++ {
		list := s.List(TabAll)
		require.Len(t, list, 2)
		assert.Equal(t, "first", list[0].ID)
		assert.Equal(t, "second", list[1].ID)
	}
}

func TestThreadStore_TabFiltering(t *testing.T) {
	s := NewThreadStore()
	s.Upsert(Thread{ID: "plain", LastMessageAt: at("10:00")})
	s.Upsert(Thread{ID: "fave", LastMessageAt: at("10:01"), IsFavorite: true})
	s.Upsert(Thread{ID: "gone", LastMessageAt: at("10:02"), IsArchived: true})
	s.Upsert(Thread{ID: "fave-gone", LastMessageAt: at("10:03"), IsFavorite: true, IsArchived: true})

	idsOf := func(tab Tab) []string {
		var out []string
		for _, th := range s.List(tab) {
			out = append(out, th.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"plain", "fave"}, idsOf(TabAll))
	assert.Equal(t, []string{"fave"}, idsOf(TabFavorites))
	assert.ElementsMatch(t, []string{"gone", "fave-gone"}, idsOf(TabArchived))
}

func TestThreadStore_MarkReadReturnsExactCount(t *testing.T) {
	s := NewThreadStore()
	s.Upsert(Thread{ID: "t1", UnreadCount: 7})

	n, err := s.MarkRead("t1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	th, _ := s.Get("t1")
	assert.Equal(t, 0, th.UnreadCount)

	// Second mark-read reports zero, not another 7
	n, err = s.MarkRead("t1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestThreadStore_RemoveReindexes(t *testing.T) {
	s := NewThreadStore()
	s.Upsert(Thread{ID: "a"})
	s.Upsert(Thread{ID: "b"})
	s.Upsert(Thread{ID: "c"})

	s.Remove("b")

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("b")
	assert.False(t, ok)
	th, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", th.ID)
}

func TestThreadStore_PatchUnknownThread(t *testing.T) {
	s := NewThreadStore()
	fav := true
	assert.ErrorIs(t, s.Patch("missing", ThreadPatch{IsFavorite: &fav}), ErrNotFound)
}

func TestThreadStore_UnreadNeverNegative(t *testing.T) {
	s := NewThreadStore()
	s.Upsert(Thread{ID: "t1", UnreadCount: 1})

	neg := -4
	require.NoError(t, s.Patch("t1", ThreadPatch{UnreadCount: &neg}))
	th, _ := s.Get("t1")
	assert.Equal(t, 0, th.UnreadCount)
}

func TestIdentity_EqualAcrossEncodings(t *testing.T) {
	assert.True(t, IdentityOf("42").Equal(IdentityOf(float64(42))))
	assert.True(t, IdentityOf(int64(7)).Equal(IdentityOf("7")))
	assert.False(t, IdentityOf("42").Equal(IdentityOf("43")))
	assert.Equal(t, Identity(""), IdentityOf(nil))
}

func TestThreadStore_ListSafeDuringConcurrentMutation(t *testing.T) {
	s := NewThreadStore()
	s.Upsert(Thread{ID: "a", LastMessageAt: at("10:00")})
	s.Upsert(Thread{ID: "b", LastMessageAt: at("11:00"), IsFavorite: true})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ts := at("12:00").Add(time.Duration(i) * time.Second)
			pinned := i%2 == 0
			_ = s.Patch("a", ThreadPatch{LastMessageAt: &ts, IsPinned: &pinned})
			s.Upsert(Thread{ID: "b", LastMessageAt: ts})
		}
	}()

	for i := 0; i < 200; i++ {
		list := s.List(TabAll)
		assert.Len(t, list, 2)
	}
	<-done
}
