// ABOUTME: Favorite, pin and archive flag handling
// ABOUTME: Pins and archives stay client-side; favorites round-trip

package session

import (
	"context"

	"github.com/2389/parley/internal/chat"
)

// ToggleFavorite flips the server-side favorite flag and mirrors the
// result locally.
func (s *Session) ToggleFavorite(ctx context.Context, threadID string) error {
	fav, err := s.api.ToggleFavorite(ctx, threadID)
	if err != nil {
		return err
	}

	_ = s.threads.Patch(threadID, chat.ThreadPatch{IsFavorite: &fav})

	s.mu.Lock()
	f := s.local[threadID]
	f.Favorite = fav
	s.local[threadID] = f
	s.mu.Unlock()

	return s.prefs.SetFavorite(ctx, threadID, fav)
}

// reconcileFavorite adopts the server's favorite flag into the local
// mirror when a thread arrives from a list fetch. An optimistic toggle
// wins only until the next refetch confirms or overrides it.
func (s *Session) reconcileFavorite(ctx context.Context, t chat.Thread) {
	s.mu.Lock()
	f := s.local[t.ID]
	if f.Favorite == t.IsFavorite {
		s.mu.Unlock()
		return
	}
	f.Favorite = t.IsFavorite
	s.local[t.ID] = f
	s.mu.Unlock()

	if err := s.prefs.SetFavorite(ctx, t.ID, t.IsFavorite); err != nil {
		s.logger.Warn("persisting favorite mirror failed",
			"thread_id", t.ID,
			"error", err)
	}
}

// SetPinned stores the client-only pin flag. No API call is made.
func (s *Session) SetPinned(ctx context.Context, threadID string, on bool) error {
	_ = s.threads.Patch(threadID, chat.ThreadPatch{IsPinned: &on})

	s.mu.Lock()
	f := s.local[threadID]
	f.Pinned = on
	s.local[threadID] = f
	s.mu.Unlock()

	return s.prefs.SetPinned(ctx, threadID, on)
}

// SetArchived stores the client-only archive flag. No API call is made.
func (s *Session) SetArchived(ctx context.Context, threadID string, on bool) error {
	_ = s.threads.Patch(threadID, chat.ThreadPatch{IsArchived: &on})

	s.mu.Lock()
	f := s.local[threadID]
	f.Archived = on
	s.local[threadID] = f
	s.mu.Unlock()

	return s.prefs.SetArchived(ctx, threadID, on)
}
