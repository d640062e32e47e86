// ABOUTME: Pagination controller for the thread list and message history
// ABOUTME: Single-flight per thread, stale responses ignored, retry-safe

package session

import (
	"context"

	"github.com/2389/parley/internal/chat"
)

// RefreshThreads refetches page 1 of the thread list. Existing threads
// are merged through Upsert, never blindly replaced, so threads from
// other pages survive a refresh. A refresh supersedes any page load
// still in flight: the older response is dropped when it lands.
func (s *Session) RefreshThreads(ctx context.Context) error {
	return s.fetchThreadPage(ctx, 1, true)
}

// LoadMoreThreads fetches the next thread-list page. No-op once the
// cursor is at the last page or while another list fetch is running.
func (s *Session) LoadMoreThreads(ctx context.Context) error {
	s.mu.Lock()
	cursor := s.threadPage
	s.mu.Unlock()

	if cursor.Pages > 0 && cursor.Page >= cursor.Pages {
		return nil
	}
	return s.fetchThreadPage(ctx, cursor.Page+1, false)
}

func (s *Session) fetchThreadPage(ctx context.Context, page int, force bool) error {
	s.mu.Lock()
	if s.listLoading && !force {
		s.mu.Unlock()
		return nil
	}
	s.listLoading = true
	s.listGen++
	gen := s.listGen
	s.mu.Unlock()

	resp, err := s.api.ListConversations(ctx, page)

	s.mu.Lock()
	stale := gen != s.listGen
	if !stale {
		s.listLoading = false
	}
	s.mu.Unlock()

	if err != nil {
		// Cursor unchanged, so the same page can be retried
		return err
	}
	if stale {
		s.logger.Debug("stale thread page dropped", "page", page)
		return nil
	}

	for _, t := range resp.Threads {
		s.reconcileFavorite(ctx, t)
		s.upsertWithFlags(t)
	}

	s.mu.Lock()
	s.threadPage = resp.Page
	s.mu.Unlock()
	return nil
}

// ThreadPageCursor returns the thread-list cursor.
func (s *Session) ThreadPageCursor() (page, pages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadPage.Page, s.threadPage.Pages
}

// SelectThread makes the thread the active one: it is marked read
// locally and server-side, and its first history page is loaded if
// none is held yet. Selecting replaces the previous active thread; an
// older thread's in-flight history fetch still lands in the store, it
// just no longer drives any visible loading state.
func (s *Session) SelectThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	s.active = threadID
	_, seeded := s.msgPages[threadID]
	s.mu.Unlock()

	s.markRead(ctx, threadID)

	if !seeded {
		return s.loadHistoryPage(ctx, threadID, 1)
	}
	return nil
}

// ClearActiveThread leaves thread-detail view; nothing is unloaded.
func (s *Session) ClearActiveThread() {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
}

// LoadOlder fetches the next (older) history page for the thread.
// No-op while a load for the same thread is in flight or when the
// cursor is exhausted, so double-clicks issue exactly one request.
func (s *Session) LoadOlder(ctx context.Context, threadID string) error {
	s.mu.Lock()
	if s.inflight[threadID] {
		s.mu.Unlock()
		return nil
	}
	cursor := s.msgPages[threadID]
	if cursor.Pages > 0 && cursor.Page >= cursor.Pages {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.loadHistoryPage(ctx, threadID, cursor.Page+1)
}

// HistoryCursor returns the thread's message-history cursor.
func (s *Session) HistoryCursor(threadID string) (page, pages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor := s.msgPages[threadID]
	return cursor.Page, cursor.Pages
}

// HasOlder reports whether more history pages remain for the thread.
func (s *Session) HasOlder(threadID string) bool {
	page, pages := s.HistoryCursor(threadID)
	return pages == 0 || page < pages
}

func (s *Session) loadHistoryPage(ctx context.Context, threadID string, page int) error {
	s.mu.Lock()
	if s.inflight[threadID] {
		s.mu.Unlock()
		return nil
	}
	s.inflight[threadID] = true
	s.mu.Unlock()

	resp, err := s.api.ListMessages(ctx, threadID, page)

	s.mu.Lock()
	delete(s.inflight, threadID)
	s.mu.Unlock()

	if err != nil {
		// Cursor unchanged: idle again, retry possible
		return err
	}

	// Merging is idempotent, a page overlapping live messages shrinks
	s.messages.PrependPage(threadID, resp.Messages)

	s.mu.Lock()
	s.msgPages[threadID] = resp.Page
	s.mu.Unlock()

	// History may reveal a newer last-message time than the summary had
	if msgs := s.messages.List(threadID); len(msgs) > 0 {
		last := msgs[len(msgs)-1].CreatedAt
		if t, ok := s.threads.Get(threadID); ok && last.After(t.LastMessageAt) {
			_ = s.threads.Patch(threadID, chat.ThreadPatch{LastMessageAt: &last})
		}
	}
	return nil
}
