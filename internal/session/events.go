// ABOUTME: Push event handling: reconciliation, unread bookkeeping,
// ABOUTME: unknown-thread synthesis from the event payload

package session

import (
	"context"

	"github.com/2389/parley/internal/api"
	"github.com/2389/parley/internal/chat"
	"github.com/2389/parley/internal/gateway"
)

// handleEvent consumes one push frame. Events arrive in delivery order
// on the gateway's reader goroutine.
func (s *Session) handleEvent(e *gateway.Event) {
	switch e.Type {
	case gateway.EventNewMessage:
		s.handleNewMessage(e)
	case gateway.EventNotification:
		s.handleNotification(e)
	case gateway.EventDisconnect:
		s.logger.Debug("push channel down")
	case gateway.EventReconnect:
		s.logger.Debug("push channel restored")
	}
}

func (s *Session) handleNewMessage(e *gateway.Event) {
	msg, err := api.DecodeMessage(e.Payload)
	if err != nil {
		s.logger.Warn("undecodable message payload", "error", err)
		return
	}
	// Reconciliation is always keyed by the event's thread id
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = e.ThreadID
	}
	if threadID == "" {
		s.logger.Warn("message event without thread id", "event_id", e.ID)
		return
	}
	msg.ThreadID = threadID

	stored, appended := s.messages.Reconcile(threadID, msg)

	if _, known := s.threads.Get(threadID); !known {
		s.synthesizeThread(threadID, e, &stored)
	}

	// Recency only moves forward; a replayed old frame must not rewind
	// the thread's position in the list
	ts := stored.CreatedAt
	if t, ok := s.threads.Get(threadID); ok && ts.After(t.LastMessageAt) {
		_ = s.threads.Patch(threadID, chat.ThreadPatch{LastMessageAt: &ts})
	}

	if !appended || stored.AuthorID.Equal(s.self) {
		// An echo of our own send or a duplicate: no unread movement
		return
	}

	// Read the active thread at dispatch time, not from a captured value
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if threadID == active {
		// Open and being viewed: stays read, tell the server so
		s.markRead(context.Background(), threadID)
		return
	}

	s.bumpUnread(threadID)
}

func (s *Session) handleNotification(e *gateway.Event) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if e.ThreadID != "" && e.ThreadID == active {
		return
	}
	s.bumpUnread(e.ThreadID)
}

// bumpUnread moves the global counter and, when the thread is known,
// its per-thread count in lock-step.
func (s *Session) bumpUnread(threadID string) {
	s.mu.Lock()
	s.unread++
	s.mu.Unlock()

	if threadID == "" {
		return
	}
	if t, ok := s.threads.Get(threadID); ok {
		n := t.UnreadCount + 1
		_ = s.threads.Patch(threadID, chat.ThreadPatch{UnreadCount: &n})
	}
}

// synthesizeThread registers a summary for a thread first seen via
// push, built from the event payload so it shows up without waiting
// for a list refresh. The about/profile fields stay sparse until the
// next page fetch backfills them through Upsert.
func (s *Session) synthesizeThread(threadID string, e *gateway.Event, msg *chat.Message) {
	sender, err := api.DecodeSender(e.Payload)
	if err != nil {
		s.logger.Warn("undecodable sender in message event", "error", err)
	}

	thread := chat.Thread{
		ID:            threadID,
		LastMessageAt: msg.CreatedAt,
	}
	if !sender.ID.Equal(s.self) {
		thread.OtherParty = sender
	}
	s.upsertWithFlags(thread)
	s.logger.Debug("thread synthesized from push event", "thread_id", threadID)
}

// markRead zeroes the thread locally, moves the global counter by the
// exact amount, and reports the read to the server. A server failure
// here is tolerated; the next mark-read will repair it.
func (s *Session) markRead(ctx context.Context, threadID string) {
	n, err := s.threads.MarkRead(threadID)
	if err != nil {
		return
	}
	if n > 0 {
		s.mu.Lock()
		s.unread -= n
		if s.unread < 0 {
			s.unread = 0
		}
		s.mu.Unlock()
	}

	if err := s.api.MarkRead(ctx, threadID); err != nil {
		s.logger.Warn("server mark-read failed", "thread_id", threadID, "error", err)
	}
}
