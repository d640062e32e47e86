// ABOUTME: Optimistic send pipeline: local entry first, then the write
// ABOUTME: Failures flip the same entry to failed; echoes converge it

package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/2389/parley/internal/api"
	"github.com/2389/parley/internal/chat"
)

// Send materializes the message locally, then issues the network
// write carrying the clientMessageId so the server echo converges on
// the same entry through Reconcile. On failure the entry is marked
// failed in place and kept visible for retry. Returns the
// clientMessageId of the new entry.
func (s *Session) Send(ctx context.Context, threadID, text string, attachments []chat.Attachment) (string, error) {
	if text == "" && len(attachments) == 0 {
		return "", chat.ErrEmptyMessage
	}

	clientMessageID := uuid.New().String()
	now := time.Now()

	s.messages.Append(threadID, chat.Message{
		ClientMessageID: clientMessageID,
		ThreadID:        threadID,
		AuthorID:        s.self,
		Text:            text,
		Attachments:     attachments,
		CreatedAt:       now,
		Pending:         true,
	})
	_ = s.threads.Patch(threadID, chat.ThreadPatch{LastMessageAt: &now})

	if err := s.deliver(ctx, threadID, clientMessageID, text, attachments); err != nil {
		return clientMessageID, err
	}
	return clientMessageID, nil
}

// RetrySend re-issues a failed send under its original clientMessageId.
// Retries are always explicit; the pipeline never retries on its own.
func (s *Session) RetrySend(ctx context.Context, threadID, clientMessageID string) error {
	msg, ok := s.messages.Get(threadID, clientMessageID)
	if !ok {
		return chat.ErrNotFound
	}
	if !msg.Failed {
		// Already confirmed or still in flight
		return nil
	}

	if err := s.messages.MarkPending(threadID, clientMessageID); err != nil {
		return err
	}
	return s.deliver(ctx, threadID, clientMessageID, msg.Text, msg.Attachments)
}

// deliver performs the write. The pipeline never appends here: the
// entry already exists, and convergence to the confirmed form happens
// only when the push echo hits Reconcile.
func (s *Session) deliver(ctx context.Context, threadID, clientMessageID, text string, attachments []chat.Attachment) error {
	req := api.SendRequest{
		Message:         text,
		ClientMessageID: clientMessageID,
	}
	for _, a := range attachments {
		req.Attachments = append(req.Attachments, api.SendAttachment{
			URL:      a.URL,
			Type:     a.MimeType,
			Filename: a.Filename,
		})
	}

	if err := s.api.SendMessage(ctx, threadID, req); err != nil {
		s.logger.Warn("send failed",
			"thread_id", threadID,
			"client_message_id", clientMessageID,
			"error", err)
		if markErr := s.messages.MarkFailed(threadID, clientMessageID); markErr != nil {
			s.logger.Error("failed to mark message failed",
				"client_message_id", clientMessageID,
				"error", markErr)
		}
		return err
	}
	return nil
}
