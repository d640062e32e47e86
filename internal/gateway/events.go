// ABOUTME: Push-channel event contract shared by transport and consumers
// ABOUTME: Defines frame types for messages, notifications, lifecycle

package gateway

import (
	"encoding/json"

	"github.com/2389/parley/internal/chat"
)

// EventType identifies a push-channel frame.
type EventType string

const (
	// EventNewMessage carries a full message payload.
	EventNewMessage EventType = "new_message"
	// EventNotification is a lightweight unread bump without a payload.
	EventNotification EventType = "message_notification"
	// EventConnect fires when the channel is established.
	EventConnect EventType = "connect"
	// EventDisconnect fires when the channel drops.
	EventDisconnect EventType = "disconnect"
	// EventReconnect fires after the channel is re-established.
	EventReconnect EventType = "reconnect"
)

// Event is one frame from the push channel. Payload holds the raw
// message body for new_message frames; consumers decode it with the
// api package so wire normalization stays in one place.
type Event struct {
	Type     EventType
	ID       string
	ThreadID string
	Payload  json.RawMessage
}

// DedupeKey returns the identity under which duplicate deliveries of
// this frame are absorbed. Frames without an id are never deduplicated.
func (e *Event) DedupeKey() string {
	if e.ID == "" {
		return ""
	}
	return string(e.Type) + ":" + e.ID
}

// DecodeFrame parses a raw push frame. Frame and thread ids may arrive
// as strings or numbers, so both are normalized through chat.IdentityOf.
func DecodeFrame(data []byte) (*Event, error) {
	var raw struct {
		Event EventType       `json:"event"`
		ID    any             `json:"id"`
		Conv  any             `json:"conversationId"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &Event{
		Type:     raw.Event,
		ID:       string(chat.IdentityOf(raw.ID)),
		ThreadID: string(chat.IdentityOf(raw.Conv)),
		Payload:  raw.Data,
	}, nil
}
