// ABOUTME: Core data types for the conversation sync engine
// ABOUTME: Defines Identity, Party, Thread, Message and Attachment

package chat

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested thread or message does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmptyMessage is returned when a send has neither text nor attachments.
var ErrEmptyMessage = errors.New("message has no text and no attachments")

// Identity is an opaque user identifier. The REST API and the push channel
// do not agree on its primitive type (one sends numbers, the other strings),
// so it is normalized to a string at the edge and compared as one.
type Identity string

// IdentityOf normalizes a raw id value into an Identity. Accepts the types
// encoding/json produces for untyped payloads.
func IdentityOf(v any) Identity {
	switch id := v.(type) {
	case string:
		return Identity(id)
	case float64:
		// JSON numbers decode as float64; ids are integral
		return Identity(fmt.Sprintf("%.0f", id))
	case int:
		return Identity(fmt.Sprintf("%d", id))
	case int64:
		return Identity(fmt.Sprintf("%d", id))
	case nil:
		return ""
	default:
		return Identity(fmt.Sprintf("%v", id))
	}
}

// Equal compares two identities by normalized string value.
func (i Identity) Equal(other Identity) bool {
	return string(i) == string(other)
}

// Party is the other participant of a thread.
type Party struct {
	ID          Identity
	DisplayName string
	AvatarURL   string
	Email       string
}

// Thread is a conversation summary between the signed-in user and one
// other party. IsPinned and IsArchived are client-local preferences and
// are never sent to the server; IsFavorite mirrors server state.
type Thread struct {
	ID            string
	OtherParty    Party
	LastMessageAt time.Time
	UnreadCount   int
	IsFavorite    bool
	IsPinned      bool
	IsArchived    bool
	About         string
}

// Attachment is an opaque asset reference produced by the upload
// subsystem. The engine never inspects the payload behind the URL.
type Attachment struct {
	ID       string
	URL      string
	MimeType string
	Filename string
}

// Message is one entry in a thread's ordered sequence. ID is
// server-assigned and empty until confirmed; ClientMessageID is minted
// locally for every message the user authors and may be echoed back by
// the server. Pending and Failed track the optimistic send lifecycle.
type Message struct {
	ID              string
	ClientMessageID string
	ThreadID        string
	AuthorID        Identity
	Text            string
	Attachments     []Attachment
	CreatedAt       time.Time
	Pending         bool
	Failed          bool
}

// DedupeKey returns the composite identity used when merging message
// sequences: server id if known, else the client message id, else
// author+timestamp as a last resort.
func (m *Message) DedupeKey() string {
	if m.ID != "" {
		return "id:" + m.ID
	}
	if m.ClientMessageID != "" {
		return "cmid:" + m.ClientMessageID
	}
	return fmt.Sprintf("at:%s:%d", m.AuthorID, m.CreatedAt.UnixMilli())
}

// Tab selects which slice of the thread list is visible.
type Tab string

const (
	TabAll       Tab = "all"       // everything except archived
	TabFavorites Tab = "favorites" // favorites, except archived
	TabArchived  Tab = "archived"  // archived only
)
