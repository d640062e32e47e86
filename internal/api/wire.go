// ABOUTME: Wire DTOs for the conversations REST API with loose decoding
// ABOUTME: Normalizes string-or-number ids and mixed timestamp formats

package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/2389/parley/internal/chat"
)

// wireID decodes a JSON value that may be a string or a number into a
// normalized string id.
type wireID string

func (w *wireID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*w = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*w = wireID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*w = wireID(n.String())
	return nil
}

// wireTime decodes RFC 3339 strings or epoch milliseconds.
type wireTime struct {
	time.Time
}

func (w *wireTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		w.Time = time.Time{}
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return err
		}
		w.Time = t
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	w.Time = time.UnixMilli(ms).UTC()
	return nil
}

type wireUser struct {
	ID          wireID `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
	Email       string `json:"email"`
}

type wireConversation struct {
	ID            wireID   `json:"id"`
	OtherParty    wireUser `json:"otherParty"`
	LastMessageAt wireTime `json:"lastMessageAt"`
	UnreadCount   int      `json:"unreadCount"`
	IsFavorite    bool     `json:"isFavorite"`
	About         string   `json:"about"`
}

type wireAttachment struct {
	ID       wireID `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

type wireMessage struct {
	ID              wireID           `json:"id"`
	ClientMessageID string           `json:"clientMessageId"`
	ConversationID  wireID           `json:"conversationId"`
	Sender          wireUser         `json:"sender"`
	Message         string           `json:"message"`
	Attachments     []wireAttachment `json:"attachments"`
	CreatedAt       wireTime         `json:"createdAt"`
}

type wirePagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type conversationsResponse struct {
	Conversations []wireConversation `json:"conversations"`
	Pagination    wirePagination     `json:"pagination"`
}

type messagesResponse struct {
	Messages   []wireMessage  `json:"messages"`
	Pagination wirePagination `json:"pagination"`
}

type unreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}

type favoriteResponse struct {
	IsFavorite bool `json:"isFavorite"`
}

type searchUsersResponse struct {
	Users []wireUser `json:"users"`
}

func (w *wireConversation) toThread() chat.Thread {
	return chat.Thread{
		ID:            string(w.ID),
		OtherParty:    w.OtherParty.toParty(),
		LastMessageAt: w.LastMessageAt.Time,
		UnreadCount:   w.UnreadCount,
		IsFavorite:    w.IsFavorite,
		About:         w.About,
	}
}

func (w *wireUser) toParty() chat.Party {
	return chat.Party{
		ID:          chat.Identity(w.ID),
		DisplayName: w.DisplayName,
		AvatarURL:   w.AvatarURL,
		Email:       w.Email,
	}
}

func (w *wireMessage) toMessage() chat.Message {
	m := chat.Message{
		ID:              string(w.ID),
		ClientMessageID: w.ClientMessageID,
		ThreadID:        string(w.ConversationID),
		AuthorID:        chat.Identity(w.Sender.ID),
		Text:            w.Message,
		CreatedAt:       w.CreatedAt.Time,
	}
	for _, a := range w.Attachments {
		mime := a.MimeType
		if mime == "" {
			mime = a.Type
		}
		m.Attachments = append(m.Attachments, chat.Attachment{
			ID:       string(a.ID),
			URL:      a.URL,
			MimeType: mime,
			Filename: a.Filename,
		})
	}
	return m
}

// DecodeMessage parses a raw message payload (shared with the push
// channel, which delivers the same shape inside new_message frames).
func DecodeMessage(data []byte) (chat.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return chat.Message{}, err
	}
	return w.toMessage(), nil
}

// DecodeSender extracts the sender of a raw message payload as a Party,
// used when a push message has to synthesize an unknown thread summary.
func DecodeSender(data []byte) (chat.Party, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return chat.Party{}, err
	}
	return w.Sender.toParty(), nil
}
