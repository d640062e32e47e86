// ABOUTME: HTTP client for the conversations REST API
// ABOUTME: Page-based listing, message sends, read marks, favorites, search

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/parley/internal/chat"
)

// ErrUnauthorized is returned on 401-class responses. Callers should
// invalidate the session rather than retry.
var ErrUnauthorized = errors.New("unauthorized")

const (
	defaultTimeout  = 15 * time.Second
	minSearchLength = 2
)

// Page is the (page, totalPages) cursor echoed by paginated endpoints.
type Page struct {
	Page  int
	Pages int
}

// ThreadPage is one page of the conversation list.
type ThreadPage struct {
	Threads []chat.Thread
	Page    Page
}

// MessagePage is one page of a thread's history.
type MessagePage struct {
	Messages []chat.Message
	Page     Page
}

// SendRequest is an outbound message write. ClientMessageID is always
// set so the server can echo it back over the push channel.
type SendRequest struct {
	Message         string           `json:"message"`
	ClientMessageID string           `json:"clientMessageId"`
	Attachments     []SendAttachment `json:"attachments,omitempty"`
}

// SendAttachment is the wire shape of an asset reference on a send.
type SendAttachment struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

// CreateConversationRequest starts a new thread with another user.
type CreateConversationRequest struct {
	OtherUserID    string `json:"otherUserId"`
	ServiceID      string `json:"serviceId,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	InitialMessage string `json:"initialMessage,omitempty"`
}

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the conversations REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// New creates an API client. Pass nil logger for default.
func New(baseURL string, tokens TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		tokens:  tokens,
		logger:  logger.With("component", "api"),
	}
}

// ListConversations fetches one page of the thread list.
func (c *Client) ListConversations(ctx context.Context, page int) (*ThreadPage, error) {
	var resp conversationsResponse
	path := fmt.Sprintf("/conversations?page=%d", page)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := &ThreadPage{Page: Page(resp.Pagination)}
	for _, w := range resp.Conversations {
		out.Threads = append(out.Threads, w.toThread())
	}
	return out, nil
}

// ListMessages fetches one page of a thread's history, oldest first
// within the page.
func (c *Client) ListMessages(ctx context.Context, threadID string, page int) (*MessagePage, error) {
	var resp messagesResponse
	path := fmt.Sprintf("/conversations/%s/messages?page=%d", url.PathEscape(threadID), page)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := &MessagePage{Page: Page(resp.Pagination)}
	for _, w := range resp.Messages {
		out.Messages = append(out.Messages, w.toMessage())
	}
	return out, nil
}

// CreateConversation starts a thread with another user and returns its
// summary.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (chat.Thread, error) {
	var resp wireConversation
	if err := c.do(ctx, http.MethodPost, "/conversations", req, &resp); err != nil {
		return chat.Thread{}, err
	}
	return resp.toThread(), nil
}

// SendMessage submits a message write. The accepted message itself
// arrives later over the push channel carrying the clientMessageId.
func (c *Client) SendMessage(ctx context.Context, threadID string, req SendRequest) error {
	path := fmt.Sprintf("/conversations/%s/message", url.PathEscape(threadID))
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// MarkRead marks the thread read server-side.
func (c *Client) MarkRead(ctx context.Context, threadID string) error {
	path := fmt.Sprintf("/conversations/%s/read", url.PathEscape(threadID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ToggleFavorite flips the server-side favorite flag and returns the
// new value.
func (c *Client) ToggleFavorite(ctx context.Context, threadID string) (bool, error) {
	var resp favoriteResponse
	path := fmt.Sprintf("/conversations/%s/favorite", url.PathEscape(threadID))
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.IsFavorite, nil
}

// SearchUsers returns candidate users to start a thread with. Queries
// shorter than the server's minimum come back empty without a request.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]chat.Party, error) {
	if len(query) < minSearchLength {
		return nil, nil
	}

	var resp searchUsersResponse
	path := "/conversations/search/users?query=" + url.QueryEscape(query)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]chat.Party, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, u.toParty())
	}
	return out, nil
}

// UnreadCount fetches the server's global unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp unreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/conversations/unread/count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

// errNotFound marks 404 responses internally; public methods translate
// it to an empty result where the endpoint treats absence as empty.
var errNotFound = errors.New("not found")

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetching token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode >= 400:
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
