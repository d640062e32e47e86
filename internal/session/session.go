// ABOUTME: Session wires gateway, REST client and prefs into the stores
// ABOUTME: Holds the global unread counter and the active-thread cell

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/parley/internal/api"
	"github.com/2389/parley/internal/chat"
	"github.com/2389/parley/internal/gateway"
	"github.com/2389/parley/internal/prefs"
)

// API is what the session needs from the REST layer.
type API interface {
	ListConversations(ctx context.Context, page int) (*api.ThreadPage, error)
	ListMessages(ctx context.Context, threadID string, page int) (*api.MessagePage, error)
	CreateConversation(ctx context.Context, req api.CreateConversationRequest) (chat.Thread, error)
	SendMessage(ctx context.Context, threadID string, req api.SendRequest) error
	MarkRead(ctx context.Context, threadID string) error
	ToggleFavorite(ctx context.Context, threadID string) (bool, error)
	SearchUsers(ctx context.Context, query string) ([]chat.Party, error)
	UnreadCount(ctx context.Context) (int, error)
}

// PushSource is what the session needs from the gateway.
type PushSource interface {
	Subscribe(h gateway.Handler) func()
	DrainSpill() int
}

// PrefStore is what the session needs from the preference repository.
type PrefStore interface {
	SetFavorite(ctx context.Context, threadID string, on bool) error
	SetPinned(ctx context.Context, threadID string, on bool) error
	SetArchived(ctx context.Context, threadID string, on bool) error
	All(ctx context.Context) (map[string]prefs.Flags, error)
}

// Session maintains a live, consistent view of one user's threads and
// messages from the REST API and the push channel combined.
type Session struct {
	api    API
	push   PushSource
	prefs  PrefStore
	self   chat.Identity
	logger *slog.Logger

	threads  *chat.ThreadStore
	messages *chat.MessageStore

	mu          sync.Mutex
	active      string // id of the thread currently open, or ""
	unread      int    // global unread counter
	local       map[string]prefs.Flags
	threadPage  api.Page
	listGen     int
	listLoading bool
	msgPages    map[string]api.Page
	inflight    map[string]bool // per-thread loadOlder single-flight
	unsubscribe func()
}

// New creates a session for the signed-in identity. Pass nil logger
// for default.
func New(apiClient API, push PushSource, prefStore PrefStore, self chat.Identity, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		api:      apiClient,
		push:     push,
		prefs:    prefStore,
		self:     self,
		logger:   logger.With("component", "session"),
		threads:  chat.NewThreadStore(),
		messages: chat.NewMessageStore(),
		local:    make(map[string]prefs.Flags),
		msgPages: make(map[string]api.Page),
		inflight: make(map[string]bool),
	}
}

// Attach loads persisted preferences, seeds the unread counter from
// the server plus anything that spilled while nothing was subscribed,
// and starts consuming push events. Idempotent.
func (s *Session) Attach(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	flags, err := s.prefs.All(ctx)
	if err != nil {
		return err
	}

	unread, err := s.api.UnreadCount(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.local = flags
	s.unread = unread + s.push.DrainSpill()
	s.unsubscribe = s.push.Subscribe(s.handleEvent)
	s.mu.Unlock()
	return nil
}

// Detach stops consuming push events. Store contents stay intact.
func (s *Session) Detach() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Threads returns the visible thread list for the tab, ordered.
func (s *Session) Threads(tab chat.Tab) []chat.Thread {
	return s.threads.List(tab)
}

// Thread returns one thread summary.
func (s *Session) Thread(id string) (chat.Thread, bool) {
	return s.threads.Get(id)
}

// Messages returns the thread's message sequence, oldest first.
func (s *Session) Messages(threadID string) []chat.Message {
	return s.messages.List(threadID)
}

// Unread returns the global unread counter.
func (s *Session) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// ActiveThread returns the id of the currently open thread, or "".
func (s *Session) ActiveThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// SearchUsers returns candidate users to start a new thread with.
func (s *Session) SearchUsers(ctx context.Context, query string) ([]chat.Party, error) {
	return s.api.SearchUsers(ctx, query)
}

// CreateThread starts a conversation with another user and registers
// its summary locally.
func (s *Session) CreateThread(ctx context.Context, req api.CreateConversationRequest) (chat.Thread, error) {
	thread, err := s.api.CreateConversation(ctx, req)
	if err != nil {
		return chat.Thread{}, err
	}
	s.upsertWithFlags(thread)
	return thread, nil
}

// upsertWithFlags merges server state with local preference flags
// before the thread enters the store.
func (s *Session) upsertWithFlags(t chat.Thread) {
	s.mu.Lock()
	local := s.local[t.ID]
	s.mu.Unlock()

	effective := prefs.Merge(prefs.Flags{Favorite: t.IsFavorite}, local)
	t.IsFavorite = effective.Favorite

	s.threads.Upsert(t)
	// Upsert retains existing pin/archive flags; set them explicitly so
	// a first sighting honors persisted preferences too
	pinned, archived := effective.Pinned, effective.Archived
	if pinned || archived {
		_ = s.threads.Patch(t.ID, chat.ThreadPatch{
			IsPinned:   &pinned,
			IsArchived: &archived,
		})
	}
}
