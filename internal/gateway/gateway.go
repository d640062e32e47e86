// ABOUTME: Gateway owns the push-channel connection and subscriber fan-out
// ABOUTME: Idempotent connect, ordered dispatch, reconnect with fresh creds

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/parley/internal/dedupe"
)

// ErrNotConnected is returned by Close when no connection was ever
// established.
var ErrNotConnected = errors.New("gateway not connected")

// Handler receives push events in delivery order. A handler may call
// its own unsubscribe function while being invoked.
type Handler func(*Event)

// Options tune reconnect backoff and frame deduplication.
type Options struct {
	BackoffMin time.Duration
	BackoffMax time.Duration
	DedupeTTL  time.Duration
	DedupeSize int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.BackoffMin <= 0 {
		out.BackoffMin = time.Second
	}
	if out.BackoffMax <= 0 {
		out.BackoffMax = 30 * time.Second
	}
	if out.DedupeTTL <= 0 {
		out.DedupeTTL = 5 * time.Minute
	}
	if out.DedupeSize <= 0 {
		out.DedupeSize = 4096
	}
	return out
}

// Gateway multiplexes one authenticated push-channel connection across
// any number of subscribers.
type Gateway struct {
	transport Transport
	creds     CredentialSource
	seen      *dedupe.Cache
	opts      Options
	logger    *slog.Logger

	mu        sync.RWMutex
	subs      map[string]Handler
	spill     int
	token     string
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a gateway for one signed-in identity. Pass nil opts or
// logger for defaults.
func New(transport Transport, creds CredentialSource, opts *Options, logger *slog.Logger) *Gateway {
	if opts == nil {
		opts = &Options{}
	}
	o := opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		transport: transport,
		creds:     creds,
		seen:      dedupe.New(o.DedupeTTL, o.DedupeSize),
		opts:      o,
		logger:    logger.With("component", "gateway"),
		subs:      make(map[string]Handler),
	}
}

// Connect establishes the push channel and starts the reader loop.
// Calling Connect while already connected is a no-op.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}

	token, err := freshToken(ctx, g.creds, g.token, time.Now())
	if err != nil {
		g.mu.Unlock()
		return err
	}

	conn, err := g.transport.Dial(ctx, token)
	if err != nil {
		g.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g.token = token
	g.connected = true
	g.cancel = cancel
	g.done = make(chan struct{})
	done := g.done
	g.mu.Unlock()

	g.dispatch(&Event{Type: EventConnect})
	go func() {
		defer close(done)
		g.run(runCtx, conn)
	}()
	return nil
}

// Close tears the connection down and stops the reader loop.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return ErrNotConnected
	}
	g.connected = false
	cancel := g.cancel
	done := g.done
	g.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Subscribe registers a handler for push events and returns its
// unsubscribe function. Unsubscribing is safe at any time, including
// from inside the handler itself.
func (g *Gateway) Subscribe(h Handler) func() {
	id := uuid.New().String()

	g.mu.Lock()
	g.subs[id] = h
	g.mu.Unlock()

	g.logger.Debug("subscriber added", "sub_id", id)

	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// DrainSpill returns and resets the count of message events that
// arrived while nothing was subscribed.
func (g *Gateway) DrainSpill() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.spill
	g.spill = 0
	return n
}

// run reads frames until the context is cancelled, reconnecting with a
// refreshed credential after transport failures.
func (g *Gateway) run(ctx context.Context, conn Conn) {
	defer conn.Close()

	backoff := g.opts.BackoffMin
	for {
		event, err := conn.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				g.dispatch(&Event{Type: EventDisconnect})
				return
			}

			g.logger.Warn("push channel dropped", "error", err)
			g.dispatch(&Event{Type: EventDisconnect})

			conn.Close()
			next, rerr := g.reconnect(ctx, &backoff)
			if rerr != nil {
				return
			}
			conn = next
			g.dispatch(&Event{Type: EventReconnect})
			continue
		}

		backoff = g.opts.BackoffMin
		g.dispatch(event)
	}
}

// reconnect redials with backoff until it succeeds or ctx is done.
// The credential is refreshed first whenever the held one went stale.
func (g *Gateway) reconnect(ctx context.Context, backoff *time.Duration) (Conn, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(*backoff):
		}

		if *backoff < g.opts.BackoffMax {
			*backoff = min(*backoff*2, g.opts.BackoffMax)
		}

		g.mu.RLock()
		current := g.token
		g.mu.RUnlock()

		token, err := freshToken(ctx, g.creds, current, time.Now())
		if err != nil {
			g.logger.Warn("credential refresh failed", "error", err)
			continue
		}

		conn, err := g.transport.Dial(ctx, token)
		if err != nil {
			g.logger.Warn("reconnect failed", "error", err)
			continue
		}

		g.mu.Lock()
		g.token = token
		g.mu.Unlock()

		return conn, nil
	}
}

// dispatch fans one event out to the current subscribers, in order of
// arrival. With zero subscribers a message event only bumps the spill
// counter; full state is deliberately not materialized.
func (g *Gateway) dispatch(e *Event) {
	if key := e.DedupeKey(); key != "" && g.seen.Seen(key) {
		g.logger.Debug("duplicate push frame absorbed", "key", key)
		return
	}

	g.mu.Lock()
	if len(g.subs) == 0 {
		if e.Type == EventNewMessage || e.Type == EventNotification {
			g.spill++
		}
		g.mu.Unlock()
		return
	}
	// Snapshot so a handler can unsubscribe (itself or others) mid-dispatch
	handlers := make([]Handler, 0, len(g.subs))
	for _, h := range g.subs {
		handlers = append(handlers, h)
	}
	g.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}
