// ABOUTME: TTL and size bounded seen-key cache for push frame dedup
// ABOUTME: Seen is atomic check-and-mark; expired entries sweep inline

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache remembers keys for a TTL window, holding at most maxSize of
// them. There is no background goroutine: expired entries are swept
// while marking, which keeps the cache safe to drop without a Close.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys oldest-first
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a dedupe cache with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen atomically checks whether key was marked within the TTL window
// and marks it if not. Returns true for a duplicate, false for a key
// seen for the first time (now marked).
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.seen[key]; ok && now.Sub(e.at) < c.ttl {
		e.at = now
		c.order.MoveToBack(e.elem)
		return true
	}

	c.sweep(now)
	if e, ok := c.seen[key]; ok {
		// Key existed but had expired: refresh it
		e.at = now
		c.order.MoveToBack(e.elem)
		return false
	}

	for len(c.seen) >= c.maxSize {
		front := c.order.Front()
		if front == nil {
			break
		}
		c.order.Remove(front)
		delete(c.seen, front.Value.(string))
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &entry{at: now, elem: elem}
	return false
}

// Len returns the number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// sweep drops expired entries from the oldest end. Must hold mu.
func (c *Cache) sweep(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		key := front.Value.(string)
		e := c.seen[key]
		if e == nil {
			c.order.Remove(front)
			continue
		}
		if now.Sub(e.at) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}
