// Package notify keeps the transient notifications shown to a reviewer.
package notify

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/cardscan/internal/domain"
)

// DefaultTTL is how long a notification stays visible unless dismissed.
const DefaultTTL = 5 * time.Second

// Center is a set of notifications keyed by ID. Each entry removes itself
// when its timer fires; Close cancels every pending removal.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*entry
	seq     uint64
	closed  bool
}

type entry struct {
	n     domain.Notification
	seq   uint64
	timer *time.Timer
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Push adds a notification and returns its ID. Pushing to a closed center
// is a no-op that still returns an ID.
func (c *Center) Push(severity domain.Severity, message string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	if c.closed {
		return id
	}

	now := c.now()
	c.seq++
	e := &entry{
		n: domain.Notification{
			ID:        id,
			Message:   message,
			Severity:  severity,
			CreatedAt: now,
			ExpiresAt: now.Add(c.ttl),
		},
		seq: c.seq,
	}
	e.timer = time.AfterFunc(c.ttl, func() { c.expire(id, e) })
	c.entries[id] = e
	return id
}

func (c *Center) Info(message string)    { c.Push(domain.SeverityInfo, message) }
func (c *Center) Success(message string) { c.Push(domain.SeveritySuccess, message) }
func (c *Center) Error(message string)   { c.Push(domain.SeverityError, message) }

// Dismiss removes a notification before it expires. Unknown IDs are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		e.timer.Stop()
		delete(c.entries, id)
	}
}

// List returns the live notifications in arrival order.
func (c *Center) List() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		live = append(live, e)
	}
	slices.SortFunc(live, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]domain.Notification, len(live))
	for i, e := range live {
		out[i] = e.n
	}
	return out
}

// Close stops all pending expiry timers and drops every notification.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, e := range c.entries {
		e.timer.Stop()
		delete(c.entries, id)
	}
	c.closed = true
}

// expire only removes the entry it was scheduled for, so a fired timer that
// lost the race with Dismiss cannot remove anything else.
func (c *Center) expire(id string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[id]; ok && cur == e {
		delete(c.entries, id)
	}
}
