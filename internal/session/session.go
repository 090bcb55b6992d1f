// Package session keeps per-browser flow state in memory, keyed by a
// cookie. Nothing here survives a restart.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/cardscan/internal/notify"
	"github.com/vbonduro/cardscan/internal/service"
)

const CookieName = "cardscan_session"

// Session is one reviewer's capture flow, list flow and notifications.
type Session struct {
	ID      string
	Capture *service.CaptureFlow
	List    *service.ListFlow
	Notes   *notify.Center

	lastSeen time.Time
}

// Factory builds the flows for a new session around its notification
// center.
type Factory func(notes *notify.Center) (*service.CaptureFlow, *service.ListFlow)

type Registry struct {
	newFlows Factory
	idle     time.Duration
	ttl      time.Duration
	secure   bool
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. Sessions unused for longer than
// idle are evicted by Sweep; ttl is the notification lifetime.
func NewRegistry(newFlows Factory, idle, ttl time.Duration, secureCookie bool, logger *slog.Logger) *Registry {
	return &Registry{
		newFlows: newFlows,
		idle:     idle,
		ttl:      ttl,
		secure:   secureCookie,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Load returns the session named by the request cookie, creating one and
// setting the cookie when it is missing or unknown.
func (r *Registry) Load(w http.ResponseWriter, req *http.Request) *Session {
	if c, err := req.Cookie(CookieName); err == nil {
		if s, ok := r.Get(c.Value); ok {
			return s
		}
	}
	s := r.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = r.now()
	}
	return s, ok
}

func (r *Registry) Create() *Session {
	notes := notify.NewCenter(r.ttl)
	capture, list := r.newFlows(notes)
	s := &Session{
		ID:      uuid.NewString(),
		Capture: capture,
		List:    list,
		Notes:   notes,
	}

	r.mu.Lock()
	s.lastSeen = r.now()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Debug("session created", "session_id", s.ID)
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the idle timeout and returns
// how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Notes.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("evicted idle sessions", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close drops every session and cancels their pending notification
// removals.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Notes.Close()
	}
}
