package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livetemplate/cssplay/internal/cache"
	"github.com/livetemplate/cssplay/internal/playground"
	"github.com/livetemplate/cssplay/internal/sandbox"
	"github.com/livetemplate/cssplay/internal/store"
)

// ClientCookie identifies a browser across reloads. Its value namespaces the
// client's persisted toggles and source.
const ClientCookie = "cssplay_client"

// sessionIdleTimeout is how long a session without connections is kept.
const sessionIdleTimeout = time.Hour

// clientSession is a playground session owned by one browser client.
type clientSession struct {
	*playground.Session
	lastSeen time.Time
	conns    int
}

// Sessions maps client ids to their playground sessions.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*clientSession
	store    *store.Adapter
	sandbox  *sandbox.Sandbox
	cache    *cache.ArtifactCache
	source   func() string
	debug    bool
}

// NewSessions creates a session table. source returns the default editor
// content for clients with nothing persisted.
func NewSessions(st *store.Adapter, box *sandbox.Sandbox, c *cache.ArtifactCache, source func() string, debug bool) *Sessions {
	return &Sessions{
		sessions: make(map[string]*clientSession),
		store:    st,
		sandbox:  box,
		cache:    c,
		source:   source,
		debug:    debug,
	}
}

// Get returns the session for clientID, creating it on first use.
func (m *Sessions) Get(clientID string) *playground.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(clientID).Session
}

// acquire marks a connection as using the session. The lookup and the
// connection count share one critical section so Expire cannot drop the
// session in between.
func (m *Sessions) acquire(clientID string) *playground.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.getLocked(clientID)
	cs.conns++
	return cs.Session
}

func (m *Sessions) getLocked(clientID string) *clientSession {
	cs, ok := m.sessions[clientID]
	if !ok {
		cs = &clientSession{Session: playground.New(playground.Config{
			Store:         m.store.Namespace(clientID),
			Sandbox:       m.sandbox,
			Cache:         m.cache,
			DefaultSource: m.source(),
			Debug:         m.debug,
		})}
		m.sessions[clientID] = cs
	}
	cs.lastSeen = time.Now()
	return cs
}

func (m *Sessions) release(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs, ok := m.sessions[clientID]; ok {
		cs.conns--
		cs.lastSeen = time.Now()
	}
}

// Len returns the number of live sessions.
func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Each calls fn for every session.
func (m *Sessions) Each(fn func(clientID string, s *playground.Session)) {
	m.mu.Lock()
	all := make(map[string]*playground.Session, len(m.sessions))
	for id, cs := range m.sessions {
		all[id] = cs.Session
	}
	m.mu.Unlock()

	for id, s := range all {
		fn(id, s)
	}
}

// Expire drops sessions that have had no connection since before cutoff.
// Their persisted state survives in the store.
func (m *Sessions) Expire(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, cs := range m.sessions {
		if cs.conns <= 0 && cs.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// cleanupLoop removes idle sessions every 5 minutes until ctx is done.
func (m *Sessions) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Expire(time.Now().Add(-sessionIdleTimeout))
		case <-ctx.Done():
			return
		}
	}
}

// requestClientID returns the id carried by the request's cookie.
func requestClientID(r *http.Request) (string, bool) {
	c, err := r.Cookie(ClientCookie)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func clientCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     ClientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// clientID returns the id carried by the request's cookie, issuing a new
// one when absent or malformed.
func clientID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := requestClientID(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, clientCookie(id))
	return id
}
