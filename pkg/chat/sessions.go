package chat

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSession is used by clients that send no session id.
const DefaultSession = "default"

// evictEvery is how many lookups pass between sweeps for idle sessions.
const evictEvery = 100

type session struct {
	conv     *Conversation
	lastSeen time.Time
}

// Sessions keeps one Conversation per client. Clients idle longer than the
// TTL are forgotten; the default session never is.
type Sessions struct {
	gw        Gateway
	publisher Publisher
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	convs   map[string]*session
	lookups int
}

// NewSessions creates an empty session table. A ttl of zero keeps every
// session until Reset.
func NewSessions(gw Gateway, publisher Publisher, ttl time.Duration) *Sessions {
	return &Sessions{
		gw:        gw,
		publisher: publisher,
		ttl:       ttl,
		now:       time.Now,
		convs:     make(map[string]*session),
	}
}

// Get returns the conversation of id, starting one on first use.
func (s *Sessions) Get(id string) *Conversation {
	if id == "" {
		id = DefaultSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups++
	if s.lookups%evictEvery == 0 {
		s.evictLocked()
	}

	e, ok := s.convs[id]
	if !ok {
		c := New(s.gw, s.publisher)
		c.now = s.now
		e = &session{conv: c}
		s.convs[id] = e
		slog.Debug("Chat: Session started", "session", id, "sessions", len(s.convs))
	}
	e.lastSeen = s.now()
	return e.conv
}

// Reset drops the conversation of id; the next Get starts a fresh one.
func (s *Sessions) Reset(id string) {
	if id == "" {
		id = DefaultSession
	}
	s.mu.Lock()
	delete(s.convs, id)
	s.mu.Unlock()
}

// Evict forgets sessions idle longer than the TTL.
func (s *Sessions) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
}

func (s *Sessions) evictLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.convs {
		if id != DefaultSession && e.lastSeen.Before(cutoff) {
			delete(s.convs, id)
		}
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}
