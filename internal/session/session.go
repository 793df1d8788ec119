// Package session implements the cookie-keyed per-client variable bag
// described in spec.md §4.B: a map from opaque session id to a variable bag,
// evicted lazily on access and by a periodic sweep.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CookieName is the cookie the store expects to find (or mint) the session
// id under.
const CookieName = "-emberweb-session-"

// Session is a per-client variable bag keyed by an opaque cookie value.
type Session struct {
	ID      string
	vars    map[string]any
	expires time.Time
	mu      sync.Mutex
}

// Get reads a session variable.
func (s *Session) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

// Set writes a session variable.
func (s *Session) Set(name string, val any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = val
}

// Remove deletes a session variable.
func (s *Session) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vars, name)
}

// Store is the process-wide session table. All methods are safe for
// concurrent use from multiple connection goroutines; the table itself is
// the one piece of shared mutable state in the per-connection request path,
// and is therefore guarded rather than partitioned.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	idleTTL    time.Duration
	log        *zap.Logger
	stopSweep  chan struct{}
	sweepOnce  sync.Once
}

// New creates a Store whose sessions expire after idleTTL of inactivity and
// starts a background sweep goroutine that evicts expired sessions every
// sweepInterval. Call Close to stop the sweep goroutine.
func New(idleTTL, sweepInterval time.Duration, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		sessions:  make(map[string]*Session),
		idleTTL:   idleTTL,
		log:       log,
		stopSweep: make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

func (s *Store) sweepLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			n := s.sweep()
			if n > 0 {
				s.log.Debug("session sweep evicted expired sessions", zap.Int("count", n))
			}
		case <-s.stopSweep:
			return
		}
	}
}

func (s *Store) sweep() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Close stops the background sweep goroutine. Safe to call more than once.
func (s *Store) Close() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
}

// newID draws a cryptographically random, URL-safe token. uuid.New() reads
// from crypto/rand by default, satisfying spec.md §4.B's prohibition on the
// platform's weak, time-seeded PRNG.
func newID() string {
	return uuid.New().String()
}

// Get returns the session for id if present and unexpired, refreshing its
// expiry on access.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(sess.expires) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, false
	}
	s.mu.Lock()
	sess.expires = time.Now().Add(s.idleTTL)
	s.mu.Unlock()
	return sess, true
}

// Create mints a fresh session and returns it along with its id (the value
// to place in the session cookie).
func (s *Store) Create() *Session {
	sess := &Session{
		ID:      newID(),
		vars:    make(map[string]any),
		expires: time.Now().Add(s.idleTTL),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Destroy removes a session outright. Logout does not call it; it only
// clears the cached identity.
func (s *Store) Destroy(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live sessions, used by the admin introspection
// surface.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
