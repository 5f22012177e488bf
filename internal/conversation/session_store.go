package conversation

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory. Everything is lost on
// restart. Sessions idle for longer than the TTL expire the same way Redis
// keys do: Create and Save refresh the clock, Get does not.
type MemorySessionStore struct {
	mu        sync.Mutex
	sessions  map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type memoryEntry struct {
	session *Session
	touched time.Time
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore builds a store whose sessions expire after ttl of
// inactivity. A non-positive ttl means DefaultSessionTTL.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// sweep drops expired entries at most once per TTL window. Callers hold mu.
func (s *MemorySessionStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}

func (s *MemorySessionStore) expired(entry memoryEntry, now time.Time) bool {
	return now.Sub(entry.touched) >= s.ttl
}

// lookup returns the live entry for id, evicting it if it has expired.
// Callers hold mu.
func (s *MemorySessionStore) lookup(id string, now time.Time) (memoryEntry, bool) {
	entry, ok := s.sessions[id]
	if !ok {
		return memoryEntry{}, false
	}
	if s.expired(entry, now) {
		delete(s.sessions, id)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemorySessionStore) Create(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	if _, ok := s.lookup(session.ID, now); ok {
		return ErrSessionExists
	}
	s.sessions[session.ID] = memoryEntry{session: session.Clone(), touched: now}
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookup(id, s.now())
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)
	if _, ok := s.lookup(session.ID, now); !ok {
		return ErrSessionNotFound
	}
	s.sessions[session.ID] = memoryEntry{session: session.Clone(), touched: now}
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(id, s.now()); !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// TTL reports the idle expiry applied to sessions.
func (s *MemorySessionStore) TTL() time.Duration {
	return s.ttl
}

// Len reports how many sessions are held, expired ones included until the
// next sweep.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
