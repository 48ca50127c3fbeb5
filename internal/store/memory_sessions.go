/**
 * @description
 * This file implements the in-memory SessionStore. Sessions live in a map
 * guarded by a single mutex; expiry is enforced opportunistically on every
 * read rather than by a background timer, which keeps the externally
 * observable guarantee ("an idle-expired session is never returned") without
 * any goroutine to manage.
 *
 * @notes
 * - Session replication across nodes is out of scope; a conversation is
 *   pinned to one process for its (short) lifetime.
 * - Last-writer-wins is acceptable for session state; balance consistency is
 *   the Ledger's job, not this store's.
 */

package store

import (
	"sync"
	"time"

	"github.com/oneubank/ussd-service/internal/domain"
)

// StateMain is the root node of the menu graph; every new session starts
// there. Declared here so the store can position fresh sessions without
// importing the state machine.
const StateMain = "main"

// DefaultIdleTimeout is how long an untouched session survives before the
// sweep removes it.
const DefaultIdleTimeout = 5 * time.Minute

// MemorySessionStore is a process-local SessionStore.
type MemorySessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*domain.Session
	idleTimeout time.Duration

	now func() time.Time // injectable clock for tests
}

// NewMemorySessionStore creates a session store with the given idle timeout.
// A non-positive timeout falls back to DefaultIdleTimeout.
func NewMemorySessionStore(idleTimeout time.Duration) *MemorySessionStore {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &MemorySessionStore{
		sessions:    make(map[string]*domain.Session),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// GetOrCreate returns the resident session for sessionID or creates one at
// the root menu state. Expired sessions are swept before the lookup, so an
// abandoned conversation always restarts from the root.
//
// The caller receives a private deep copy: two callbacks racing on one
// session id each step their own copy, and whichever Save lands last wins.
func (s *MemorySessionStore) GetOrCreate(sessionID, phoneNumber string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone()
	}

	sess := &domain.Session{
		SessionID:     sessionID,
		PhoneNumber:   phoneNumber,
		State:         StateMain,
		Scratch:       make(map[string]string),
		CreatedAt:     now,
		LastTouchedAt: now,
	}
	s.sessions[sessionID] = sess
	return sess.Clone()
}

// Save upserts the session and refreshes its idle deadline. A deep copy is
// stored, so the caller's object stays private after the save too.
func (s *MemorySessionStore) Save(session *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.LastTouchedAt = s.now()
	s.sessions[session.SessionID] = session.Clone()
}

// Evict removes the session immediately.
func (s *MemorySessionStore) Evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// SweepExpired removes every session whose LastTouchedAt is older than the
// idle timeout relative to now. Safe to call concurrently with the other
// methods.
func (s *MemorySessionStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(now)
}

func (s *MemorySessionStore) sweepLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastTouchedAt) > s.idleTimeout {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
