package conversation

import (
	"sync"
	"time"
)

// Store keeps at most one Session per user. Sessions are stored by value, so a
// reader always sees a complete record: the one before a transition or the one
// after it. Callers serialize work per user (see Engine); the store itself only
// guards the map, and its critical sections never block on I/O.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewStore constructs an empty in-memory Store.
func NewStore() *Store {
	return &Store{sessions: make(map[int64]Session)}
}

// Get returns the user's session if one is in progress.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// GetOrCreate returns the user's session, creating one at the email stage if absent.
// created reports whether a new session was stored.
func (s *Store) GetOrCreate(userID int64, now time.Time) (sess Session, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[userID]; ok {
		return existing, false
	}
	sess = NewSession(userID, now)
	s.sessions[userID] = sess
	return sess, true
}

// Replace stores sess as the user's session and returns the one it displaced, if any.
func (s *Store) Replace(sess Session) (prev Session, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, replaced = s.sessions[sess.UserID]
	s.sessions[sess.UserID] = sess
	return prev, replaced
}

// Remove deletes the user's session and reports whether one existed.
func (s *Store) Remove(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	return sess, ok
}

// Stage returns the user's current stage, or StageNone without a session.
func (s *Store) Stage(userID int64) Stage {
	if sess, ok := s.Get(userID); ok {
		return sess.Stage
	}
	return StageNone
}

// Len returns the number of sessions in progress.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
