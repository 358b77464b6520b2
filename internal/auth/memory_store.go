// ABOUTME: In-memory SessionStore guarded by an RWMutex
// ABOUTME: Default backend; sessions live only as long as the process

package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty store. A nil clock means time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      now,
	}
}

func (s *MemoryStore) Create(_ context.Context, userID, username, token string) (*Session, error) {
	sess := &Session{
		ID:        newSessionID(),
		UserID:    userID,
		Username:  username,
		Token:     token,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	// Callers get a copy so the stored record cannot be mutated.
	out := *sess
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *sess
	return &out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time, ttl time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var swept []string
	for id, sess := range s.sessions {
		if sess.Expired(now, ttl) {
			delete(s.sessions, id)
			swept = append(swept, id)
		}
	}
	return swept, nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Close() error {
	return nil
}
