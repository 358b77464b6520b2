// ABOUTME: Session records and the SessionStore contract shared by memory and Redis backends
// ABOUTME: Sessions are immutable; re-authenticating creates a new record instead of updating

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by SessionStore.Get for unknown ids.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is how long a session authorizes protected calls.
const DefaultSessionTTL = time.Hour

// Session binds a session id to an authenticated identity.
type Session struct {
	ID        string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Age returns how long the session has existed at now.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Expired reports whether the session is older than ttl. A session is still
// valid at exactly ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return s.Age(now) > ttl
}

// SessionStore is the registry of sessions. Implementations must be safe for
// concurrent use and must make a created session visible to every later Get.
type SessionStore interface {
	// Create stores a new session with a fresh unpredictable id.
	Create(ctx context.Context, userID, username, token string) (*Session, error)

	// Get returns the session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// Sweep deletes every session expired at now and returns their ids.
	Sweep(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// newSessionID returns a random (v4) UUID.
func newSessionID() string {
	return uuid.New().String()
}

// userNamespace scopes name-based user ids.
var userNamespace = uuid.MustParse("6f1c2d8e-5b7a-4e0f-9c3d-2a8b4e6f1d09")

// DeriveUserID maps a username to a stable user id. The same username always
// yields the same id; distinct usernames do not collide in practice.
func DeriveUserID(username string) string {
	return "user_" + uuid.NewSHA1(userNamespace, []byte(username)).String()
}
