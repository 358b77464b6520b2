// ABOUTME: Authorization gate tracking one active session per transport connection
// ABOUTME: Classifies operations, enforces session TTL lazily, and reports structured denials

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Access classifies an operation.
type Access int

const (
	// AccessProtected operations need a valid, non-expired active session.
	AccessProtected Access = iota
	// AccessPublic operations bypass the gate.
	AccessPublic
)

func (a Access) String() string {
	if a == AccessPublic {
		return "public"
	}
	return "protected"
}

// Classifier resolves the access class of an operation name.
type Classifier interface {
	Access(op string) (Access, bool)
}

// Observer receives session lifecycle events (metrics).
type Observer interface {
	SessionCreated()
	SessionEnded(reason string)
	Denied(kind string)
}

// Reasons passed to Observer.SessionEnded.
const (
	EndLogout   = "logout"
	EndExpired  = "expired"
	EndReleased = "released"
	EndSwept    = "swept"
)

// GateConfig holds the gate's collaborators.
type GateConfig struct {
	Store       SessionStore
	Codec       *Codec
	Credentials *Credentials // optional
	Classifier  Classifier
	TTL         time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
	Observer    Observer // optional
}

// Status is the read-only view of a connection's authentication state.
type Status struct {
	Authenticated bool
	Session       *Session
	Age           time.Duration
	ExpiresIn     time.Duration
	Expired       bool
}

// Gate owns the active-session pointers. Each transport connection has at
// most one active session; a pointer never outlives a purge of its record.
type Gate struct {
	store       SessionStore
	codec       *Codec
	credentials *Credentials
	classifier  Classifier
	ttl         time.Duration
	now         func() time.Time
	logger      *slog.Logger
	observer    Observer

	// mu serializes Authorize, Logout and Release including their store
	// calls, so a pointer is never read while its record is being purged.
	mu     sync.Mutex
	active map[string]string // connection -> session id
}

// NewGate creates a gate with the given configuration.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Codec == nil {
		return nil, errors.New("token codec is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("classifier is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Gate{
		store:       cfg.Store,
		codec:       cfg.Codec,
		credentials: cfg.Credentials,
		classifier:  cfg.Classifier,
		ttl:         ttl,
		now:         now,
		logger:      logger,
		observer:    observer,
		active:      make(map[string]string),
	}, nil
}

// TTL returns the session lifetime.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// CredentialsRequired reports whether authenticate needs a password.
func (g *Gate) CredentialsRequired() bool {
	return g.credentials.Enabled()
}

// Authenticate creates a session for username and makes it the active
// session of conn, replacing any previous pointer. The superseded record is
// left in the store.
func (g *Gate) Authenticate(ctx context.Context, conn, username, password string) (*Session, error) {
	if err := g.credentials.Check(username, password); err != nil {
		g.logger.Warn("authentication rejected", "conn", conn, "username", username)
		g.observer.Denied(string(KindInvalidCredentials))
		return nil, invalidCredentials()
	}

	userID := DeriveUserID(username)
	token, err := g.codec.Issue(userID, username)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	sess, err := g.store.Create(ctx, userID, username, token)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	g.mu.Lock()
	previous := g.active[conn]
	g.active[conn] = sess.ID
	g.mu.Unlock()

	g.observer.SessionCreated()
	g.logger.Info("session created",
		"conn", conn,
		"session_id", sess.ID,
		"username", username,
		"superseded", previous,
	)
	return sess, nil
}

// Authorize resolves the caller of op on conn. Public operations return a nil
// identity. Protected operations fail with a *Denial when conn has no active
// session or the session is past its TTL; an expired session is deleted and
// the pointer cleared before the denial is returned.
func (g *Gate) Authorize(ctx context.Context, conn, op string) (*Identity, error) {
	access, ok := g.classifier.Access(op)
	if ok && access == AccessPublic {
		return nil, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	sessionID, ok := g.active[conn]
	if !ok {
		g.observer.Denied(string(KindAuthenticationRequired))
		return nil, authenticationRequired()
	}

	sess, err := g.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		delete(g.active, conn)
		g.observer.Denied(string(KindAuthenticationRequired))
		return nil, authenticationRequired()
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if sess.Expired(g.now(), g.ttl) {
		if err := g.store.Delete(ctx, sess.ID); err != nil {
			return nil, fmt.Errorf("purging expired session: %w", err)
		}
		delete(g.active, conn)
		g.observer.SessionEnded(EndExpired)
		g.observer.Denied(string(KindSessionExpired))
		g.logger.Info("session expired", "conn", conn, "session_id", sess.ID, "username", sess.Username)
		return nil, sessionExpired()
	}

	return &Identity{
		UserID:    sess.UserID,
		Username:  sess.Username,
		SessionID: sess.ID,
	}, nil
}

// Status reports the authentication state of conn without modifying it. An
// expired but not yet purged session is reported with ExpiresIn zero.
func (g *Gate) Status(ctx context.Context, conn string) (Status, error) {
	g.mu.Lock()
	sessionID, ok := g.active[conn]
	g.mu.Unlock()
	if !ok {
		return Status{}, nil
	}

	sess, err := g.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("loading session: %w", err)
	}

	now := g.now()
	age := sess.Age(now)
	remaining := g.ttl - age
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Authenticated: true,
		Session:       sess,
		Age:           age,
		ExpiresIn:     remaining,
		Expired:       sess.Expired(now, g.ttl),
	}, nil
}

// Logout deletes the active session of conn and clears the pointer. It
// returns the username of the ended session, or ok=false when there was none.
func (g *Gate) Logout(ctx context.Context, conn string) (username string, ok bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sessionID, has := g.active[conn]
	if !has {
		return "", false, nil
	}

	sess, err := g.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		delete(g.active, conn)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading session: %w", err)
	}

	if err := g.store.Delete(ctx, sessionID); err != nil {
		return "", false, fmt.Errorf("deleting session: %w", err)
	}
	delete(g.active, conn)

	g.observer.SessionEnded(EndLogout)
	g.logger.Info("session logged out", "conn", conn, "session_id", sessionID, "username", sess.Username)
	return sess.Username, true, nil
}

// Release forgets conn after its transport closed, deleting its session.
func (g *Gate) Release(ctx context.Context, conn string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sessionID, has := g.active[conn]
	if !has {
		return nil
	}
	delete(g.active, conn)

	if err := g.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	g.observer.SessionEnded(EndReleased)
	g.logger.Debug("connection released", "conn", conn, "session_id", sessionID)
	return nil
}

// Sweep purges expired sessions from the store and clears pointers to them.
// The store scan runs without the gate lock; session ids are never reused, so
// a pointer set during the scan cannot name a swept record.
func (g *Gate) Sweep(ctx context.Context) (int, error) {
	swept, err := g.store.Sweep(ctx, g.now(), g.ttl)
	if len(swept) > 0 {
		gone := make(map[string]struct{}, len(swept))
		for _, id := range swept {
			gone[id] = struct{}{}
			g.observer.SessionEnded(EndSwept)
		}
		g.mu.Lock()
		for conn, id := range g.active {
			if _, ok := gone[id]; ok {
				delete(g.active, conn)
			}
		}
		g.mu.Unlock()
		g.logger.Info("swept expired sessions", "count", len(swept))
	}
	if err != nil {
		return len(swept), fmt.Errorf("sweeping sessions: %w", err)
	}
	return len(swept), nil
}

// Connections returns the number of connections with an active pointer.
func (g *Gate) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

type nopObserver struct{}

func (nopObserver) SessionCreated()     {}
func (nopObserver) SessionEnded(string) {}
func (nopObserver) Denied(string)       {}
