// ABOUTME: Redis-backed SessionStore storing each session as a JSON value
// ABOUTME: Keys carry an optional retention TTL; expiry policy itself stays with the gate

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "books-mcp:session:"

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	Client *redis.Client
	Prefix string
	// Retention bounds how long Redis keeps a record. It must exceed the
	// session TTL so expired sessions are still observed (and reported as
	// expired) by the gate. Zero keeps records until deleted.
	Retention time.Duration
	Now       func() time.Time
}

// RedisStore keeps sessions in Redis.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RedisStore{
		client:    cfg.Client,
		prefix:    prefix,
		retention: cfg.Retention,
		now:       now,
	}, nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Create(ctx context.Context, userID, username, token string) (*Session, error) {
	sess := &Session{
		ID:        newSessionID(),
		UserID:    userID,
		Username:  username,
		Token:     token,
		CreatedAt: r.now().UTC(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}

	// SetNX guards against reusing an id that is somehow already present.
	ok, err := r.client.SetNX(ctx, r.key(sess.ID), data, r.retention).Result()
	if err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("storing session: id %s already exists", sess.ID)
	}
	return sess, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &sess, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (r *RedisStore) Sweep(ctx context.Context, now time.Time, ttl time.Duration) ([]string, error) {
	var swept []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), r.prefix)
		sess, err := r.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return swept, err
		}
		if !sess.Expired(now, ttl) {
			continue
		}
		if err := r.Delete(ctx, id); err != nil {
			return swept, err
		}
		swept = append(swept, id)
	}
	if err := iter.Err(); err != nil {
		return swept, fmt.Errorf("scanning sessions: %w", err)
	}
	return swept, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
