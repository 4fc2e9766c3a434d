package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// handshakeTTL bounds how long a started login stays answerable. A
// callback after this window gets ErrNoPendingHandshake and the user
// restarts from /auth/google/start.
const handshakeTTL = 10 * time.Minute

// RedisStore keeps session state in Redis. Handshake consumption uses
// GETDEL, so the read-and-clear is atomic on the server side and a
// replayed callback URL can never be played twice.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) handshakeKey(sid string) string { return "handshake:" + sid }
func (r *RedisStore) sessionKey(sid string) string   { return "session:" + sid }

func (r *RedisStore) StartLogin(ctx context.Context, sid string, hs Handshake) error {
	if sid == "" || hs.State == "" || hs.Nonce == "" {
		return fmt.Errorf("session: start login requires sid, state and nonce")
	}

	data, err := json.Marshal(hs)
	if err != nil {
		return fmt.Errorf("session: marshal handshake: %w", err)
	}

	return r.client.Set(ctx, r.handshakeKey(sid), data, handshakeTTL).Err()
}

func (r *RedisStore) ConsumeHandshake(ctx context.Context, sid string, state string) (Handshake, error) {
	val, err := r.client.GetDel(ctx, r.handshakeKey(sid)).Result()
	if err == redis.Nil {
		return Handshake{}, ErrNoPendingHandshake
	}
	if err != nil {
		return Handshake{}, fmt.Errorf("session: consume handshake: %w", err)
	}

	var hs Handshake
	if err := json.Unmarshal([]byte(val), &hs); err != nil {
		return Handshake{}, fmt.Errorf("session: unmarshal handshake: %w", err)
	}

	if hs.State != state {
		return Handshake{}, ErrStateMismatch
	}

	return hs, nil
}

func (r *RedisStore) Establish(ctx context.Context, sid string, a Authenticated) error {
	if sid == "" || a.UserID == "" || a.ExternalSubject == "" {
		return fmt.Errorf("session: establish requires sid, user id and subject")
	}

	ttl := time.Until(a.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("session: marshal session: %w", err)
	}

	return r.client.Set(ctx, r.sessionKey(sid), data, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, sid string) (*Authenticated, error) {
	val, err := r.client.Get(ctx, r.sessionKey(sid)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}

	var a Authenticated
	if err := json.Unmarshal([]byte(val), &a); err != nil {
		return nil, fmt.Errorf("session: unmarshal session: %w", err)
	}

	return &a, nil
}

func (r *RedisStore) Clear(ctx context.Context, sid string) error {
	return r.client.Del(ctx, r.handshakeKey(sid), r.sessionKey(sid)).Err()
}
