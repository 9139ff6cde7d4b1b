package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// SessionStore keeps sessions in Redis so every replica honours the same
// revocations.
//
// Keys:
//
//	session:<id>              -> username, expires with the token
//	user_sessions:<username>  -> set of session ids
type SessionStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func (s *SessionStore) Create(ctx context.Context, session domain.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("create session: already expired")
	}

	userKey := userSessionsKey(session.Username)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), session.Username, ttl)
		pipe.SAdd(ctx, userKey, session.ID)
		// All sessions share the configured TTL, so the newest one outlives the rest.
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SessionStore) Active(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("session lookup: %w", err)
	}
	return n > 0, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	username, err := s.client.GetDel(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if err := s.client.SRem(ctx, userSessionsKey(username), id).Err(); err != nil {
		return fmt.Errorf("revoke session index: %w", err)
	}
	return nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, username, exceptID string) (int, error) {
	userKey := userSessionsKey(username)
	ids, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	var (
		keys    []string
		members []interface{}
	)
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		keys = append(keys, sessionKey(id))
		members = append(members, id)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, userKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return int(deleted.Val()), nil
}

func sessionKey(id string) string {
	return "session:" + id
}

func userSessionsKey(username string) string {
	return "user_sessions:" + username
}
