package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const sessionKeyPrefix = "session:"

// SessionStore keeps per-actor conversation state in Redis.
// Every save refreshes the TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(actorID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(actorID, 10)
}

// Get retrieves the session of an actor.
func (s *SessionStore) Get(ctx context.Context, actorID int64) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(actorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Save stores the session, overwriting any previous one.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = time.Now()
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.ActorID), data, s.ttl).Err()
}

// Delete removes the session of an actor.
func (s *SessionStore) Delete(ctx context.Context, actorID int64) error {
	return s.client.Del(ctx, sessionKey(actorID)).Err()
}
