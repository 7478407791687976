package service

import (
	"context"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// SessionService loads and stores conversation state per actor.
type SessionService struct {
	store repository.SessionStore
}

// NewSessionService creates a new SessionService.
func NewSessionService(store repository.SessionStore) *SessionService {
	return &SessionService{store: store}
}

// Load returns the actor's session, or an empty one when none is stored or it expired.
func (s *SessionService) Load(ctx context.Context, actorID int64) (*domain.Session, error) {
	session, err := s.store.Get(ctx, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.Session{ActorID: actorID}, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Save stores the session. The last write wins.
func (s *SessionService) Save(ctx context.Context, session *domain.Session) error {
	return s.store.Save(ctx, session)
}

// Reset drops all conversation state of the actor.
func (s *SessionService) Reset(ctx context.Context, actorID int64) error {
	return s.store.Delete(ctx, actorID)
}
