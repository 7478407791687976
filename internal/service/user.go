package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// UserService keeps chat client profiles.
type UserService struct {
	users repository.UserRepository
	now   func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users, now: time.Now}
}

// TouchRequest is the chat profile seen on an incoming message.
type TouchRequest struct {
	ExternalID int64
	Username   string
	FirstName  string
	LastName   string
}

// Touch registers the user on first contact and refreshes the profile afterwards.
func (s *UserService) Touch(ctx context.Context, req TouchRequest) (*domain.User, error) {
	if req.ExternalID <= 0 {
		return nil, ErrInvalidActorID
	}
	return s.users.Upsert(ctx, &domain.User{
		ID:         uuid.New().String(),
		ExternalID: req.ExternalID,
		Username:   strings.TrimSpace(req.Username),
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		CreatedAt:  s.now(),
	})
}

// Get returns the user with the given chat identity.
func (s *UserService) Get(ctx context.Context, externalID int64) (*domain.User, error) {
	user, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// UpdatePhone stores the user's contact phone.
func (s *UserService) UpdatePhone(ctx context.Context, externalID int64, phone string) (*domain.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrInvalidPhone
	}

	user, err := s.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePhone(ctx, user.ID, phone); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	user.Phone = phone
	return user, nil
}
