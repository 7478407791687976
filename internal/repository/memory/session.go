package memory

import (
	"context"
	"sync"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

type sessionEntry struct {
	session   domain.Session
	expiresAt time.Time
}

// SessionStore keeps sessions in process memory with a sliding TTL.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[int64]sessionEntry
	now      func() time.Time
}

// NewSessionStore creates a session store. A zero ttl keeps sessions forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[int64]sessionEntry),
		now:      time.Now,
	}
}

var _ repository.SessionStore = (*SessionStore)(nil)

// SetClock replaces the time source.
func (s *SessionStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *SessionStore) Get(ctx context.Context, actorID int64) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[actorID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.ttl > 0 && !s.now().Before(entry.expiresAt) {
		delete(s.sessions, actorID)
		return nil, repository.ErrNotFound
	}
	sess := copySession(entry.session)
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	session.UpdatedAt = now
	s.sessions[session.ActorID] = sessionEntry{
		session:   copySession(*session),
		expiresAt: now.Add(s.ttl),
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, actorID)
	return nil
}

func copySession(in domain.Session) domain.Session {
	out := in
	if in.OrderDraft != nil {
		d := *in.OrderDraft
		out.OrderDraft = &d
	}
	if in.Registration != nil {
		r := *in.Registration
		r.Photos = append([]domain.Photo(nil), in.Registration.Photos...)
		out.Registration = &r
	}
	if in.Prompt != nil {
		p := *in.Prompt
		out.Prompt = &p
	}
	return out
}
