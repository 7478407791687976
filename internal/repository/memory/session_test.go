package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

func TestSessionStore_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(time.Hour)
	s.SetClock(func() time.Time { return now })

	session := &domain.Session{
		ActorID:    7,
		OrderDraft: &domain.OrderDraft{FromAddress: "Svetlogorsk"},
		Prompt:     &domain.Prompt{Kind: domain.PromptOrderTo},
	}
	if err := s.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	now = now.Add(59 * time.Minute)
	got, err := s.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OrderDraft.FromAddress != "Svetlogorsk" || got.Prompt.Kind != domain.PromptOrderTo {
		t.Errorf("unexpected session %+v", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, 7); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected the session to expire, got %v", err)
	}
}

func TestSessionStore_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewSessionStore(0)

	if err := s.Save(ctx, &domain.Session{ActorID: 1, OrderDraft: &domain.OrderDraft{ToAddress: "Airport"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.OrderDraft.ToAddress = "Station"

	again, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.OrderDraft.ToAddress != "Airport" {
		t.Errorf("mutating a loaded session leaked into the store")
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
