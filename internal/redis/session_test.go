package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

func TestSessionStore_SaveGetDelete(t *testing.T) {
	t.Parallel()
	_, client := newTestClient(t)
	store := NewSessionStore(client, time.Hour)
	ctx := context.Background()

	if _, err := store.Get(ctx, 42); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a new actor, got %v", err)
	}

	session := &domain.Session{
		ActorID:    42,
		OrderDraft: &domain.OrderDraft{FromAddress: "Svetlogorsk, Lenina 1"},
		Prompt:     &domain.Prompt{Kind: domain.PromptOrderTo},
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Prompt == nil || got.Prompt.Kind != domain.PromptOrderTo {
		t.Errorf("expected the pending prompt to survive, got %+v", got.Prompt)
	}
	if got.OrderDraft == nil || got.OrderDraft.FromAddress != "Svetlogorsk, Lenina 1" {
		t.Errorf("expected the draft to survive, got %+v", got.OrderDraft)
	}

	if err := store.Delete(ctx, 42); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, 42); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSessionStore_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, &domain.Session{ActorID: 7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(30 * time.Second)

	// Saving again refreshes the TTL.
	if err := store.Save(ctx, &domain.Session{ActorID: 7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	mr.FastForward(45 * time.Second)
	if _, err := store.Get(ctx, 7); err != nil {
		t.Fatalf("expected the refreshed session to be alive, got %v", err)
	}

	mr.FastForward(time.Minute)
	if _, err := store.Get(ctx, 7); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected the session to expire, got %v", err)
	}
}
