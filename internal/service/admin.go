package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"dispatch/internal/repository"
)

// AdminRegistry is the set of dispatchers: a static seed from configuration
// plus administrators added at runtime.
type AdminRegistry struct {
	mu     sync.RWMutex
	ids    map[int64]struct{}
	repo   repository.AdminRepository
	logger *slog.Logger
}

// NewAdminRegistry creates a registry seeded with ids.
func NewAdminRegistry(seed []int64, repo repository.AdminRepository, logger *slog.Logger) *AdminRegistry {
	ids := make(map[int64]struct{}, len(seed))
	for _, id := range seed {
		ids[id] = struct{}{}
	}
	return &AdminRegistry{ids: ids, repo: repo, logger: logger}
}

// Load merges the persisted administrators into the registry.
func (r *AdminRegistry) Load(ctx context.Context) error {
	persisted, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("load admins: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range persisted {
		r.ids[id] = struct{}{}
	}
	return nil
}

// IsAdmin reports whether externalID is an administrator.
func (r *AdminRegistry) IsAdmin(externalID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[externalID]
	return ok
}

// AllAdminIDs returns every administrator in ascending order.
func (r *AdminRegistry) AllAdminIDs() []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Add persists and registers a new administrator. Adding an existing one succeeds.
func (r *AdminRegistry) Add(ctx context.Context, addedBy, externalID int64) error {
	if externalID <= 0 {
		return ErrInvalidActorID
	}
	if !r.IsAdmin(addedBy) {
		return ErrNotAdmin
	}
	if err := r.repo.Add(ctx, externalID); err != nil {
		return err
	}

	r.mu.Lock()
	r.ids[externalID] = struct{}{}
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "admin added", slog.Int64("admin_id", externalID), slog.Int64("added_by", addedBy))
	return nil
}
