package redis

import (
	"context"

	"dispatch/internal/repository"
)

// Locker is satisfied by LockStore.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Ensure concrete types implement interfaces.
var (
	_ Locker                  = (*LockStore)(nil)
	_ repository.SessionStore = (*SessionStore)(nil)
)
