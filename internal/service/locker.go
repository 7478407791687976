package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Locker serializes work on one entity key.
// Lock blocks until the key is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func orderLockKey(id string) string  { return "order:" + id }
func driverLockKey(id string) string { return "driver:" + id }
func clientLockKey(id string) string { return "client:" + id }

// LocalLocker is an in-process Locker for single-replica deployments.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

// Lock acquires key.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.sem
				l.release(key, lk)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, lk)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(key string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// LockManager acquires entity locks in a fixed order with a bounded wait.
type LockManager struct {
	locker Locker
	wait   time.Duration
}

// NewLockManager creates a LockManager. A zero wait only honours the caller's context.
func NewLockManager(locker Locker, wait time.Duration) *LockManager {
	return &LockManager{locker: locker, wait: wait}
}

// Acquire takes every key in the given order and returns a function releasing them in reverse.
func (m *LockManager) Acquire(ctx context.Context, keys ...string) (func(), error) {
	lockCtx := ctx
	if m.wait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, m.wait)
		defer cancel()
	}

	unlocks := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, key := range keys {
		unlock, err := m.locker.Lock(lockCtx, key)
		if err != nil {
			releaseAll()
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("%w (%s)", ErrLockTimeout, key)
			}
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}
