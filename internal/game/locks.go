package game

import (
	"context"
	"sync"

	"github.com/otahak/herald/internal/errors"
)

// SessionLocks serializes mutations per game session. Locks are created
// lazily and held across the whole read-modify-write of one operation.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewSessionLocks creates an empty lock table.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{
		locks: make(map[string]chan struct{}),
	}
}

func (s *SessionLocks) get(key string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[key] = lock
	}
	return lock
}

// Acquire takes the session lock, waiting until the ctx deadline. A deadline
// hit maps to ErrSessionBusy so callers can surface a retryable failure.
func (s *SessionLocks) Acquire(ctx context.Context, key string) (func(), error) {
	lock := s.get(key)
	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrSessionBusy, "another update is in progress")
		}
		return nil, errors.Wrap(ctx.Err(), errors.ErrCanceled)
	}
}

// Forget drops the lock entry for a removed session.
func (s *SessionLocks) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
}
