package locker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"recordwatch/internal/domain"
	"recordwatch/internal/ports"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is an in-process Locker for tests and single-node runs.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

var _ ports.Locker = (*MemoryLocker)(nil)

// NewMemoryLocker builds an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		leases: map[string]lease{},
		now:    time.Now,
	}
}

// Acquire claims the key unless a live lease exists.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if existing, ok := l.leases[key]; ok && existing.expiresAt.After(now) {
		return "", &domain.LockContentionError{Key: key}
	}

	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// Release drops the lease if the token still matches.
func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.leases[key]; ok && existing.token == token {
		delete(l.leases, key)
	}
	return nil
}
