package service

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// LocalLockManager is an in-process domain.LockManager for single-instance
// deployments that run without Redis. Locks expire after their TTL so a
// crashed holder cannot wedge the pass forever.
type LocalLockManager struct {
	mu     sync.Mutex
	held   map[string]localLock
	now    func() time.Time
	nextID uint64
}

type localLock struct {
	id      uint64
	expires time.Time
}

// NewLocalLockManager creates an empty LocalLockManager.
func NewLocalLockManager() *LocalLockManager {
	return &LocalLockManager{held: make(map[string]localLock), now: time.Now}
}

// Acquire takes the lock for key or returns domain.ErrLockHeld. The
// returned unlock releases the lock only if it is still owned by this call.
func (l *LocalLockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, domain.ErrLockHeld
	}
	l.nextID++
	id := l.nextID
	l.held[key] = localLock{id: id, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.id == id {
			delete(l.held, key)
		}
	}, nil
}
