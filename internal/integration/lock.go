package integration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker guards a (user, provider) pair against overlapping syncs. TryLock
// never waits: ok is false when another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

func syncLockKey(userID, provider string) string {
	return "sync:" + userID + ":" + normalizeProvider(provider)
}

type memoryLock struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker. Holders that outlive their ttl
// are treated as released.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock), now: time.Now}
}

func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[key]; ok && now.Before(held.expires) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.locks[key] = memoryLock{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if held, ok := l.locks[key]; ok && held.token == token {
				delete(l.locks, key)
			}
		})
	}, true, nil
}
