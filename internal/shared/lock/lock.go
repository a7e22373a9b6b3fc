// Package lock serializes work per key. Auction mutations run while holding
// the lock for their auction id; different keys never contend.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when the lock could not be taken before the
// caller's context or the locker timeout expired. It is safe to retry.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Unlock releases a lock taken with Locker.Lock. Calling it more than once is a no-op.
type Unlock func()

type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

type keyEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Each key gets a one-slot semaphore that
// is dropped once no goroutine holds or waits on it.
type KeyedMutex struct {
	mu      sync.Mutex
	keys    map[string]*keyEntry
	timeout time.Duration
}

// NewKeyedMutex creates a KeyedMutex. A positive timeout bounds every
// acquisition in addition to the caller's context.
func NewKeyedMutex(timeout time.Duration) *KeyedMutex {
	return &KeyedMutex{
		keys:    make(map[string]*keyEntry),
		timeout: timeout,
	}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (Unlock, error) {
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	k.mu.Lock()
	e, ok := k.keys[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		k.keys[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				k.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, e)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}
}

func (k *KeyedMutex) release(key string, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.keys, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (k *KeyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys)
}
