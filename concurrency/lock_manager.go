package concurrency

import (
	"sync"
)

// LockManager hands out one mutex per key so work on the same game is serialized
// while different games proceed in parallel. A key's entry lives only while
// someone holds or waits for it.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLockManager creates a new LockManager
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*keyLock)}
}

// Lock blocks until the lock for key is held and returns the func that releases it
func (lm *LockManager) Lock(key string) (unlock func()) {
	lm.mu.Lock()
	entry, ok := lm.locks[key]
	if !ok {
		entry = &keyLock{}
		lm.locks[key] = entry
	}
	entry.refs++
	lm.mu.Unlock()

	entry.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			lm.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(lm.locks, key)
			}
			lm.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or awaited
func (lm *LockManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}
