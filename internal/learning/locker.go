package learning

import "sync"

// keyedLocker serializes work per key while letting distinct keys proceed
// in parallel. Entries are dropped once no goroutine holds or waits on them.
type keyedLocker struct {
	locks map[string]*keyLock
	mu    sync.Mutex
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedLocker) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocker) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
