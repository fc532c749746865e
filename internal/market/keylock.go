package market

import (
	"sync"

	"github.com/token-pulse/internal/types"
)

// keyLock serializes work per token key. Entries are reference counted and
// removed once the last holder unlocks, so the map stays proportional to
// in-flight work rather than to the token population.
type keyLock struct {
	mu    sync.Mutex
	locks map[types.TokenKey]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[types.TokenKey]*lockEntry)}
}

// Lock acquires the lock for key and returns its unlock function
func (k *keyLock) Lock(key types.TokenKey) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
