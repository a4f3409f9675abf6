package reconcile

import (
	"slices"
	"sync"
)

// keyedMutex serializes work per key. Locking several keys at once acquires
// them in sorted order, so multi-key holders cannot deadlock each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until every key is held and returns the release func.
func (k *keyedMutex) Lock(keys ...string) func() {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*refLock, len(keys))
	k.mu.Lock()
	for i, key := range keys {
		l, ok := k.locks[key]
		if !ok {
			l = &refLock{}
			k.locks[key] = l
		}
		l.refs++
		held[i] = l
	}
	k.mu.Unlock()

	for _, l := range held {
		l.Lock()
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
		k.mu.Lock()
		for i, key := range keys {
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, key)
			}
		}
		k.mu.Unlock()
	}
}
