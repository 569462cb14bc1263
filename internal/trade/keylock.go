package trade

import "sync"

// keyedMutex serializes trade execution per account. The cash balance is a
// single per-user value, so two buys of different assets must not both read
// it before either commits; holdings checks for a sale ride the same lock.
// Trades for different users proceed in parallel. Valuation reads never
// take these locks.
//
// Entries are never evicted: the key space is bounded by the user count and
// a mutex is tiny.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
