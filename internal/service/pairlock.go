package service

import (
	"sync"
)

type pairKey struct {
	userID    int64
	serviceID string
}

// pairLocks serializes state changes per (user, service) within one process.
// Entries are reference counted and removed once no goroutine holds or waits
// for them.
type pairLocks struct {
	mu    sync.Mutex
	locks map[pairKey]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[pairKey]*pairLock)}
}

// lock blocks until the pair is free and returns the matching unlock func.
func (p *pairLocks) lock(userID int64, serviceID string) func() {
	key := pairKey{userID, serviceID}

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pairLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *pairLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
