package service

import "sync"

// repoLocks hands out one RWMutex per repository identity. Writers (clone,
// pull) hold the write side; readers (rev-parse, diff) share the read side.
// Entries are never removed; there is one per mirror on disk.
type repoLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newRepoLocks() *repoLocks {
	return &repoLocks{locks: make(map[string]*sync.RWMutex)}
}

func (l *repoLocks) get(key string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[key] = m
	}
	return m
}

// Lock acquires the write side for key and returns its release func.
func (l *repoLocks) Lock(key string) func() {
	m := l.get(key)
	m.Lock()
	return m.Unlock
}

// RLock acquires the read side for key and returns its release func.
func (l *repoLocks) RLock(key string) func() {
	m := l.get(key)
	m.RLock()
	return m.RUnlock
}
