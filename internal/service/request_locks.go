package service

import "sync"

// requestLocks hands out one mutex per absence request id. Entries are
// reference counted and dropped once no caller holds or waits on them.
type requestLocks struct {
	mu    sync.Mutex
	locks map[int64]*requestLock
}

type requestLock struct {
	mu   sync.Mutex
	refs int
}

func newRequestLocks() *requestLocks {
	return &requestLocks{locks: make(map[int64]*requestLock)}
}

// lock blocks until the caller owns id and returns the matching unlock.
func (l *requestLocks) lock(id int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &requestLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *requestLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
