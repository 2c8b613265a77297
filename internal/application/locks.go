package application

import "sync"

// PollLocks serialises work on a single poll. Entries are reference counted
// and dropped once no goroutine holds or waits on them.
type PollLocks struct {
	mu    sync.Mutex
	locks map[string]*pollLock
}

type pollLock struct {
	mu   sync.Mutex
	refs int
}

// NewPollLocks returns an empty lock set.
func NewPollLocks() *PollLocks {
	return &PollLocks{locks: make(map[string]*pollLock)}
}

// Lock blocks until the caller owns pollID and returns the release func.
func (l *PollLocks) Lock(pollID string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[pollID]
	if !ok {
		entry = &pollLock{}
		l.locks[pollID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, pollID)
		}
		l.mu.Unlock()
	}
}

func (l *PollLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
