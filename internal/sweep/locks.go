package sweep

import (
	"sync"

	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// locationLocks serializes work on the same location. Two attempts at one
// identity would otherwise race between creation and rollback.
type locationLocks struct {
	mu    sync.Mutex
	locks map[identity.Location]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newLocationLocks() *locationLocks {
	return &locationLocks{locks: make(map[identity.Location]*refLock)}
}

// lock blocks until loc is free and returns the matching unlock function.
func (l *locationLocks) lock(loc identity.Location) func() {
	l.mu.Lock()
	lk, ok := l.locks[loc]
	if !ok {
		lk = &refLock{}
		l.locks[loc] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, loc)
		}
		l.mu.Unlock()
	}
}
