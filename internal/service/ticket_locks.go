package service

import "sync"

// ticketLocks serializes read-modify-write of one ticket's state. Entries are
// reference counted and dropped when no goroutine holds or waits on them.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*ticketLock
}

type ticketLock struct {
	sync.Mutex
	refs int
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[string]*ticketLock)}
}

// lock blocks until the ticket is free and returns its unlock function.
func (l *ticketLocks) lock(tenantID, ticketID string) func() {
	key := tenantID + "/" + ticketID

	l.mu.Lock()
	tl, ok := l.locks[key]
	if !ok {
		tl = &ticketLock{}
		l.locks[key] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.Lock()
	return func() {
		tl.Unlock()
		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *ticketLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
