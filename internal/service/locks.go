package service

import "sync"

// mailingLocks hands out one mutex per mailing ID so that sends and
// cancels for the same mailing serialize, while different mailings
// never block each other. The registry lock itself is held only for
// the map lookup, never across a send.
type mailingLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

// lock blocks until the mailing's mutex is held and returns the
// unlock func.
func (l *mailingLocks) lock(mailingID int) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int]*sync.Mutex)
	}
	m, ok := l.locks[mailingID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[mailingID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
