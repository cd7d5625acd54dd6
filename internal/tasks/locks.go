package tasks

import "sync"

// userLocks provides per-user mutual exclusion for reconciliation cycles.
//
// Two cycles racing on one playlist could double-insert or lose tracks, so
// a cycle that finds its user's lock held is skipped rather than queued;
// the next scheduled tick covers the missed work.
type userLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newUserLocks() *userLocks {
	return &userLocks{held: make(map[string]bool)}
}

// TryAcquire attempts to take the lock for a user.
//
// Returns a release function and true on success, or nil and false when a
// cycle for that user is already running.
func (l *userLocks) TryAcquire(userID string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[userID] {
		return nil, false
	}
	l.held[userID] = true

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, userID)
	}, true
}
