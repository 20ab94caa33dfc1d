package service

import "sync"

// projectLocks serializes index runs per project within this process.
// The clear-then-repopulate invariant of a re-index would be corrupted by
// two overlapping runs, so a second run for the same project is rejected
// instead of queued.
type projectLocks struct {
	mu     sync.Mutex
	active map[string]bool
}

func newProjectLocks() *projectLocks {
	return &projectLocks{active: make(map[string]bool)}
}

// TryLock reports whether the project lock was acquired.
func (l *projectLocks) TryLock(projectID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active[projectID] {
		return false
	}
	l.active[projectID] = true
	return true
}

func (l *projectLocks) Unlock(projectID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, projectID)
}
