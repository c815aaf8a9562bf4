package ingest

import "sync"

// workspaceLocks is a process-local keyed mutex. Entries are dropped once
// no goroutine holds or waits on them.
type workspaceLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newWorkspaceLocks() *workspaceLocks {
	return &workspaceLocks{locks: make(map[string]*lockEntry)}
}

// lock blocks until the workspace is free and returns its unlock function.
func (l *workspaceLocks) lock(workspaceID string) func() {
	l.mu.Lock()
	e, ok := l.locks[workspaceID]
	if !ok {
		e = &lockEntry{}
		l.locks[workspaceID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, workspaceID)
		}
		l.mu.Unlock()
	}
}

func (l *workspaceLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
