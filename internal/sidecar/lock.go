package sidecar

import "sync"

// Locker hands out one mutex per folder. Entries are dropped once no
// goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*folderLock
}

type folderLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: map[string]*folderLock{}}
}

// Lock blocks until the folder is free and returns the matching unlock.
func (l *Locker) Lock(folder string) func() {
	l.mu.Lock()
	fl, ok := l.locks[folder]
	if !ok {
		fl = &folderLock{}
		l.locks[folder] = fl
	}
	fl.refs++
	l.mu.Unlock()

	fl.mu.Lock()
	return func() {
		fl.mu.Unlock()
		l.mu.Lock()
		fl.refs--
		if fl.refs == 0 {
			delete(l.locks, folder)
		}
		l.mu.Unlock()
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
