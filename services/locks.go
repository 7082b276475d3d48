package services

import "sync"

// gameLocks hands out one mutex per game id.
type gameLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the mutex of gameID and returns its unlock func.
func (l *gameLocks) Lock(gameID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[gameID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[gameID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Forget drops the mutex of a game that will not be mutated again.
func (l *gameLocks) Forget(gameID uint) {
	l.mu.Lock()
	delete(l.locks, gameID)
	l.mu.Unlock()
}
