package game

import "sync"

// playerLocks serializes load-mutate-persist cycles per player id. Two-player
// operations acquire both locks in lexicographic id order so a concurrent
// trade in the opposite direction cannot deadlock.
type playerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPlayerLocks() *playerLocks {
	return &playerLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *playerLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

func (l *playerLocks) lock(id string) func() {
	m := l.get(id)
	m.Lock()
	return m.Unlock
}

func (l *playerLocks) lockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	first, second := l.get(a), l.get(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
