package versions

import "sync"

// lockSet hands out one mutex per entity id and forgets it once unused.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*entityLock)}
}

// lock blocks until the entity's lock is held and returns its release func.
func (s *lockSet) lock(entityID string) func() {
	s.mu.Lock()
	l, ok := s.locks[entityID]
	if !ok {
		l = &entityLock{}
		s.locks[entityID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, entityID)
		}
		s.mu.Unlock()
	}
}
