package setstore

import (
	"context"
	"sync"
)

type MemSetStore struct {
	lk   sync.RWMutex
	Sets map[string]map[string]bool
}

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	set, ok := s.Sets[name]
	if !ok {
		// returns false when entire set isn't found
		return false, nil
	}
	return set[val], nil
}

func (s *MemSetStore) Add(ctx context.Context, name, val string) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	set, ok := s.Sets[name]
	if !ok {
		set = make(map[string]bool)
		s.Sets[name] = set
	}
	if set[val] {
		return false, nil
	}
	set[val] = true
	return true, nil
}

func (s *MemSetStore) Remove(ctx context.Context, name, val string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if set, ok := s.Sets[name]; ok {
		delete(set, val)
	}
	return nil
}

func (s *MemSetStore) Len(ctx context.Context, name string) (int, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()
	return len(s.Sets[name]), nil
}

// Loads sets from a JSON file containing an object of set name to list of values. Values are
// merged into any existing set of the same name.
func (s *MemSetStore) LoadFromFileJSON(p string) error {
	_, err := ImportJSON(context.Background(), s, p)
	return err
}
