package policystore

import (
	"context"
	"sync"
)

type MemPolicyStore struct {
	lk   sync.Mutex
	Data map[string]map[Field]int64
}

func NewMemPolicyStore() *MemPolicyStore {
	return &MemPolicyStore{
		Data: make(map[string]map[Field]int64),
	}
}

func (s *MemPolicyStore) Get(ctx context.Context, user string, field Field) (int64, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	rec, ok := s.Data[user]
	if !ok {
		return 0, false, nil
	}
	v, ok := rec[field]
	return v, ok, nil
}

func (s *MemPolicyStore) Set(ctx context.Context, user string, field Field, val int64) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.record(user)[field] = val
	return nil
}

func (s *MemPolicyStore) Increment(ctx context.Context, user string, field Field, delta int64) (int64, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	rec := s.record(user)
	rec[field] += delta
	return rec[field], nil
}

func (s *MemPolicyStore) ResetField(ctx context.Context, field Field) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	n := 0
	for _, rec := range s.Data {
		if _, ok := rec[field]; ok {
			delete(rec, field)
			n++
		}
	}
	return n, nil
}

// caller must hold lk
func (s *MemPolicyStore) record(user string) map[Field]int64 {
	rec, ok := s.Data[user]
	if !ok {
		rec = make(map[Field]int64)
		s.Data[user] = rec
	}
	return rec
}
