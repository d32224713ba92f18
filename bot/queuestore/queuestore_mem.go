package queuestore

import (
	"context"
	"sync"
)

type MemQueueStore struct {
	lk     sync.Mutex
	Queues map[string][]string
}

func NewMemQueueStore() *MemQueueStore {
	return &MemQueueStore{
		Queues: make(map[string][]string),
	}
}

func (s *MemQueueStore) Push(ctx context.Context, name string, vals ...string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Queues[name] = append(s.Queues[name], vals...)
	return nil
}

func (s *MemQueueStore) Pop(ctx context.Context, name string) (string, bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	q := s.Queues[name]
	if len(q) == 0 {
		return "", false, nil
	}
	v := q[0]
	s.Queues[name] = q[1:]
	return v, true, nil
}

func (s *MemQueueStore) Len(ctx context.Context, name string) (int, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.Queues[name]), nil
}

func (s *MemQueueStore) Clear(ctx context.Context, name string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	delete(s.Queues, name)
	return nil
}

func (s *MemQueueStore) List(ctx context.Context, name string) ([]string, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	out := make([]string, len(s.Queues[name]))
	copy(out, s.Queues[name])
	return out, nil
}
