package queuestore

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/bluesky-social/kyupikon/util/cliutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func allStores(t *testing.T) map[string]QueueStore {
	mr := miniredis.RunT(t)
	rs, err := NewRedisQueueStore("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1)
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	gs, err := NewGormQueueStore(db)
	if err != nil {
		t.Fatalf("gorm store: %v", err)
	}
	return map[string]QueueStore{
		"mem":   NewMemQueueStore(),
		"redis": rs,
		"gorm":  gs,
	}
}

func TestQueueStoreFIFO(t *testing.T) {
	for name, s := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			_, ok, err := s.Pop(ctx, QueueReply)
			assert.NoError(err)
			assert.False(ok)

			assert.NoError(s.Push(ctx, QueueReply, "a", "b", "c"))
			assert.NoError(s.Push(ctx, QueuePost, "x"))

			l, err := s.List(ctx, QueueReply)
			assert.NoError(err)
			assert.Equal([]string{"a", "b", "c"}, l)

			v, ok, err := s.Pop(ctx, QueueReply)
			assert.NoError(err)
			assert.True(ok)
			assert.Equal("a", v)

			// move to tail
			assert.NoError(s.Push(ctx, QueueReply, v))
			l, err = s.List(ctx, QueueReply)
			assert.NoError(err)
			assert.Equal([]string{"b", "c", "a"}, l)

			n, err := s.Len(ctx, QueueReply)
			assert.NoError(err)
			assert.Equal(3, n)

			// queues don't share state
			assert.NoError(s.Clear(ctx, QueueReply))
			n, err = s.Len(ctx, QueueReply)
			assert.NoError(err)
			assert.Equal(0, n)
			n, err = s.Len(ctx, QueuePost)
			assert.NoError(err)
			assert.Equal(1, n)
		})
	}
}

func TestQueueStoreConcurrentPop(t *testing.T) {
	for name, s := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			vals := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
			assert.NoError(s.Push(ctx, QueuePost, vals...))

			var lk sync.Mutex
			var got []string
			var wg sync.WaitGroup
			for i := 0; i < len(vals)+4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					v, ok, err := s.Pop(ctx, QueuePost)
					assert.NoError(err)
					if ok {
						lk.Lock()
						got = append(got, v)
						lk.Unlock()
					}
				}()
			}
			wg.Wait()
			sort.Strings(got)
			assert.Equal(vals, got)
		})
	}
}
