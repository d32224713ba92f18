// Package queuestore holds named FIFO queues of content strings.
package queuestore

import (
	"context"
)

const (
	QueueReply = "reply"
	QueuePost  = "post"
)

type QueueStore interface {
	// Appends values to the tail, in order.
	Push(ctx context.Context, name string, vals ...string) error
	// Removes and returns the head. The bool is false when the queue is empty.
	Pop(ctx context.Context, name string) (string, bool, error)
	Len(ctx context.Context, name string) (int, error)
	Clear(ctx context.Context, name string) error
	// Returns the current contents, head first, without modifying the queue.
	List(ctx context.Context, name string) ([]string, error)
}
