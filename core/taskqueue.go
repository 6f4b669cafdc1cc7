package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxPendingTasks bounds how many undelivered incoming tasks a coordinator
// will hold at once; admission beyond this is rejected rather than queued.
const MaxPendingTasks = 100

// PendingTask is a task delegated by a peer, waiting to be claimed by a
// local consumer.
type PendingTask struct {
	TaskID      uuid.UUID
	SourcePeer  string
	Room        string
	Description string
	IssuedAt    uint64
	TTLSeconds  uint32
}

// expired reports whether the task's TTL has elapsed as of now.
func (t PendingTask) expired(now uint64) bool {
	return now >= t.IssuedAt+uint64(t.TTLSeconds)
}

// TaskQueue is a bounded admission queue for incoming task requests, with
// lazy TTL expiry (expired entries are dropped the next time the queue is
// polled, not on a background timer) and a notify channel consumers can
// wait on instead of busy-polling.
type TaskQueue struct {
	mu       sync.Mutex
	items    []PendingTask
	notifyCh chan struct{}
}

// NewTaskQueue returns an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{notifyCh: make(chan struct{})}
}

// Admit appends task if the queue has room, returning false if it is at
// MaxPendingTasks capacity.
func (q *TaskQueue) Admit(task PendingTask) bool {
	q.mu.Lock()
	if len(q.items) >= MaxPendingTasks {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, task)
	ch := q.notifyCh
	q.notifyCh = make(chan struct{})
	q.mu.Unlock()
	close(ch)
	return true
}

// Poll removes and returns every non-expired task matching roomFilter (nil
// matches every room), leaving non-matching tasks in the queue. Expired
// tasks are dropped regardless of whether they match.
func (q *TaskQueue) Poll(roomFilter *string) []PendingTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := uint64(nowUnix())

	var kept []PendingTask
	var matched []PendingTask
	for _, t := range q.items {
		if t.expired(now) {
			continue
		}
		if roomFilter == nil || *roomFilter == t.Room {
			matched = append(matched, t)
		} else {
			kept = append(kept, t)
		}
	}
	q.items = kept
	return matched
}

// Wait polls once; if nothing matched, it waits for either a new
// admission or timeout, then polls again.
func (q *TaskQueue) Wait(ctx context.Context, roomFilter *string, timeout time.Duration) []PendingTask {
	if matched := q.Poll(roomFilter); len(matched) > 0 {
		return matched
	}
	q.mu.Lock()
	ch := q.notifyCh
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	case <-ctx.Done():
	}
	return q.Poll(roomFilter)
}

// Len reports how many tasks the queue currently holds, whatever their
// room; expired tasks still count until a Poll drops them.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
