package core

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestTask(room string, ttl uint32) PendingTask {
	return PendingTask{
		TaskID:      uuid.New(),
		SourcePeer:  "ada",
		Room:        room,
		Description: "do the thing",
		IssuedAt:    uint64(nowUnix()),
		TTLSeconds:  ttl,
	}
}

func TestTaskQueueAdmitRejectsBeyondCapacity(t *testing.T) {
	q := NewTaskQueue()
	for i := 0; i < MaxPendingTasks; i++ {
		if !q.Admit(newTestTask("general", 60)) {
			t.Fatalf("admit %d: expected success under capacity", i)
		}
	}
	if q.Admit(newTestTask("general", 60)) {
		t.Fatal("expected admission to fail once at capacity")
	}
}

func TestTaskQueuePollFiltersByRoomAndDropsExpired(t *testing.T) {
	q := NewTaskQueue()
	live := newTestTask("general", 3600)
	expired := newTestTask("general", 0)
	expired.IssuedAt = 0
	other := newTestTask("other-room", 3600)

	q.Admit(live)
	q.Admit(expired)
	q.Admit(other)

	matched := q.Poll(strPtr("general"))
	if len(matched) != 1 || matched[0].TaskID != live.TaskID {
		t.Fatalf("expected only the live general-room task, got %+v", matched)
	}

	remaining := q.Poll(nil)
	if len(remaining) != 1 || remaining[0].TaskID != other.TaskID {
		t.Fatalf("expected the other-room task to remain queued, got %+v", remaining)
	}
}

func TestTaskQueueWaitWakesOnAdmit(t *testing.T) {
	q := NewTaskQueue()
	task := newTestTask("general", 60)

	done := make(chan []PendingTask, 1)
	go func() {
		done <- q.Wait(context.Background(), strPtr("general"), 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Admit(task)

	select {
	case matched := <-done:
		if len(matched) != 1 || matched[0].TaskID != task.TaskID {
			t.Fatalf("unexpected wait result: %+v", matched)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Admit")
	}
}

func TestTaskQueueWaitTimesOut(t *testing.T) {
	q := NewTaskQueue()
	start := time.Now()
	matched := q.Wait(context.Background(), strPtr("general"), 30*time.Millisecond)
	if len(matched) != 0 {
		t.Fatalf("expected no tasks, got %+v", matched)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatal("Wait returned before its timeout elapsed")
	}
}
