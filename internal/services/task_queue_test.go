package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangang/codecritic/internal/config"
)

func TestTaskTypeReview_Constant(t *testing.T) {
	if TaskTypeReview != "review:process" {
		t.Errorf("TaskTypeReview = %q, expected %q", TaskTypeReview, "review:process")
	}
}

func TestNewTaskQueue_FallsBackToLocal(t *testing.T) {
	cfg := config.DefaultConfig()
	queue := NewTaskQueue(cfg)
	defer queue.Close()

	if queue.IsAsync() {
		t.Error("queue should be local when Redis is disabled")
	}

	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1" // nothing listens here
	queue2 := NewTaskQueue(cfg)
	defer queue2.Close()
	if _, ok := queue2.(*LocalQueue); !ok {
		t.Errorf("unreachable Redis should fall back to LocalQueue, got %T", queue2)
	}
}

func TestLocalQueue_ProcessesTasks(t *testing.T) {
	queue := NewLocalQueue(10, 2)

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 3)
	queue.SetProcessor(func(ctx context.Context, task *ReviewTask) error {
		mu.Lock()
		seen[task.ReviewID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	queue.Start()
	defer queue.Close()

	for _, id := range []string{"a", "b", "c"} {
		if err := queue.Enqueue(&ReviewTask{ReviewID: id}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for tasks")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Errorf("processed %d distinct tasks, expected 3", len(seen))
	}
}

func TestLocalQueue_EnqueueNeverBlocksWhenFull(t *testing.T) {
	queue := NewLocalQueue(1, 1)
	release := make(chan struct{})
	var processed atomic.Int32
	queue.SetProcessor(func(ctx context.Context, task *ReviewTask) error {
		<-release
		processed.Add(1)
		return nil
	})
	queue.Start()

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := queue.Enqueue(&ReviewTask{ReviewID: "t"}); err != nil {
			t.Fatalf("Enqueue error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Enqueue blocked for %v", elapsed)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for processed.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if processed.Load() != 5 {
		t.Errorf("processed %d tasks, expected 5", processed.Load())
	}
	queue.Close()
}

func TestLocalQueue_ClosedRejectsTasks(t *testing.T) {
	queue := NewLocalQueue(1, 1)
	queue.Start()
	if err := queue.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	err := queue.Enqueue(&ReviewTask{ReviewID: "late"})
	if !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue after Close = %v, expected ErrQueueClosed", err)
	}
}

func TestLocalQueue_SurvivesProcessorPanic(t *testing.T) {
	queue := NewLocalQueue(2, 1)
	done := make(chan string, 2)
	queue.SetProcessor(func(ctx context.Context, task *ReviewTask) error {
		if task.ReviewID == "boom" {
			panic("processor exploded")
		}
		done <- task.ReviewID
		return nil
	})
	queue.Start()
	defer queue.Close()

	_ = queue.Enqueue(&ReviewTask{ReviewID: "boom"})
	_ = queue.Enqueue(&ReviewTask{ReviewID: "after"})

	select {
	case id := <-done:
		if id != "after" {
			t.Errorf("got %q, expected %q", id, "after")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestLocalQueue_IsAsync(t *testing.T) {
	if NewLocalQueue(1, 1).IsAsync() {
		t.Error("LocalQueue.IsAsync() should return false")
	}
	if !(&AsyncQueue{}).IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}
