package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/codecritic/internal/config"
	"github.com/huangang/codecritic/internal/models"
	"github.com/huangang/codecritic/pkg/logger"
)

const (
	TaskTypeReview = "review:process"
	reviewQueue    = "reviews"
)

var ErrQueueClosed = errors.New("task queue is closed")

// ReviewTask is the unit of background work: one engine call for one review record.
type ReviewTask struct {
	ReviewID string          `json:"review_id"`
	Code     string          `json:"code"`
	Language models.Language `json:"language"`
}

// TaskProcessor runs one task to completion.
type TaskProcessor func(context.Context, *ReviewTask) error

// TaskQueue hands review tasks to background workers. Enqueue never waits for the task to run.
type TaskQueue interface {
	Enqueue(task *ReviewTask) error
	// IsAsync returns true when tasks are delivered through Redis
	IsAsync() bool
	Close() error
}

// NewTaskQueue returns the Redis-backed queue when enabled and reachable, otherwise a LocalQueue.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncQueue(&cfg.Redis)
		if err == nil {
			logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
			return queue
		}
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to local queue: %v", err)
	} else {
		logger.Infof("[TaskQueue] Local queue initialized (Redis disabled)")
	}
	return NewLocalQueue(cfg.Worker.QueueSize, cfg.Worker.Concurrency)
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	// Listing queues is the cheapest call that proves Redis answers.
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *ReviewTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	// The review id doubles as task id so a review can never be queued twice.
	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeReview, payload),
		asynq.Queue(reviewQueue),
		asynq.MaxRetry(0),
		asynq.TaskID(task.ReviewID),
	)
	if err != nil {
		return fmt.Errorf("enqueue review %s: %w", task.ReviewID, err)
	}

	logger.Infof("[AsyncQueue] Task enqueued: id=%s, queue=%s", info.ID, info.Queue)
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// LocalQueue is an in-process queue: a buffered channel drained by a fixed pool of goroutines.
type LocalQueue struct {
	tasks       chan *ReviewTask
	stop        chan struct{}
	concurrency int
	processor   TaskProcessor

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewLocalQueue(size, concurrency int) *LocalQueue {
	if size < 1 {
		size = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &LocalQueue{
		tasks:       make(chan *ReviewTask, size),
		stop:        make(chan struct{}),
		concurrency: concurrency,
	}
}

// SetProcessor sets the function workers run for each task. Call before Start.
func (q *LocalQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

// Start launches the worker goroutines.
func (q *LocalQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.concurrency; i++ {
		q.wg.Add(1)
		go q.run()
	}
	logger.Infof("[LocalQueue] Started %d workers", q.concurrency)
}

// Enqueue hands the task to the pool. When the buffer is full the hand-off continues in a
// detached goroutine so the caller never blocks.
func (q *LocalQueue) Enqueue(task *ReviewTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
	default:
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			select {
			case q.tasks <- task:
			case <-q.stop:
				logger.ForReview(task.ReviewID).Warn().Msg("[LocalQueue] Queue closed before review could be handed off")
			}
		}()
	}
	return nil
}

func (q *LocalQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stop:
			return
		case task := <-q.tasks:
			q.process(task)
		}
	}
}

func (q *LocalQueue) process(task *ReviewTask) {
	defer func() {
		if r := recover(); r != nil {
			logger.ForReview(task.ReviewID).Error().Interface("panic", r).Msg("[LocalQueue] Task panicked")
		}
	}()

	if q.processor == nil {
		logger.ForReview(task.ReviewID).Warn().Msg("[LocalQueue] No processor set, task dropped")
		return
	}
	if err := q.processor(context.Background(), task); err != nil {
		logger.ForReview(task.ReviewID).Error().Err(err).Msg("[LocalQueue] Task processing failed")
	}
}

// Len reports the number of tasks waiting in the buffer.
func (q *LocalQueue) Len() int {
	return len(q.tasks)
}

func (q *LocalQueue) IsAsync() bool {
	return false
}

// Close stops accepting tasks and waits for workers to finish their current task.
// Tasks still buffered are abandoned; their records stay pending.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.stop)
	q.mu.Unlock()

	q.wg.Wait()
	if n := len(q.tasks); n > 0 {
		logger.Warnf("[LocalQueue] %d queued reviews abandoned at shutdown", n)
	}
	return nil
}
