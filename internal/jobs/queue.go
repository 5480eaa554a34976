package jobs

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a unit of deferred work. Key identifies the subject so the
// queue can refuse a second task for the same subject while the first
// is still pending or running.
type Task struct {
	Key string
	Run func(ctx context.Context)
}

// Queue accepts deferred tasks for background execution.
type Queue interface {
	// Enqueue returns false when the backlog is full or a task with the
	// same key is already in flight.
	Enqueue(task Task) bool
}

// InMemoryQueue is a bounded in-process task queue with at-most-once
// admission per key. Tasks are dropped, never blocked on, when the
// backlog is full.
type InMemoryQueue struct {
	tasks chan Task
	log   zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}

	wg sync.WaitGroup
}

func NewInMemoryQueue(capacity int, log zerolog.Logger) *InMemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &InMemoryQueue{
		tasks:    make(chan Task, capacity),
		inflight: make(map[string]struct{}),
		log:      log,
	}
}

// Start launches the worker pool. Workers drain the backlog and exit
// when ctx is cancelled.
func (q *InMemoryQueue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *InMemoryQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			q.execute(ctx, task)
		}
	}
}

func (q *InMemoryQueue) execute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("key", task.Key).Interface("panic", r).Msg("task panicked")
		}
		q.release(task.Key)
	}()
	task.Run(ctx)
}

func (q *InMemoryQueue) Enqueue(task Task) bool {
	if task.Run == nil {
		return false
	}
	if !q.admit(task.Key) {
		q.log.Debug().Str("key", task.Key).Msg("task already in flight, skipping")
		return false
	}
	select {
	case q.tasks <- task:
		return true
	default:
		q.release(task.Key)
		q.log.Warn().Str("key", task.Key).Msg("task backlog full, dropping")
		return false
	}
}

func (q *InMemoryQueue) admit(key string) bool {
	if key == "" {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, busy := q.inflight[key]; busy {
		return false
	}
	q.inflight[key] = struct{}{}
	return true
}

func (q *InMemoryQueue) release(key string) {
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.inflight, key)
	q.mu.Unlock()
}

// Wait blocks until all workers have exited. Call after cancelling the
// context passed to Start.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}
