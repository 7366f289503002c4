// internal/deep/queue.go
package deep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/gardencalm/internal/types"
)

// Task is one scheduled deep-analysis pass. Delay is counted from
// EnqueuedAt; the lane worker waits it out before touching the semaphore so
// a pending delay never holds a concurrency slot.
type Task struct {
	UserID     types.UserID
	Delay      time.Duration
	Context    types.DeepContext
	EnqueuedAt time.Time

	Ctx        context.Context
	OnComplete func(insight string)
}

// Queue manages per-user lanes with a global concurrency semaphore. Each
// user gets a FIFO channel so their deep passes run in order, while the
// semaphore caps total concurrent analysis across all users.
type Queue struct {
	lanes     map[types.UserID]chan *Task
	semaphore *semaphore.Weighted
	processor func(*Task) error
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue allowing up to maxConcurrent deep passes to run
// simultaneously across all user lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.UserID]chan *Task),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Schedule.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// analysis to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for _, lane := range q.lanes {
		close(lane)
	}
	q.lanes = make(map[types.UserID]chan *Task)
	q.mu.Unlock()
	q.wg.Wait()
}

// Schedule queues a deep pass for the user after delay. A full lane drops
// the task with a log line rather than blocking the message path.
func (q *Queue) Schedule(userID types.UserID, delay time.Duration, dc types.DeepContext) {
	task := &Task{
		UserID:     userID,
		Delay:      delay,
		Context:    dc,
		EnqueuedAt: time.Now(),
	}
	if err := q.enqueue(task); err != nil {
		slog.Warn("deep task dropped", "user", userID, "error", err)
	}
}

func (q *Queue) enqueue(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, exists := q.lanes[task.UserID]
	if !exists {
		lane = make(chan *Task, 16)
		q.lanes[task.UserID] = lane
		q.wg.Add(1)
		go q.processLane(task.UserID, lane)
	}

	select {
	case lane <- task:
		return nil
	default:
		return fmt.Errorf("deep queue full for user %s", task.UserID)
	}
}

// processLane drains one user lane: wait out the task's delay, acquire a
// semaphore slot, run the processor synchronously. Strict FIFO per user.
func (q *Queue) processLane(userID types.UserID, lane chan *Task) {
	defer q.wg.Done()
	for {
		select {
		case task, ok := <-lane:
			if !ok {
				return
			}
			if !q.waitDelay(task) {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			if q.processor != nil {
				q.active.Add(1)
				task.Ctx = q.ctx
				if err := q.processor(task); err != nil {
					slog.Error("deep analysis failed", "user", string(userID), "error", err)
				}
				q.active.Add(-1)
			}
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// waitDelay sleeps out whatever remains of the task's delay. Returns false
// when the queue shut down first.
func (q *Queue) waitDelay(task *Task) bool {
	remaining := task.Delay - time.Since(task.EnqueuedAt)
	if remaining <= 0 {
		return true
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-q.ctx.Done():
		return false
	}
}

// WaitIdle blocks until no tasks are actively being processed, or the
// timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each due Task.
func (q *Queue) SetProcessor(fn func(*Task) error) {
	q.processor = fn
}
