// internal/deep/worker_test.go
package deep

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/gardencalm/internal/types"
)

// flakyAnalyzer fails a fixed number of times before succeeding.
type flakyAnalyzer struct {
	failures int32
	calls    atomic.Int32
	insight  string
}

func (a *flakyAnalyzer) Analyze(ctx context.Context, userID types.UserID, dc types.DeepContext) (string, error) {
	if a.calls.Add(1) <= a.failures {
		return "", errors.New("timeout")
	}
	return a.insight, nil
}

func fastRetry() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond}
}

func TestWorkerDeliversInsight(t *testing.T) {
	q := NewQueue(1)
	q.Start(context.Background())
	defer q.Stop()

	analyzer := &flakyAnalyzer{insight: "you seem to be carrying a lot today"}
	var delivered atomic.Value
	NewWorker(q, analyzer, fastRetry(), func(userID types.UserID, insight string) {
		delivered.Store(string(userID) + ": " + insight)
	}, nil)

	q.Schedule(types.UserID("user-1"), 0, types.DeepContext{})

	if !waitFor(t, func() bool { return delivered.Load() != nil }) {
		t.Fatal("insight not delivered")
	}
	if got := delivered.Load().(string); got != "user-1: you seem to be carrying a lot today" {
		t.Errorf("delivered = %q", got)
	}
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	q := NewQueue(1)
	q.Start(context.Background())
	defer q.Stop()

	analyzer := &flakyAnalyzer{failures: 2, insight: "better late"}
	var delivered atomic.Bool
	NewWorker(q, analyzer, fastRetry(), func(types.UserID, string) { delivered.Store(true) }, nil)

	q.Schedule(types.UserID("user-1"), 0, types.DeepContext{})

	if !waitFor(t, func() bool { return delivered.Load() }) {
		t.Fatal("insight not delivered after retries")
	}
	if calls := analyzer.calls.Load(); calls != 3 {
		t.Errorf("analyzer calls = %d, want 3", calls)
	}
}

func TestWorkerTaskCallback(t *testing.T) {
	q := NewQueue(1)
	q.Start(context.Background())
	defer q.Stop()

	analyzer := &flakyAnalyzer{insight: "direct callback"}
	NewWorker(q, analyzer, fastRetry(), nil, nil)

	got := make(chan string, 1)
	task := &Task{
		UserID:     types.UserID("user-1"),
		Context:    types.DeepContext{},
		EnqueuedAt: time.Now(),
		OnComplete: func(insight string) { got <- insight },
	}
	if err := q.enqueue(task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case insight := <-got:
		if insight != "direct callback" {
			t.Errorf("insight = %q", insight)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
}
