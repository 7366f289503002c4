// internal/deep/worker.go
package deep

import (
	"log/slog"

	"github.com/user/gardencalm/internal/types"
)

// DeliverFunc pushes a finished insight back to the user through whatever
// channel they are connected on.
type DeliverFunc func(userID types.UserID, insight string)

// Worker binds a Queue to an analyzer, retry policy, and delivery hook.
type Worker struct {
	queue    *Queue
	analyzer types.DeepAnalyzer
	retry    *RetryPolicy
	deliver  DeliverFunc
	log      *slog.Logger
}

// NewWorker wires the queue's processor. Deliver may be nil when insights
// are only observed through task callbacks, as in tests.
func NewWorker(queue *Queue, analyzer types.DeepAnalyzer, retry *RetryPolicy, deliver DeliverFunc, logger *slog.Logger) *Worker {
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		queue:    queue,
		analyzer: analyzer,
		retry:    retry,
		deliver:  deliver,
		log:      logger.With("component", "deep"),
	}
	queue.SetProcessor(w.process)
	return w
}

func (w *Worker) process(task *Task) error {
	var insight string
	err := w.retry.Execute(task.Ctx, func() error {
		result, err := w.analyzer.Analyze(task.Ctx, task.UserID, task.Context)
		if err != nil {
			return err
		}
		insight = result
		return nil
	})
	if err != nil {
		return err
	}

	w.log.Info("deep insight ready", "user", task.UserID)
	if task.OnComplete != nil {
		task.OnComplete(insight)
	}
	if w.deliver != nil {
		w.deliver(task.UserID, insight)
	}
	return nil
}
