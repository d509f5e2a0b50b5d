// internal/jobs/worker.go
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "git-commit-tracker/internal/errors"
	"git-commit-tracker/internal/model"
)

const defaultPollInterval = 2 * time.Second

// Dequeuer claims tasks from the queue store.
type Dequeuer interface {
	DequeueTask(ctx context.Context, queues ...string) (*model.Task, error)
	FinishTask(ctx context.Context, id int64, status, errMsg string) error
}

// Handler executes one claimed task.
type Handler func(ctx context.Context, task model.Task) error

// Worker polls the task queues and dispatches to registered handlers.
// Each task runs under a per-task deadline; a handler that overruns is
// recorded as a timeout error rather than left hanging.
type Worker struct {
	store        Dequeuer
	handlers     map[string]Handler
	queues       []string
	logger       *slog.Logger
	taskTimeout  time.Duration
	pollInterval time.Duration
}

// NewWorker creates a Worker with no handlers registered.
func NewWorker(store Dequeuer, logger *slog.Logger, taskTimeout time.Duration) *Worker {
	return &Worker{
		store:        store,
		handlers:     make(map[string]Handler),
		logger:       logger,
		taskTimeout:  taskTimeout,
		pollInterval: defaultPollInterval,
	}
}

// Register binds a handler to a task kind. Registration order sets
// queue priority between kinds; within a kind the high-priority queue
// always outranks the normal one.
func (w *Worker) Register(kind string, h Handler) {
	w.handlers[kind] = h
	w.queues = append(w.queues, queueName(kind, true))
	w.queues = append(w.queues, queueName(kind, false))
}

// Run polls until ctx is cancelled. Start one Run per worker slot.
func (w *Worker) Run(ctx context.Context) error {
	for {
		task, err := w.store.DequeueTask(ctx, w.queues...)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", "error", err)
		}
		if task == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.pollInterval):
			}
			continue
		}
		w.process(ctx, *task)
	}
}

// RunPool runs n concurrent Run loops and blocks until all exit.
func (w *Worker) RunPool(ctx context.Context, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}

func (w *Worker) process(ctx context.Context, task model.Task) {
	logger := w.logger.With("task_id", task.ID, "kind", task.Kind, "queue", task.Queue)

	handler, ok := w.handlers[task.Kind]
	if !ok {
		logger.Error("no handler for task kind")
		w.finish(ctx, task.ID, model.JobError, fmt.Sprintf("unknown task kind %q", task.Kind))
		return
	}

	tctx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	start := time.Now()
	err := handler(tctx, task)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = &apperrors.TimeoutError{Stage: task.Kind, Budget: w.taskTimeout}
	}

	if err != nil {
		logger.Error("task failed", "duration", time.Since(start), "error", err)
		w.finish(ctx, task.ID, model.JobError, err.Error())
		return
	}
	logger.Info("task complete", "duration", time.Since(start))
	w.finish(ctx, task.ID, model.JobComplete, "")
}

func (w *Worker) finish(ctx context.Context, id int64, status, errMsg string) {
	// Use a fresh deadline so a cancelled task context cannot block
	// recording the outcome.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.store.FinishTask(fctx, id, status, errMsg); err != nil {
		w.logger.Error("recording task outcome", "task_id", id, "error", err)
	}
}
