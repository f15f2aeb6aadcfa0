// Package taskqueue runs reconciliation tasks through a bounded worker
// pool, backed durably by the Store so an in-flight task survives a daemon
// restart (see store.Store.ResurrectProcessingTasks).
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/riverrun/depwatch/internal/depwatcherrors"
	"github.com/riverrun/depwatch/internal/logfields"
	"github.com/riverrun/depwatch/internal/metrics"
	"github.com/riverrun/depwatch/internal/retry"
	"github.com/riverrun/depwatch/internal/store"
)

// Handler reconciles one task. A transient failure should be wrapped with
// depwatcherrors.ErrTransient so the queue retries it; any other error
// is terminal for that task.
type Handler func(ctx context.Context, task store.Task) error

// TaskQueue is a durable, bounded-concurrency task runner: tasks are
// written to the Store before they become visible to workers, and a
// feeder goroutine claims pending tasks (flipping them to TaskProcessing)
// before handing them to a worker, so two feeder ticks never dispatch the
// same task twice.
type TaskQueue struct {
	st      store.Store
	handler Handler

	jobs     chan store.Task
	workers  int
	inFlight int64 // claimed but not yet completed, bounded by workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	feedInterval time.Duration
	retryPolicy  retry.Policy
	recorder     metrics.Recorder
}

// New builds a TaskQueue with workers concurrent handlers and a channel
// buffer of queueSize.
func New(st store.Store, handler Handler, workers, queueSize int) *TaskQueue {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &TaskQueue{
		st:           st,
		handler:      handler,
		jobs:         make(chan store.Task, queueSize),
		workers:      workers,
		stopChan:     make(chan struct{}),
		feedInterval: 200 * time.Millisecond,
		retryPolicy:  retry.DefaultPolicy(),
		recorder:     metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder.
func (q *TaskQueue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	q.recorder = r
}

// SetRetryPolicy overrides the default transient-error retry policy.
func (q *TaskQueue) SetRetryPolicy(p retry.Policy) {
	q.retryPolicy = p
}

// NewTaskID mints an opaque task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// Start resurrects any tasks orphaned by a prior crash, then launches the
// feeder and worker goroutines. It returns once startup bookkeeping is
// done; workers keep running until ctx is canceled or Stop is called.
func (q *TaskQueue) Start(ctx context.Context) error {
	n, err := q.st.ResurrectProcessingTasks(ctx)
	if err != nil {
		return fmt.Errorf("resurrect processing tasks: %w", err)
	}
	if n > 0 {
		slog.Info("resurrected interrupted tasks", "count", n)
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}

	q.wg.Add(1)
	go q.feed(ctx)

	return nil
}

// Stop signals all goroutines to exit and waits for them.
func (q *TaskQueue) Stop() {
	close(q.stopChan)
	q.wg.Wait()
}

// Enqueue durably records a new pending task. It becomes visible to
// workers on the feeder's next tick, not synchronously.
func (q *TaskQueue) Enqueue(ctx context.Context, ecosystemTag, projectPath, manifestPath string) (string, error) {
	task := store.Task{
		ID:           NewTaskID(),
		Ecosystem:    ecosystemTag,
		ProjectPath:  projectPath,
		ManifestPath: manifestPath,
		Status:       store.TaskPending,
	}
	if err := q.st.UpsertTask(ctx, task); err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return task.ID, nil
}

// feed claims pending tasks from the Store and hands them to workers. It
// is the only goroutine that transitions tasks from pending to
// processing, so no two ticks can claim the same row.
func (q *TaskQueue) feed(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.feedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-ticker.C:
			q.claimBatch(ctx)
		}
	}
}

// claimBatch sizes its claim by the worker pool's remaining capacity, not
// the channel buffer: the invariant is that in-flight tasks never exceed
// the worker count, and the channel buffer exists only to smooth bursts
// between a feeder tick and a worker picking a job up.
func (q *TaskQueue) claimBatch(ctx context.Context) {
	room := q.workers - int(atomic.LoadInt64(&q.inFlight))
	if room <= 0 {
		return
	}
	pending, err := q.st.ListPendingTasks(ctx, room)
	if err != nil {
		slog.Warn("list pending tasks failed", logfields.Error(err))
		return
	}
	for _, t := range pending {
		if err := q.st.AdvanceTaskStatus(ctx, t.ID, store.TaskProcessing, ""); err != nil {
			slog.Warn("claim task failed", logfields.TaskID(t.ID), logfields.Error(err))
			continue
		}
		t.Status = store.TaskProcessing
		atomic.AddInt64(&q.inFlight, 1)
		select {
		case q.jobs <- t:
		case <-ctx.Done():
			atomic.AddInt64(&q.inFlight, -1)
			return
		case <-q.stopChan:
			atomic.AddInt64(&q.inFlight, -1)
			return
		}
	}
	q.recorder.SetQueueDepth(len(q.jobs))
}

func (q *TaskQueue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case t := <-q.jobs:
			q.process(ctx, t, workerID)
			q.recorder.SetQueueDepth(len(q.jobs))
		}
	}
}

func (q *TaskQueue) process(ctx context.Context, t store.Task, workerID string) {
	defer atomic.AddInt64(&q.inFlight, -1)

	start := time.Now()
	err := q.runWithRetry(ctx, t, workerID)
	duration := time.Since(start)

	outcome := metrics.TaskOutcomeCompleted
	status := store.TaskCompleted
	errMsg := ""
	if err != nil {
		outcome = metrics.TaskOutcomeFailed
		status = store.TaskFailed
		errMsg = err.Error()
	}

	if advErr := q.st.AdvanceTaskStatus(ctx, t.ID, status, errMsg); advErr != nil {
		slog.Warn("advance task status failed", logfields.TaskID(t.ID), logfields.Error(advErr))
	}
	q.recorder.IncTaskOutcome(t.Ecosystem, outcome)
	q.recorder.ObserveTaskDuration(t.Ecosystem, duration)

	logLevel := slog.LevelInfo
	if err != nil {
		logLevel = slog.LevelWarn
	}
	slog.Log(ctx, logLevel, "task finished",
		logfields.TaskID(t.ID), logfields.Ecosystem(t.Ecosystem), logfields.Worker(workerID),
		logfields.TaskStatus(string(status)), logfields.DurationMS(float64(duration.Milliseconds())), logfields.Error(err))
}

// runWithRetry re-invokes the handler while it keeps returning errors
// wrapped in depwatcherrors.ErrTransient, backing off between attempts and
// giving up once the retry policy's max is reached.
func (q *TaskQueue) runWithRetry(ctx context.Context, t store.Task, workerID string) error {
	retries := 0
	for {
		err := q.handler(ctx, t)
		if err == nil {
			return nil
		}
		if !isTransient(err) || retries >= q.retryPolicy.MaxRetries {
			if isTransient(err) && retries > 0 {
				q.recorder.IncBuildRetryExhausted(t.Ecosystem)
			}
			return err
		}

		retries++
		q.recorder.IncBuildRetry(t.Ecosystem)
		delay := q.retryPolicy.Delay(retries)
		slog.Warn("transient task error, retrying",
			logfields.TaskID(t.ID), logfields.Worker(workerID), logfields.Reason(err.Error()), "retry", retries, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isTransient(err error) bool {
	return err != nil && errors.Is(err, depwatcherrors.ErrTransient)
}
