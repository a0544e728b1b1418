package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loopagent/core/pkg/models"
)

// Handler executes one AgentTask of a specific TaskType. Implementations
// live in pkg/toolexec, one per spec.md §4.3.3 table row, and are dispatched
// by type from the Executor's handler registry.
type Handler interface {
	Execute(ctx context.Context, task *models.AgentTask) (*models.TaskResult, error)
}

// Executor runs a dispatch loop over a Queue, pulling ready tasks and
// running them on a worker pool bounded by maxConcurrentTasks, per spec.md
// §4.3 ("bounded concurrency, dependency gating, concurrent dispatch, per-
// type action handlers"). Generalizes the teacher's pkg/queue/worker.go
// fixed-worker-goroutine loop from one SessionExecutor to a per-TaskType
// handler registry.
type Executor struct {
	queue          *Queue
	handlers       map[models.TaskType]Handler
	maxConcurrent  int
	perTaskTimeout time.Duration

	sem    chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	running map[string]context.CancelFunc
}

// NewExecutor builds an Executor bound to queue, dispatching to handlers by
// TaskType, running at most maxConcurrent tasks at once, each capped at
// perTaskTimeout.
func NewExecutor(q *Queue, handlers map[models.TaskType]Handler, maxConcurrent int, perTaskTimeout time.Duration) *Executor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Executor{
		queue:          q,
		handlers:       handlers,
		maxConcurrent:  maxConcurrent,
		perTaskTimeout: perTaskTimeout,
		sem:            make(chan struct{}, maxConcurrent),
		stopCh:         make(chan struct{}),
		running:        make(map[string]context.CancelFunc),
	}
}

// Start launches the dispatch loop. Safe to call once; subsequent calls are
// no-ops.
func (e *Executor) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.wg.Add(1)
	go e.dispatchLoop(ctx)
}

func (e *Executor) dispatchLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.dispatchReady(ctx)
		}
	}
}

func (e *Executor) dispatchReady(ctx context.Context) {
	free := e.maxConcurrent - e.queue.RunningCount()
	if free <= 0 {
		return
	}
	ready := e.queue.GetReadyTasks(free)
	for _, task := range ready {
		select {
		case e.sem <- struct{}{}:
		default:
			return
		}
		e.wg.Add(1)
		go e.runTask(ctx, task)
	}
}

func (e *Executor) runTask(ctx context.Context, task *models.AgentTask) {
	defer e.wg.Done()
	defer func() { <-e.sem }()

	if !e.queue.MarkRunning(task.ID) {
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(task))
	e.mu.Lock()
	e.running[task.ID] = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		delete(e.running, task.ID)
		e.mu.Unlock()
	}()

	handler, ok := e.handlers[task.Type]
	if !ok {
		e.queue.MarkTaskFailed(task.ID, fmt.Sprintf("no handler registered for task type %q", task.Type))
		return
	}

	start := time.Now()
	result, err := func() (res *models.TaskResult, execErr error) {
		defer func() {
			if r := recover(); r != nil {
				execErr = fmt.Errorf("handler panic: %v", r)
			}
		}()
		return handler.Execute(taskCtx, task)
	}()

	if execErr := err; execErr != nil {
		slog.Warn("task execution failed", "task_id", task.ID, "type", task.Type, "error", execErr)
		if IsRetryable(execErr) && task.RetryCount < task.MaxRetries {
			task.RetryCount++
			e.queue.ResetForRetry(task.ID)
			return
		}
		e.queue.MarkTaskFailedWithResult(task.ID, execErr.Error(), result)
		return
	}

	if result == nil {
		result = &models.TaskResult{}
	}
	if result.DurationMs == 0 {
		result.DurationMs = time.Since(start).Milliseconds()
	}
	e.queue.MarkCompleted(task.ID, result)
}

func (e *Executor) timeoutFor(task *models.AgentTask) time.Duration {
	if e.perTaskTimeout > 0 {
		return e.perTaskTimeout
	}
	return 5 * time.Minute
}

// Stop signals the dispatch loop to exit and waits up to drainTimeout for
// in-flight tasks to finish; any still running after that are force-
// cancelled via their per-task context and marked CANCELLED. Whatever is
// left PENDING or READY — tasks the dispatch loop never got to — is also
// marked CANCELLED, per spec.md §5's shutdown transition and §8 scenario 6.
func (e *Executor) Stop(drainTimeout time.Duration) {
	close(e.stopCh)

	waited := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(drainTimeout):
		e.mu.Lock()
		remaining := make([]string, 0, len(e.running))
		for id, cancel := range e.running {
			remaining = append(remaining, id)
			cancel()
		}
		e.mu.Unlock()

		for _, id := range remaining {
			e.queue.MarkCancelled(id)
		}
	}

	e.queue.CancelOutstanding()
}
