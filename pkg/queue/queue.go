package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loopagent/core/pkg/models"
)

// Queue is the in-memory, priority- and dependency-ordered task table.
// Operations mirror spec.md §4.3.1 exactly: submit, getTask, getReadyTasks,
// markTaskFailed, cleanupCompletedTasks, getStatistics. A single mutex
// guards the whole table — contention is not a concern at the scale this
// engine targets (hundreds, not millions, of in-flight tasks).
type Queue struct {
	mu                 sync.Mutex
	tasks              map[string]*models.AgentTask
	seq                uint64
	totalCompletedEver int
	totalFailedEver    int
	done               map[string]chan struct{} // completion notification, spec.md §5
}

// New returns an empty, ready-to-use Queue.
func New() *Queue {
	return &Queue{
		tasks: make(map[string]*models.AgentTask),
		done:  make(map[string]chan struct{}),
	}
}

// Submit inserts task, assigning an id and CreatedAt if unset, and sets its
// status to PENDING. Returns the task id.
func (q *Queue) Submit(task *models.AgentTask) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	task.Status = models.AgentTaskPending
	q.seq++
	task.SetSeq(q.seq)

	q.tasks[task.ID] = task
	q.done[task.ID] = make(chan struct{})
	return task.ID
}

// GetTask returns the task with the given id, or nil.
func (q *Queue) GetTask(taskID string) *models.AgentTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks[taskID]
}

// Done returns a channel closed when taskID reaches a terminal status, for
// the completion-notification primitive spec.md §5 prefers over polling.
// Returns nil if taskID is unknown.
func (q *Queue) Done(taskID string) <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done[taskID]
}

// statusSnapshotLocked returns the status of every known task, keyed by id.
// Caller must hold q.mu.
func (q *Queue) statusSnapshotLocked() map[string]models.AgentTaskStatus {
	snap := make(map[string]models.AgentTaskStatus, len(q.tasks))
	for id, t := range q.tasks {
		snap[id] = t.Status
	}
	return snap
}

// GetReadyTasks returns up to limit tasks whose dependencies are all
// COMPLETED, ordered priority-then-FIFO-by-CreatedAt. Eligible PENDING
// tasks are promoted to READY as a side effect (spec.md §4.3.2).
func (q *Queue) GetReadyTasks(limit int) []*models.AgentTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	statuses := q.statusSnapshotLocked()

	var ready []*models.AgentTask
	for _, t := range q.tasks {
		switch t.Status {
		case models.AgentTaskPending:
			if t.DependenciesMet(statuses) {
				t.Status = models.AgentTaskReady
				ready = append(ready, t)
			}
		case models.AgentTaskReady:
			ready = append(ready, t)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority.Before(ready[j].Priority)
		}
		if !ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		}
		return ready[i].Seq() < ready[j].Seq()
	})

	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}
	return ready
}

// MarkRunning transitions a READY or PENDING task to RUNNING, setting
// StartedAt. Returns false if the task is not in a state that can start.
func (q *Queue) MarkRunning(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok || (t.Status != models.AgentTaskReady && t.Status != models.AgentTaskPending) {
		return false
	}
	now := time.Now()
	t.Status = models.AgentTaskRunning
	t.StartedAt = &now
	return true
}

// MarkCompleted transitions taskID to COMPLETED with the given result.
func (q *Queue) MarkCompleted(taskID string, result *models.TaskResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return
	}
	now := time.Now()
	t.Status = models.AgentTaskComplete
	t.CompletedAt = &now
	t.Result = result
	q.totalCompletedEver++
	q.closeDoneLocked(taskID)
}

// MarkTaskFailed transitions taskID to FAILED with reason, per spec.md §4.3.1.
func (q *Queue) MarkTaskFailed(taskID string, reason string) {
	q.MarkTaskFailedWithResult(taskID, reason, nil)
}

// MarkTaskFailedWithResult transitions taskID to FAILED with reason,
// attaching result when the handler produced one before failing (e.g. a
// SHELL_COMMAND's non-zero exit still carries captured output).
func (q *Queue) MarkTaskFailedWithResult(taskID, reason string, result *models.TaskResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return
	}
	now := time.Now()
	t.Status = models.AgentTaskFailed
	t.CompletedAt = &now
	t.ErrorMessage = reason
	if result != nil {
		t.Result = result
	}
	q.totalFailedEver++
	q.closeDoneLocked(taskID)
}

// MarkCancelled transitions taskID to CANCELLED, used during shutdown drain.
func (q *Queue) MarkCancelled(taskID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok || t.Status.IsTerminal() {
		return
	}
	now := time.Now()
	t.Status = models.AgentTaskCancelled
	t.CompletedAt = &now
	q.closeDoneLocked(taskID)
}

// CancelOutstanding transitions every PENDING and READY task to CANCELLED,
// for the Executor's shutdown drain: tasks that were never dispatched to a
// worker don't get a per-task context to cancel, so the dispatch loop exiting
// alone would otherwise leave them PENDING forever. Returns the cancelled ids.
func (q *Queue) CancelOutstanding() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var cancelled []string
	now := time.Now()
	for id, t := range q.tasks {
		if t.Status == models.AgentTaskPending || t.Status == models.AgentTaskReady {
			t.Status = models.AgentTaskCancelled
			t.CompletedAt = &now
			cancelled = append(cancelled, id)
			q.closeDoneLocked(id)
		}
	}
	return cancelled
}

// ResetForRetry puts a task back to PENDING, whatever its status, so the
// dispatch loop will pick it up again; the executor calls it on a RUNNING
// task whose handler failed retryably and is responsible for incrementing
// RetryCount before calling this (spec.md §4.3.3 step 5 — retries are never
// duplicate submits).
func (q *Queue) ResetForRetry(taskID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return
	}
	t.Status = models.AgentTaskPending
	t.StartedAt = nil
	t.CompletedAt = nil
	q.done[taskID] = make(chan struct{})
}

func (q *Queue) closeDoneLocked(taskID string) {
	if ch, ok := q.done[taskID]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// CleanupCompletedTasks purges COMPLETED tasks from the table, keeping the
// running counters intact (spec.md §4.3.1). FAILED/CANCELLED tasks are kept
// so callers can inspect errorMessage after the fact. It purges every
// COMPLETED task present when called, whether or not a waiter has read it;
// the Lifecycle Controller calls it on every cycle.
func (q *Queue) CleanupCompletedTasks() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	purged := 0
	for id, t := range q.tasks {
		if t.Status == models.AgentTaskComplete {
			delete(q.tasks, id)
			delete(q.done, id)
			purged++
		}
	}
	return purged
}

// GetStatistics returns the current queue statistics, per spec.md §4.3.1.
func (q *Queue) GetStatistics() Statistics {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Statistics{
		StatusCounts: make(map[string]int),
	}
	for _, t := range q.tasks {
		stats.TotalTasks++
		stats.StatusCounts[string(t.Status)]++
		switch t.Status {
		case models.AgentTaskPending, models.AgentTaskReady:
			stats.PendingTasks++
			stats.QueuedTasks++
		case models.AgentTaskRunning:
			stats.RunningTasks++
		case models.AgentTaskComplete:
			stats.CompletedTasks++
		case models.AgentTaskFailed:
			stats.FailedTasks++
		}
	}
	return stats
}

// TotalCompletedEver returns the lifetime count of tasks that reached
// COMPLETED, including ones since purged by CleanupCompletedTasks.
func (q *Queue) TotalCompletedEver() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalCompletedEver
}

// TotalFailedEver returns the lifetime count of tasks that reached FAILED.
func (q *Queue) TotalFailedEver() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalFailedEver
}

// RunningCount returns the number of tasks currently RUNNING, used by the
// executor to enforce maxConcurrentTasks.
func (q *Queue) RunningCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, t := range q.tasks {
		if t.Status == models.AgentTaskRunning {
			n++
		}
	}
	return n
}
