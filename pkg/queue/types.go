// Package queue implements the bounded-concurrency, priority- and
// dependency-ordered task queue and executor the spec calls the "Task Queue
// & Executor" (spec.md §4.3). It de-ent-ifies the teacher's Postgres
// "FOR UPDATE SKIP LOCKED" claim queue (pkg/queue/pool.go, worker.go,
// executor.go in the teacher) into an in-memory task map that is sorted by
// priority on each readiness query, since the engine's AgentTask table lives
// in process memory, not a database.
package queue

import (
	"errors"
	"strings"
	"time"
)

// Sentinel errors for queue operations.
var (
	// ErrTaskNotFound indicates getTask/markTaskFailed referenced an unknown id.
	ErrTaskNotFound = errors.New("queue: task not found")

	// ErrDuplicateTask indicates submit was called twice with the same id.
	ErrDuplicateTask = errors.New("queue: duplicate task id")

	// ErrAtCapacity indicates the queue would exceed its configured backlog.
	ErrAtCapacity = errors.New("queue: at capacity")
)

// Statistics is the snapshot returned by Queue.GetStatistics.
type Statistics struct {
	TotalTasks    int            `json:"total_tasks"`
	QueuedTasks   int            `json:"queued_tasks"`
	RunningTasks  int            `json:"running_tasks"`
	CompletedTasks int           `json:"completed_tasks"`
	FailedTasks   int            `json:"failed_tasks"`
	PendingTasks  int            `json:"pending_tasks"`
	StatusCounts  map[string]int `json:"status_counts"`
}

// retryableSubstrings is checked by substring against an error's message to
// classify transient failures (network timeouts, transient IO) eligible for
// automatic re-queueing, per spec.md §4.3.3 step 5.
var retryableSubstrings = []string{
	"timeout", "deadline exceeded", "connection refused", "connection reset",
	"temporary failure", "eof", "i/o timeout",
}

// IsRetryable reports whether err's message matches a known-transient shape.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// defaultPollInterval is how often the executor's dispatch loop re-checks
// for newly-ready tasks and free worker slots.
const defaultPollInterval = 50 * time.Millisecond
