// Package lifecycle implements the Agent Lifecycle Controller (spec.md
// §4.1): the process-wide agent singleton that owns startup, the main
// cycle loop, and shutdown. It generalizes the teacher's worker-pool
// start/stop/drain (pkg/queue/pool.go) and background-loop idiom
// (pkg/cleanup/service.go) from session-claiming workers to the engine's
// own cycle loop.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopagent/core/pkg/config"
	"github.com/loopagent/core/pkg/decision"
	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/queue"
	"github.com/loopagent/core/pkg/state"
)

// Controller owns the engine singleton: start, stop, submit, status.
type Controller struct {
	cfg      config.AgentSection
	queue    *queue.Queue
	executor *queue.Executor
	state    *state.Manager
	decision *decision.Engine

	mu         sync.Mutex
	running    bool
	agentID    string
	startTime  time.Time
	cycleCount int64
	cancel     context.CancelFunc
	done       chan struct{}
}

// New returns a Controller wired to its collaborators. The Executor is
// expected to already be constructed with its handler registry (pkg/toolexec
// and pkg/mcptool.Handler) — the Controller only starts/stops it.
func New(cfg config.AgentSection, q *queue.Queue, executor *queue.Executor, stateManager *state.Manager, decisionEngine *decision.Engine) *Controller {
	return &Controller{
		cfg:      cfg,
		queue:    q,
		executor: executor,
		state:    stateManager,
		decision: decisionEngine,
	}
}

// IsRunning reports whether the controller's main cycle loop is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start performs the synchronous startup sequence (spec.md §4.1) and
// launches the main cycle loop. A second Start call while running is a
// no-op. Startup is fatal if the State Manager cannot initialise.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	if err := c.state.LoadState(); err != nil {
		return fmt.Errorf("lifecycle: state manager init failed: %w", err)
	}

	if v, ok := c.state.GetState("agent_id"); ok {
		if id, ok := v.(string); ok && id != "" {
			c.agentID = id
		}
	}
	if c.agentID == "" {
		c.agentID = uuid.NewString()
		c.state.SetState("agent_id", c.agentID)
	}
	c.startTime = time.Now()
	c.state.SetState("start_time", c.startTime)
	c.cycleCount = 0

	c.state.StartScheduler(ctx)
	c.executor.Start(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.runCycleLoop(loopCtx)

	c.running = true
	slog.Info("lifecycle: agent started", "agent_id", c.agentID)
	return nil
}

// Stop runs the shutdown sequence: cancel the cycle loop, drain the
// executor, save final state, mark not-running. Idempotent and always
// best-effort past the cycle-loop cancellation.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	done := c.done
	c.running = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	shutdownTimeout := c.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	c.executor.Stop(shutdownTimeout)

	if err := c.state.Shutdown(); err != nil {
		slog.Error("lifecycle: final state save failed", "error", err)
	}

	slog.Info("lifecycle: agent stopped")
	return nil
}

// Submit enqueues task on the Task Queue, returning its assigned id.
func (c *Controller) Submit(task *models.AgentTask) string {
	return c.queue.Submit(task)
}

// Status returns a snapshot of the engine's running state and queue stats.
func (c *Controller) Status() models.AgentStatus {
	c.mu.Lock()
	running := c.running
	agentID := c.agentID
	startTime := c.startTime
	cycleCount := c.cycleCount
	c.mu.Unlock()

	stats := c.queue.GetStatistics()
	ctx := c.state.GetContext()

	return models.AgentStatus{
		Running:            running,
		AgentID:            agentID,
		StartTime:          startTime,
		CycleCount:         cycleCount,
		LastActivity:       ctx.LastUpdated,
		PendingTasks:       stats.PendingTasks,
		RunningTasks:       stats.RunningTasks,
		TotalTasksExecuted: c.state.TotalTasksExecuted(),
		FailedTasks:        c.state.FailedTasks(),
	}
}

// runCycleLoop is the main cycle loop of spec.md §4.1: update last_activity,
// record queue statistics, queue cleanup, periodic state persistence, sleep.
// A normal cycle makes no Decision Engine call; the Decision Engine is
// consulted only by handleCycleError, when a cycle fails.
func (c *Controller) runCycleLoop(ctx context.Context) {
	defer close(c.done)

	interval := time.Duration(c.cfg.ExecutionIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	persistEvery := c.cfg.PersistStateEveryNCycles
	if persistEvery <= 0 {
		persistEvery = 50
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.runOneCycle(ctx, persistEvery); err != nil {
			sleepDelay := c.handleCycleError(ctx, err)
			if sleepDelay < 0 {
				return // Decision Engine said STOP
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleepDelay):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (c *Controller) runOneCycle(ctx context.Context, persistEvery int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle loop panic: %v", r)
		}
	}()

	c.state.SetState("last_activity", time.Now())

	stats := c.queue.GetStatistics()
	c.mu.Lock()
	c.cycleCount++
	cycle := c.cycleCount
	c.mu.Unlock()

	c.state.SetState("completed", stats.CompletedTasks)
	c.state.SetState("failed", stats.FailedTasks)
	c.state.SetState("pending", stats.PendingTasks)
	c.state.SetState("cycle_count", cycle)

	c.queue.CleanupCompletedTasks()

	if cycle%int64(persistEvery) == 0 {
		if saveErr := c.state.SaveState(); saveErr != nil {
			slog.Error("lifecycle: periodic state save failed", "error", saveErr)
		}
	}

	return nil
}

// handleCycleError asks the Decision Engine whether to retry (with its
// suggested delay), stop (signalled by a negative duration), or — on
// escalation or Decision Engine failure — fall back to a 5s sleep, per
// spec.md §4.1's error policy.
func (c *Controller) handleCycleError(ctx context.Context, cycleErr error) time.Duration {
	slog.Warn("lifecycle: cycle error", "error", cycleErr)

	decision := c.decision.HandleError(ctx, cycleErr, "agent lifecycle main cycle loop")
	switch decision.Action {
	case "STOP":
		return -1
	case "RETRY":
		return decision.RetryDelay()
	default:
		return 5 * time.Second
	}
}
