// Package planner implements the Planning/ReAct Engine of spec.md §4.2: plan
// creation (context probe, decomposition prompt, strategy prompt) and plan
// execution (tool-availability check, file/shell directives, the four-phase
// ReAct cycle, memory updates, and the interactive failure protocol).
package planner

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopagent/core/pkg/decision"
	"github.com/loopagent/core/pkg/interaction"
	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/probe"
	"github.com/loopagent/core/pkg/queue"
	"github.com/loopagent/core/pkg/state"
)

// Planner owns the in-memory plan table and drives plans from goal to
// completion, per spec.md §4.2.1's "resulting Plan is stored in an in-memory
// plan table keyed by id".
type Planner struct {
	LLM         llm.Client
	Queue       *queue.Queue
	Decision    *decision.Engine
	Tools       *probe.ToolInventory
	Interaction interaction.Backend
	State       *state.Manager
	WorkDir     string

	mu    sync.Mutex
	plans map[string]*models.Plan
}

// New returns a ready-to-use Planner. stateManager may be nil in tests that
// don't care about AgentState bookkeeping; every dispatched task's terminal
// outcome is recorded against it via RecordTaskOutcome when set.
func New(client llm.Client, q *queue.Queue, decisionEngine *decision.Engine, tools *probe.ToolInventory, stateManager *state.Manager, backend interaction.Backend, workDir string) *Planner {
	return &Planner{
		LLM:         client,
		Queue:       q,
		Decision:    decisionEngine,
		Tools:       tools,
		Interaction: backend,
		State:       stateManager,
		WorkDir:     workDir,
		plans:       make(map[string]*models.Plan),
	}
}

// GetPlan returns the plan with the given id, or nil.
func (p *Planner) GetPlan(id string) *models.Plan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plans[id]
}

// ListPlans returns every known plan.
func (p *Planner) ListPlans() []*models.Plan {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Plan, 0, len(p.plans))
	for _, pl := range p.plans {
		out = append(out, pl)
	}
	return out
}

// CancelPlan marks a plan CANCELLED before it starts executing. Plans
// already executing or in a terminal state cannot be cancelled this way —
// ExecutePlan runs synchronously to completion once started, so there is no
// in-flight execution to interrupt.
func (p *Planner) CancelPlan(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.plans[id]
	if !ok {
		return fmt.Errorf("planner: unknown plan %q", id)
	}
	if plan.Status != models.PlanCreated {
		return fmt.Errorf("planner: plan %q is %s, cannot cancel", id, plan.Status)
	}
	plan.Status = models.PlanCancelled
	return nil
}

func (p *Planner) store(plan *models.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[plan.ID] = plan
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// waitForTask blocks on the queue's completion-notification channel for
// taskID, falling back to the 60s subtask-wait budget from spec.md §5 if the
// channel is somehow never closed. Every call is a dispatched AgentTask
// reaching a terminal state, so this is also where total_tasks_executed and
// failed_tasks (spec.md §3) get their only real-execution writer.
func (p *Planner) waitForTask(taskID string) *models.AgentTask {
	task := p.Queue.GetTask(taskID)
	done := p.Queue.Done(taskID)
	if done != nil {
		select {
		case <-done:
		case <-time.After(60 * time.Second):
		}
	}
	completed := p.Queue.GetTask(taskID)
	if completed == nil {
		// CleanupCompletedTasks may have purged the task once it completed.
		completed = task
	}
	if p.State != nil && completed != nil {
		p.State.RecordTaskOutcome(completed.Status != models.AgentTaskComplete)
	}
	return completed
}
