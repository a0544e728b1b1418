package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopagent/core/pkg/decision"
	"github.com/loopagent/core/pkg/interaction"
	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/probe"
	"github.com/loopagent/core/pkg/queue"
	"github.com/loopagent/core/pkg/state"
)

type stubHandler struct {
	result *models.TaskResult
	err    error
}

func (h stubHandler) Execute(_ context.Context, _ *models.AgentTask) (*models.TaskResult, error) {
	return h.result, h.err
}

func newTestPlanner(t *testing.T, client llm.Client, backend interaction.Backend) (*Planner, *queue.Queue, func()) {
	t.Helper()
	workDir := t.TempDir()
	q := queue.New()
	handlers := map[models.TaskType]queue.Handler{
		models.TaskShellCommand: stubHandler{result: &models.TaskResult{Output: "ok"}},
		models.TaskAIAnalysis:   stubHandler{result: &models.TaskResult{Output: "analysed"}},
		models.TaskFileWrite:    stubHandler{result: &models.TaskResult{Output: "written"}},
	}
	executor := queue.NewExecutor(q, handlers, 4, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	executor.Start(ctx)

	stateManager := state.New(state.Options{
		FilePath:          filepath.Join(t.TempDir(), "agent-state.json"),
		BackupInterval:    0,
		MaxHistoryEntries: 100,
	})
	planner := New(client, q, decision.New(client), probe.NewToolInventory(16), stateManager, backend, workDir)
	return planner, q, cancel
}

func TestExecutePlanCompletesAllSubtasksOnSuccess(t *testing.T) {
	client := llm.NewScriptedClient()
	client.Enqueue(
		"reasoning about subtask", // reason
		"ACTION_TYPE: SHELL_COMMAND\nACTION_DESCRIPTION: run it\nPARAMETERS: command=echo hi\nEXPECTED_OUTCOME: prints hi", // act
		"it printed hi", // observe
		"YES, goal met",  // reflect
	)
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	plan := &models.Plan{
		ID:   "plan-1",
		Goal: models.Goal{ID: "goal-1", Description: "do a thing"},
		Subtasks: []*models.SubTask{
			{ID: "st-1", Name: "only subtask", Priority: models.PriorityMedium, Status: models.SubTaskPending},
		},
		Status: models.PlanCreated,
	}
	planner.store(plan)

	execution, err := planner.ExecutePlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, models.PlanCompleted, plan.Status)
	assert.Equal(t, models.SubTaskCompleted, plan.Subtasks[0].Status)
	assert.Len(t, execution.Steps, 1)
	assert.Equal(t, 1, planner.State.TotalTasksExecuted())
	assert.Equal(t, 0, planner.State.FailedTasks())
}

// TestExecutePlanRecordsTaskOutcomesAcrossSubtasks locks in spec.md §8
// scenario 1's "total_tasks_executed += 3": three subtasks, each dispatching
// one action task via the ReAct cycle, must each advance the counter.
func TestExecutePlanRecordsTaskOutcomesAcrossSubtasks(t *testing.T) {
	client := llm.NewScriptedClient()
	for i := 0; i < 3; i++ {
		client.Enqueue(
			"reasoning about subtask",
			"ACTION_TYPE: SHELL_COMMAND\nACTION_DESCRIPTION: run it\nPARAMETERS: command=echo hi\nEXPECTED_OUTCOME: prints hi",
			"it printed hi",
			"YES, goal met",
		)
	}
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	plan := &models.Plan{
		ID:   "plan-counters",
		Goal: models.Goal{ID: "goal-counters", Description: "do three things"},
		Subtasks: []*models.SubTask{
			{ID: "st-1", Name: "first", Priority: models.PriorityMedium, Status: models.SubTaskPending},
			{ID: "st-2", Name: "second", Priority: models.PriorityMedium, Status: models.SubTaskPending},
			{ID: "st-3", Name: "third", Priority: models.PriorityMedium, Status: models.SubTaskPending},
		},
		Status: models.PlanCreated,
	}
	planner.store(plan)

	execution, err := planner.ExecutePlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, 3, planner.State.TotalTasksExecuted())
	assert.Equal(t, 0, planner.State.FailedTasks())
}

func TestExecutePlanUnknownPlanErrors(t *testing.T) {
	client := llm.NewScriptedClient()
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	_, err := planner.ExecutePlan(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestExecutePlanSkipsBlockedSubtask(t *testing.T) {
	client := llm.NewScriptedClient()
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	plan := &models.Plan{
		ID:   "plan-2",
		Goal: models.Goal{ID: "goal-2", Description: "do a thing"},
		Subtasks: []*models.SubTask{
			{ID: "st-1", Name: "blocked", Priority: models.PriorityMedium, Status: models.SubTaskPending, Dependencies: []string{"missing"}},
		},
		Status: models.PlanCreated,
	}
	planner.store(plan)

	execution, err := planner.ExecutePlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubTaskBlocked, plan.Subtasks[0].Status)
	assert.Equal(t, models.PlanCompleted, plan.Status) // blocked subtasks don't count as failed
	assert.Empty(t, execution.Steps)
}

func TestExecutePlanStopsOnCriticalFailureWithNonInteractiveBackend(t *testing.T) {
	client := llm.NewScriptedClient()
	client.Enqueue(
		"reasoning", // reason
		"ACTION_TYPE: AI_ANALYSIS\nACTION_DESCRIPTION: analyse\nPARAMETERS: NONE\nEXPECTED_OUTCOME: insight", // act
		"nothing useful happened", // observe
		"NO, goal not met",        // reflect
	)
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	plan := &models.Plan{
		ID:   "plan-3",
		Goal: models.Goal{ID: "goal-3", Description: "do a thing"},
		Subtasks: []*models.SubTask{
			{ID: "st-1", Name: "critical", Priority: models.PriorityCritical, Status: models.SubTaskPending},
			{ID: "st-2", Name: "never reached", Priority: models.PriorityMedium, Status: models.SubTaskPending},
		},
		Status: models.PlanCreated,
	}
	planner.store(plan)

	execution, err := planner.ExecutePlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, execution.Status)
	assert.Equal(t, models.SubTaskFailed, plan.Subtasks[0].Status)
	assert.Equal(t, models.SubTaskPending, plan.Subtasks[1].Status) // loop broke before reaching it
}

// retryOnceBackend returns DecisionRetry for the first failure it sees, then
// DecisionContinue — enough to prove a Retry verdict actually re-executes
// the subtask rather than silently skipping it (spec.md §4.2.5).
type retryOnceBackend struct {
	used bool
}

func (b *retryOnceBackend) Resolve(_ interaction.FailureReport) interaction.Decision {
	if !b.used {
		b.used = true
		return interaction.DecisionRetry
	}
	return interaction.DecisionContinue
}

func TestExecutePlanRetryVerdictReExecutesSubtask(t *testing.T) {
	client := llm.NewScriptedClient()
	client.Enqueue(
		"reasoning attempt 1",
		"ACTION_TYPE: SHELL_COMMAND\nACTION_DESCRIPTION: run it\nPARAMETERS: command=flaky\nEXPECTED_OUTCOME: prints hi",
		"it did not print hi",
		"NO, goal not met",
	)
	client.Enqueue(
		"reasoning attempt 2",
		"ACTION_TYPE: SHELL_COMMAND\nACTION_DESCRIPTION: run it\nPARAMETERS: command=flaky\nEXPECTED_OUTCOME: prints hi",
		"it printed hi",
		"YES, goal met",
	)
	planner, _, cancel := newTestPlanner(t, client, &retryOnceBackend{})
	defer cancel()

	plan := &models.Plan{
		ID:   "plan-retry",
		Goal: models.Goal{ID: "goal-retry", Description: "do a flaky thing"},
		Subtasks: []*models.SubTask{
			{ID: "st-1", Name: "flaky", Priority: models.PriorityMedium, Status: models.SubTaskPending},
		},
		Status: models.PlanCreated,
	}
	planner.store(plan)

	execution, err := planner.ExecutePlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, execution.Status)
	assert.Equal(t, models.SubTaskCompleted, plan.Subtasks[0].Status)
	assert.Len(t, execution.Steps, 2, "the subtask must run twice: once failing, once after Retry")
	assert.Equal(t, 2, planner.State.TotalTasksExecuted())
	assert.Equal(t, 0, planner.State.FailedTasks())
}

func TestWriteSubtaskFileCreateFailsIfExists(t *testing.T) {
	client := llm.NewScriptedClient()
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	target := filepath.Join(planner.WorkDir, "existing.txt")
	require.NoError(t, os.WriteFile(target, []byte("already here"), 0o644))

	subtask := &models.SubTask{
		ID:                "st-file",
		FilePath:          "existing.txt",
		FileContent:       "new content",
		FileOperationMode: models.FileOpCreate,
	}
	err := planner.writeSubtaskFile(subtask)
	assert.Error(t, err)
}

func TestWriteSubtaskFileAppendConcatenates(t *testing.T) {
	client := llm.NewScriptedClient()
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	target := filepath.Join(planner.WorkDir, "log.txt")
	require.NoError(t, os.WriteFile(target, []byte("line1\n"), 0o644))

	subtask := &models.SubTask{
		ID:                "st-file",
		FilePath:          "log.txt",
		FileContent:       "line2\n",
		FileOperationMode: models.FileOpAppend,
	}
	require.NoError(t, planner.writeSubtaskFile(subtask))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
}

func TestWriteSubtaskFileModifyRecordsOriginalContent(t *testing.T) {
	client := llm.NewScriptedClient()
	planner, _, cancel := newTestPlanner(t, client, interaction.NewNonInteractiveBackend())
	defer cancel()

	target := filepath.Join(planner.WorkDir, "config.yaml")
	require.NoError(t, os.WriteFile(target, []byte("old: true\n"), 0o644))

	subtask := &models.SubTask{
		ID:                "st-file",
		FilePath:          "config.yaml",
		FileContent:       "new: true\n",
		FileOperationMode: models.FileOpModify,
	}
	require.NoError(t, planner.writeSubtaskFile(subtask))
	assert.Equal(t, "old: true\n", subtask.OriginalFileContent)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new: true\n", string(data))
}
