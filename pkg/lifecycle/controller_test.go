package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopagent/core/pkg/config"
	"github.com/loopagent/core/pkg/decision"
	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/queue"
	"github.com/loopagent/core/pkg/state"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	q := queue.New()
	executor := queue.NewExecutor(q, map[models.TaskType]queue.Handler{}, 2, time.Second)
	stateManager := state.New(state.Options{
		FilePath:          filepath.Join(t.TempDir(), "agent-state.json"),
		BackupInterval:    0,
		MaxHistoryEntries: 100,
	})
	decisionEngine := decision.New(llm.NewScriptedClient())
	cfg := config.AgentSection{
		MaxConcurrentTasks:       2,
		ExecutionIntervalMs:      10,
		ShutdownTimeout:          2 * time.Second,
		PersistStateEveryNCycles: 2,
	}
	return New(cfg, q, executor, stateManager, decisionEngine)
}

func TestStartIsIdempotent(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.IsRunning())
	require.NoError(t, c.Stop())
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	c := newTestController(t)
	assert.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
}

func TestStopIsIdempotent(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
}

func TestStatusReflectsRunningAndCounters(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	status := c.Status()
	assert.True(t, status.Running)
	assert.NotEmpty(t, status.AgentID)

	// Let a few cycles run so cycle_count advances and state gets persisted.
	time.Sleep(60 * time.Millisecond)
	status = c.Status()
	assert.True(t, status.Running)
	assert.Greater(t, status.CycleCount, int64(0))
}

func TestSubmitAssignsTaskID(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	id := c.Submit(&models.AgentTask{Name: "noop", Type: models.TaskAIAnalysis})
	assert.NotEmpty(t, id)
}

func TestStopSavesFinalState(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())

	// Clearing the in-memory state and reloading it from the file must bring
	// back what Stop saved.
	c.state.ClearAll()
	require.NoError(t, c.state.LoadState())
	_, ok := c.state.GetState("agent_id")
	assert.True(t, ok)
}
