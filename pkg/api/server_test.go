package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopagent/core/pkg/config"
	"github.com/loopagent/core/pkg/decision"
	"github.com/loopagent/core/pkg/interaction"
	"github.com/loopagent/core/pkg/lifecycle"
	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/planner"
	"github.com/loopagent/core/pkg/probe"
	"github.com/loopagent/core/pkg/queue"
	"github.com/loopagent/core/pkg/state"
)

func newTestServer(t *testing.T, client *llm.ScriptedClient) (*Server, *lifecycle.Controller) {
	t.Helper()

	q := queue.New()
	handlers := map[models.TaskType]queue.Handler{
		models.TaskShellCommand: stubHandler{},
		models.TaskAIAnalysis:   stubHandler{},
		models.TaskFileWrite:    stubHandler{},
	}
	executor := queue.NewExecutor(q, handlers, 2, 2*time.Second)

	stateManager := state.New(state.Options{
		FilePath:          t.TempDir() + "/agent-state.json",
		BackupInterval:    0,
		MaxHistoryEntries: 100,
	})
	decisionEngine := decision.New(client)
	tools := probe.NewToolInventory(16)
	backend := interaction.NewNonInteractiveBackend()

	p := planner.New(client, q, decisionEngine, tools, stateManager, backend, t.TempDir())

	cfg := config.AgentSection{
		MaxConcurrentTasks:       2,
		ExecutionIntervalMs:      10,
		ShutdownTimeout:          2 * time.Second,
		PersistStateEveryNCycles: 50,
	}
	controller := lifecycle.New(cfg, q, executor, stateManager, decisionEngine)

	return NewServer(p, controller, "test"), controller
}

// stubHandler completes every task instantly and successfully.
type stubHandler struct{}

func (stubHandler) Execute(_ context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	return &models.TaskResult{Output: "ok"}, nil
}

func TestHealthReportsAgentRunning(t *testing.T) {
	s, c := newTestServer(t, llm.NewScriptedClient())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["agent"])
}

func TestStatusEndpoint(t *testing.T) {
	s, c := newTestServer(t, llm.NewScriptedClient())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var status models.AgentStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)
}

func TestCreateAndGetPlan(t *testing.T) {
	client := llm.NewScriptedClient(
		"SUBTASK_1:\nDescription: do the thing\nExpected Outcome: done\nPriority: MEDIUM\nComplexity: SIMPLE\nDependencies: NONE\nCommands: NONE\nCode Language: NONE\nCode Content: NONE\nFile Path: NONE\nFile Content: NONE\n",
		"run subtask 1 first",
	)
	s, c := newTestServer(t, client)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	body, _ := json.Marshal(createPlanRequest{Goal: "ship the feature"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var plan models.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	require.NotEmpty(t, plan.ID)
	require.Len(t, plan.Subtasks, 1)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/plans/"+plan.ID, nil)
	s.engine.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestGetPlanNotFound(t *testing.T) {
	s, c := newTestServer(t, llm.NewScriptedClient())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/plans/does-not-exist", nil)
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelPlanBeforeExecution(t *testing.T) {
	client := llm.NewScriptedClient(
		"SUBTASK_1:\nDescription: do the thing\nExpected Outcome: done\nPriority: MEDIUM\nComplexity: SIMPLE\nDependencies: NONE\nCommands: NONE\nCode Language: NONE\nCode Content: NONE\nFile Path: NONE\nFile Content: NONE\n",
		"run subtask 1 first",
	)
	s, c := newTestServer(t, client)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	body, _ := json.Marshal(createPlanRequest{Goal: "ship the feature"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var plan models.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/plans/"+plan.ID+"/cancel", nil)
	s.engine.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestCancelPlanUnknownIDFails(t *testing.T) {
	s, c := newTestServer(t, llm.NewScriptedClient())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/plans/does-not-exist/cancel", nil)
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePlanRejectsMissingGoal(t *testing.T) {
	s, c := newTestServer(t, llm.NewScriptedClient())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/plans", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
