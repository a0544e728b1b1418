package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/models"
)

func TestMakeDecisionExtractsConfidence(t *testing.T) {
	client := llm.NewScriptedClient("Pick option A because it is safest.\nCONFIDENCE:85")
	e := New(client)

	text, confidence, err := e.MakeDecision(context.Background(), "ctx", "which option?", []string{"A", "B"})
	assert.NoError(t, err)
	assert.Contains(t, text, "option A")
	assert.Equal(t, 85, confidence)
}

func TestMakeDecisionMissingConfidenceDefaultsToZero(t *testing.T) {
	client := llm.NewScriptedClient("Pick option A.")
	e := New(client)

	_, confidence, err := e.MakeDecision(context.Background(), "ctx", "which?", []string{"A"})
	assert.NoError(t, err)
	assert.Equal(t, 0, confidence)
}

func TestDecideStrategyParsesJSON(t *testing.T) {
	client := llm.NewScriptedClient(`{"type": "AGGRESSIVE", "reasoning": "deadline is near", "priority": "HIGH"}`)
	e := New(client)

	s := e.DecideStrategy(context.Background(), "tight deadline", "ctx")
	assert.Equal(t, StrategyAggressive, s.Type)
	assert.Equal(t, "HIGH", s.Priority)
}

func TestDecideStrategyRepairsMalformedJSON(t *testing.T) {
	client := llm.NewScriptedClient(`{type: "CONSERVATIVE", reasoning: "low risk appetite", priority: "LOW",}`)
	e := New(client)

	s := e.DecideStrategy(context.Background(), "situation", "ctx")
	assert.Equal(t, StrategyConservative, s.Type)
}

func TestDecideStrategyFallsBackToBalancedOnGarbage(t *testing.T) {
	client := llm.NewScriptedClient("I cannot decide.")
	e := New(client)

	s := e.DecideStrategy(context.Background(), "situation", "ctx")
	assert.Equal(t, StrategyBalanced, s.Type)
}

func TestDecideStrategyFallsBackOnLLMError(t *testing.T) {
	client := llm.NewScriptedClient()
	client.EnqueueError(errors.New("provider down"))
	e := New(client)

	s := e.DecideStrategy(context.Background(), "situation", "ctx")
	assert.Equal(t, StrategyBalanced, s.Type)
}

func TestShouldTakeActionYes(t *testing.T) {
	client := llm.NewScriptedClient(`{"should_proceed": "YES", "reasoning": "low impact", "risk_level": "LOW"}`)
	e := New(client)

	check := e.ShouldTakeAction(context.Background(), "delete temp file", "ctx", nil)
	assert.True(t, check.ShouldProceed)
	assert.Equal(t, "LOW", check.RiskLevel)
}

func TestShouldTakeActionDefaultsToNoOnParseFailure(t *testing.T) {
	client := llm.NewScriptedClient("unparseable nonsense")
	e := New(client)

	check := e.ShouldTakeAction(context.Background(), "rm -rf /", "ctx", nil)
	assert.False(t, check.ShouldProceed)
	assert.Equal(t, "HIGH", check.RiskLevel)
}

func TestPrioritizeTasksReordersByLLMOutput(t *testing.T) {
	tasks := []*models.AgentTask{
		{ID: "a", Name: "first"},
		{ID: "b", Name: "second"},
		{ID: "c", Name: "third"},
	}
	client := llm.NewScriptedClient(`{"order": ["c", "a", "b"]}`)
	e := New(client)

	reordered := e.PrioritizeTasks(context.Background(), tasks, "ctx")
	assert.Equal(t, []string{"c", "a", "b"}, idsOf(reordered))
}

func TestPrioritizeTasksAppendsTaskOmittedFromReply(t *testing.T) {
	tasks := []*models.AgentTask{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}
	client := llm.NewScriptedClient(`{"order": ["a", "b"]}`)
	e := New(client)

	reordered := e.PrioritizeTasks(context.Background(), tasks, "ctx")
	assert.Equal(t, []string{"a", "b", "c"}, idsOf(reordered))
}

func TestPrioritizeTasksSkipsLLMCallForSingleTask(t *testing.T) {
	tasks := []*models.AgentTask{{ID: "only"}}
	client := llm.NewScriptedClient()
	e := New(client)

	reordered := e.PrioritizeTasks(context.Background(), tasks, "ctx")
	assert.Equal(t, tasks, reordered)
	assert.Empty(t, client.Prompts)
}

func TestHandleErrorParsesAction(t *testing.T) {
	client := llm.NewScriptedClient(`{"action": "ESCALATE", "reason": "data loss risk", "retry_delay_ms": 2000}`)
	e := New(client)

	d := e.HandleError(context.Background(), errors.New("disk full"), "ctx")
	assert.Equal(t, ErrorActionEscalate, d.Action)
	assert.Equal(t, 2000, d.RetryDelayMs)
}

func TestHandleErrorDefaultsToRetryWithFiveSecondsOnParseFailure(t *testing.T) {
	client := llm.NewScriptedClient("the system encountered an issue")
	e := New(client)

	d := e.HandleError(context.Background(), errors.New("timeout"), "ctx")
	assert.Equal(t, ErrorActionRetry, d.Action)
	assert.Equal(t, 5000, d.RetryDelayMs)
}

func TestHandleErrorNilErrorReturnsDefault(t *testing.T) {
	client := llm.NewScriptedClient()
	e := New(client)

	d := e.HandleError(context.Background(), nil, "ctx")
	assert.Equal(t, ErrorActionRetry, d.Action)
}

func idsOf(tasks []*models.AgentTask) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
