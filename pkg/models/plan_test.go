package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubTaskReadyFor(t *testing.T) {
	st := &SubTask{ID: "b", Dependencies: []string{"a"}}

	ready := st.ReadyFor(map[string]SubTaskStatus{"a": SubTaskRunning})
	assert.False(t, ready, "dependency still running should block readiness")

	ready = st.ReadyFor(map[string]SubTaskStatus{"a": SubTaskCompleted})
	assert.True(t, ready)
}

func TestSubTaskReadyForNoDependencies(t *testing.T) {
	st := &SubTask{ID: "a"}
	assert.True(t, st.ReadyFor(nil))
}

func TestPlanAllTerminalAndAnyFailed(t *testing.T) {
	p := &Plan{
		Subtasks: []*SubTask{
			{ID: "a", Status: SubTaskCompleted},
			{ID: "b", Status: SubTaskFailed},
		},
	}
	require.True(t, p.AllTerminal())
	assert.True(t, p.AnyFailed())

	p.Subtasks = append(p.Subtasks, &SubTask{ID: "c", Status: SubTaskPending})
	assert.False(t, p.AllTerminal())
}

func TestPriorityOrdering(t *testing.T) {
	assert.True(t, PriorityCritical.Before(PriorityHigh))
	assert.True(t, PriorityHigh.Before(PriorityMedium))
	assert.True(t, PriorityMedium.Before(PriorityLow))
	assert.False(t, PriorityLow.Before(PriorityCritical))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, PlanCreated.IsValid())
	assert.False(t, PlanStatus("BOGUS").IsValid())
	assert.True(t, TaskShellCommand.IsValid())
	assert.False(t, TaskType("NOPE").IsValid())
}

func TestAgentStateRecordHistoryBounded(t *testing.T) {
	s := NewAgentState()
	for i := 0; i < 5; i++ {
		s.RecordHistory(HistoryEntry{ChangeType: ChangeStateUpdate, Timestamp: time.Now()}, 3)
	}
	assert.Len(t, s.History, 3)
}
