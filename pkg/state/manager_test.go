package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopagent/core/pkg/models"
)

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	return New(Options{
		FilePath:          filepath.Join(dir, "agent-state.json"),
		BackupInterval:    0,
		MaxHistoryEntries: 100,
	})
}

func TestSetStateRecordsHistory(t *testing.T) {
	m := newTestManager(t, t.TempDir())

	m.SetState("x", 42)

	v, ok := m.GetState("x")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	history := m.GetRecentHistory(10)
	require.Len(t, history, 1)
	assert.Equal(t, models.ChangeStateUpdate, history[0].ChangeType)
	assert.Equal(t, "x", history[0].Key)
	assert.Equal(t, 42, history[0].NewValue)
	assert.Nil(t, history[0].OldValue)
}

func TestGetStateOrDefault(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	assert.Equal(t, "fallback", m.GetStateOrDefault("missing", "fallback"))

	m.SetState("present", "value")
	assert.Equal(t, "value", m.GetStateOrDefault("present", "fallback"))
}

func TestRemoveState(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	m.SetState("k", "v")
	m.RemoveState("k")

	_, ok := m.GetState("k")
	assert.False(t, ok)

	history := m.GetRecentHistory(10)
	require.Len(t, history, 2)
	assert.Equal(t, models.ChangeStateRemoved, history[1].ChangeType)
}

func TestHistoryEvictionAtMaxEntries(t *testing.T) {
	m := New(Options{MaxHistoryEntries: 3})
	for i := 0; i < 10; i++ {
		m.SetState("counter", i)
	}
	history := m.GetRecentHistory(100)
	assert.Len(t, history, 3)
	assert.Equal(t, 9, history[len(history)-1].NewValue)
}

func TestSaveStateThenLoadStateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-state.json")

	m1 := New(Options{FilePath: path, MaxHistoryEntries: 100})
	m1.SetState("x", float64(42))
	require.NoError(t, m1.SaveState())

	m2 := New(Options{FilePath: path, MaxHistoryEntries: 100})
	require.NoError(t, m2.LoadState())

	v, ok := m2.GetState("x")
	require.True(t, ok)
	assert.Equal(t, float64(42), v)

	history := m2.GetRecentHistory(10)
	require.Len(t, history, 1)
	assert.Equal(t, models.ChangeStateUpdate, history[0].ChangeType)
	assert.Equal(t, "x", history[0].Key)
}

func TestLoadStateMissingFileIsNotAnError(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	require.NoError(t, m.LoadState())
	assert.Empty(t, m.GetContext().State)
}

func TestLoadStateUnparseableFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-state.json")
	require.NoError(t, writeAtomic(path, []byte("not json")))

	m := New(Options{FilePath: path, MaxHistoryEntries: 100})
	require.NoError(t, m.LoadState())
	assert.Empty(t, m.GetContext().State)
}

func TestClearAllResetsEverything(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	m.SetState("a", 1)
	m.SetMemory("scratch", "note")

	m.ClearAll()

	assert.Empty(t, m.GetContext().State)
	_, ok := m.GetMemory("scratch")
	assert.False(t, ok)
}

func TestStartSchedulerPeriodicallySaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-state.json")
	m := New(Options{FilePath: path, BackupInterval: 10 * time.Millisecond, MaxHistoryEntries: 10})
	m.SetState("x", 1)

	ctx, cancel := context.WithCancel(context.Background())
	m.StartScheduler(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.FileExists(t, path)
}

func TestShutdownIsIdempotentAndSavesFinalState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-state.json")
	m := New(Options{FilePath: path, BackupInterval: time.Hour, MaxHistoryEntries: 10})
	m.SetState("x", 1)

	m.StartScheduler(context.Background())
	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Shutdown())

	assert.FileExists(t, path)
}

func TestConcurrentSaveStateProducesParseableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-state.json")
	m := New(Options{FilePath: path, MaxHistoryEntries: 10})
	m.SetState("x", 1)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- m.SaveState() }()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	m2 := New(Options{FilePath: path, MaxHistoryEntries: 10})
	require.NoError(t, m2.LoadState())
}

func TestRecordTaskOutcomeIsMonotoneAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-state.json")

	m1 := New(Options{FilePath: path, MaxHistoryEntries: 10})
	m1.RecordTaskOutcome(false)
	m1.RecordTaskOutcome(true)
	require.NoError(t, m1.SaveState())
	assert.Equal(t, 2, m1.TotalTasksExecuted())
	assert.Equal(t, 1, m1.FailedTasks())

	m2 := New(Options{FilePath: path, MaxHistoryEntries: 10})
	require.NoError(t, m2.LoadState())
	m2.RecordTaskOutcome(false)
	assert.Equal(t, 3, m2.TotalTasksExecuted())
	assert.Equal(t, 1, m2.FailedTasks())
}
