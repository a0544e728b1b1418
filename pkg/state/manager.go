// Package state implements the durable State Manager: the in-memory state,
// memory, and history maps described in spec.md §4.4, snapshotted to a
// single JSON file via temp-file-then-rename atomic writes. The teacher has
// no direct analogue (its durable layer is Postgres via ent) so this package
// borrows its background-scheduler shape from pkg/cleanup's ctx/cancel/done
// + ticker loop and its atomic-write idiom from pkg/config's load pipeline,
// applied here to a single JSON snapshot file instead of a database.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/loopagent/core/pkg/models"
)

// Manager owns the in-memory state/memory/history maps and persists
// state+recentHistory to filePath on a schedule and on shutdown.
type Manager struct {
	mu    sync.Mutex
	state *models.AgentState

	filePath          string
	backupInterval    time.Duration
	maxHistoryEntries int
	snapshotHistory   int

	totalTasksExecuted int
	failedTasks        int
	lastActivity       time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures a Manager.
type Options struct {
	FilePath          string
	BackupInterval    time.Duration
	MaxHistoryEntries int
	// SnapshotHistoryEntries caps how many recent history entries are
	// written into each snapshot; defaults to MaxHistoryEntries when zero.
	SnapshotHistoryEntries int
}

// New returns a ready-to-use Manager with a fresh, empty state.
func New(opts Options) *Manager {
	snapshotHistory := opts.SnapshotHistoryEntries
	if snapshotHistory <= 0 {
		snapshotHistory = opts.MaxHistoryEntries
	}
	return &Manager{
		state:             models.NewAgentState(),
		filePath:          opts.FilePath,
		backupInterval:    opts.BackupInterval,
		maxHistoryEntries: opts.MaxHistoryEntries,
		snapshotHistory:   snapshotHistory,
		lastActivity:      time.Now(),
	}
}

// SetState sets key to value, recording a STATE_UPDATE history entry.
func (m *Manager) SetState(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, existed := m.state.State[key]
	m.state.State[key] = value
	m.lastActivity = time.Now()

	var oldValue any
	if existed {
		oldValue = old
	}
	m.state.RecordHistory(models.HistoryEntry{
		Timestamp:  m.lastActivity,
		ChangeType: models.ChangeStateUpdate,
		Key:        key,
		OldValue:   oldValue,
		NewValue:   value,
	}, m.maxHistoryEntries)
}

// GetState returns the raw value for key and whether it was present. Callers
// type-assert to the expected type; a type mismatch is the caller's concern,
// mirroring the spec's "getState(k, type, default?)" contract where type is
// advisory rather than enforced by the manager.
func (m *Manager) GetState(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state.State[key]
	return v, ok
}

// GetStateOrDefault returns the value for key, or def if absent.
func (m *Manager) GetStateOrDefault(key string, def any) any {
	if v, ok := m.GetState(key); ok {
		return v
	}
	return def
}

// RemoveState deletes key, recording a STATE_REMOVED history entry.
func (m *Manager) RemoveState(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, existed := m.state.State[key]
	if !existed {
		return
	}
	delete(m.state.State, key)
	m.lastActivity = time.Now()
	m.state.RecordHistory(models.HistoryEntry{
		Timestamp:  m.lastActivity,
		ChangeType: models.ChangeStateRemoved,
		Key:        key,
		OldValue:   old,
	}, m.maxHistoryEntries)
}

// SetMemory sets an ephemeral, never-persisted scratch value.
func (m *Manager) SetMemory(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Memory[key] = value
}

// GetMemory returns the ephemeral value for key and whether it was present.
func (m *Manager) GetMemory(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state.Memory[key]
	return v, ok
}

// Context is the shape returned by GetContext: a cheap summary for prompts
// and status endpoints, not a full snapshot.
type Context struct {
	State        map[string]any `json:"state"`
	Memory       map[string]any `json:"memory"`
	HistoryCount int            `json:"history_count"`
	LastUpdated  time.Time      `json:"last_updated"`
}

// GetContext returns a shallow-copied view of state, memory, history count,
// and last update time.
func (m *Manager) GetContext() Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	stateCopy := make(map[string]any, len(m.state.State))
	for k, v := range m.state.State {
		stateCopy[k] = v
	}
	memCopy := make(map[string]any, len(m.state.Memory))
	for k, v := range m.state.Memory {
		memCopy[k] = v
	}
	return Context{
		State:        stateCopy,
		Memory:       memCopy,
		HistoryCount: len(m.state.History),
		LastUpdated:  m.lastActivity,
	}
}

// GetRecentHistory returns up to n of the most recent history entries.
func (m *Manager) GetRecentHistory(n int) []models.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RecentHistory(n)
}

// RecordTaskOutcome updates the summary counters persisted in snapshots.
// total_tasks_executed is monotone non-decreasing across process lifetimes
// (spec.md §3) because it is restored by LoadState before any new
// increments happen.
func (m *Manager) RecordTaskOutcome(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalTasksExecuted++
	if failed {
		m.failedTasks++
	}
	m.lastActivity = time.Now()
	m.state.RecordHistory(models.HistoryEntry{
		Timestamp:  m.lastActivity,
		ChangeType: models.ChangeSystemEvent,
		Key:        "task_outcome",
		NewValue:   map[string]any{"failed": failed},
	}, m.maxHistoryEntries)
}

// ClearAll resets state, memory, and history to empty, recording a
// STATE_CLEARED entry first so the clear itself is auditable.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
	m.state.RecordHistory(models.HistoryEntry{
		Timestamp:  m.lastActivity,
		ChangeType: models.ChangeStateCleared,
	}, m.maxHistoryEntries)
	m.state.State = make(map[string]any)
	m.state.Memory = make(map[string]any)
	m.state.History = nil
}

// SaveState writes a snapshot of version, timestamp, state, the last
// snapshotHistoryEntries history entries, and summary counters to filePath
// via temp-file-then-rename.
func (m *Manager) SaveState() error {
	if m.filePath == "" {
		return nil
	}

	m.mu.Lock()
	snapshot := models.AgentStateSnapshot{
		Version:            models.CurrentSnapshotVersion,
		Timestamp:          time.Now(),
		State:              m.state.State,
		RecentHistory:      m.state.RecentHistory(m.snapshotHistory),
		TotalTasksExecuted: m.totalTasksExecuted,
		FailedTasks:        m.failedTasks,
		LastActivity:       m.lastActivity,
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal snapshot: %w", err)
	}
	if err := writeAtomic(m.filePath, data); err != nil {
		return fmt.Errorf("state: write snapshot: %w", err)
	}
	return nil
}

// LoadState restores state and history from filePath if it exists and
// parses successfully. A missing file or unknown version is not an error —
// it logs and leaves the manager's fresh in-memory state untouched.
func (m *Manager) LoadState() error {
	if m.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("state: no snapshot found, starting fresh", "file", m.filePath)
			return nil
		}
		return fmt.Errorf("state: read snapshot: %w", err)
	}

	var snapshot models.AgentStateSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		slog.Warn("state: snapshot failed to parse, starting fresh", "file", m.filePath, "error", err)
		return nil
	}
	if snapshot.Version != models.CurrentSnapshotVersion {
		slog.Warn("state: unknown snapshot version, starting fresh", "file", m.filePath, "version", snapshot.Version)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snapshot.State != nil {
		m.state.State = snapshot.State
	}
	m.state.History = snapshot.RecentHistory
	m.totalTasksExecuted = snapshot.TotalTasksExecuted
	m.failedTasks = snapshot.FailedTasks
	m.lastActivity = snapshot.LastActivity

	slog.Info("state: snapshot restored",
		"file", m.filePath,
		"total_tasks_executed", m.totalTasksExecuted,
		"failed_tasks", m.failedTasks,
	)
	return nil
}

// BackupState is an explicit, on-demand alias for SaveState, kept distinct
// in the API per spec.md §4.4 even though both take the identical snapshot
// path today.
func (m *Manager) BackupState() error {
	return m.SaveState()
}

// StartScheduler launches the background loop that calls SaveState every
// backupInterval until ctx is cancelled or Shutdown is called. Safe to call
// once; a second call is a no-op.
func (m *Manager) StartScheduler(ctx context.Context) {
	if m.backupInterval <= 0 {
		return
	}
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.backupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.SaveState(); err != nil {
				slog.Error("state: periodic save failed", "error", err)
			}
		}
	}
}

// Shutdown stops the background scheduler (if running) and performs a
// final SaveState. Idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return m.SaveState()
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by an atomic rename, so concurrent readers never observe a
// partially-written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""
	return nil
}

// TotalTasksExecuted returns the lifetime executed-task counter.
func (m *Manager) TotalTasksExecuted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalTasksExecuted
}

// FailedTasks returns the lifetime failed-task counter.
func (m *Manager) FailedTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failedTasks
}
