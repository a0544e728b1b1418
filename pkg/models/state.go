package models

import "time"

// HistoryEntry is one bounded, ring-buffered record of a state mutation:
// timestamp, change type, the key touched, and its old/new values.
type HistoryEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	ChangeType HistoryChangeType `json:"change_type"`
	Key        string            `json:"key,omitempty"`
	OldValue   any               `json:"old_value,omitempty"`
	NewValue   any               `json:"new_value,omitempty"`
}

// AgentState is the engine's process-wide durable state: a small map of
// JSON-serialisable values (agent_id, start_time, counters, arbitrary
// planner keys) paired with an append-only, bounded History. Memory is a
// separate ephemeral scratch map the ReAct cycle can read/write across
// iterations; it is never persisted.
type AgentState struct {
	State   map[string]any `json:"state"`
	History []HistoryEntry `json:"-"`
	Memory  map[string]any `json:"-"`
}

// NewAgentState returns a zeroed, ready-to-use AgentState.
func NewAgentState() *AgentState {
	return &AgentState{
		State:   make(map[string]any),
		History: make([]HistoryEntry, 0, 64),
		Memory:  make(map[string]any),
	}
}

// RecordHistory appends an entry, evicting the oldest when maxEntries is exceeded.
func (s *AgentState) RecordHistory(entry HistoryEntry, maxEntries int) {
	s.History = append(s.History, entry)
	if maxEntries > 0 && len(s.History) > maxEntries {
		s.History = s.History[len(s.History)-maxEntries:]
	}
}

// RecentHistory returns up to n of the most recent history entries, oldest first.
func (s *AgentState) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || n >= len(s.History) {
		out := make([]HistoryEntry, len(s.History))
		copy(out, s.History)
		return out
	}
	out := make([]HistoryEntry, n)
	copy(out, s.History[len(s.History)-n:])
	return out
}

// CurrentSnapshotVersion is the version written by new snapshots. Unknown
// versions encountered on load cause a warning and a fresh start.
const CurrentSnapshotVersion = "1.0"

// AgentStateSnapshot is the exact on-disk JSON shape described by the state
// file format contract in spec.md §6.
type AgentStateSnapshot struct {
	Version            string         `json:"version"`
	Timestamp          time.Time      `json:"timestamp"`
	State              map[string]any `json:"state"`
	RecentHistory      []HistoryEntry `json:"recent_history"`
	TotalTasksExecuted int            `json:"total_tasks_executed"`
	FailedTasks        int            `json:"failed_tasks"`
	LastActivity       time.Time      `json:"last_activity"`
}
