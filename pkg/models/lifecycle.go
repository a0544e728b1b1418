package models

import "time"

// AgentStatus is the Lifecycle Controller's status() snapshot: whether the
// engine is running, how long it's been up, and a rollup of queue activity.
type AgentStatus struct {
	Running            bool      `json:"running"`
	AgentID            string    `json:"agent_id"`
	StartTime          time.Time `json:"start_time"`
	CycleCount         int64     `json:"cycle_count"`
	LastActivity       time.Time `json:"last_activity"`
	PendingTasks       int       `json:"pending_tasks"`
	RunningTasks       int       `json:"running_tasks"`
	TotalTasksExecuted int       `json:"total_tasks_executed"`
	FailedTasks        int       `json:"failed_tasks"`
}
