package models

import "time"

// ActionSpec is the Planner's decision about one action the LLM selected
// during the Act phase of a ReAct cycle.
type ActionSpec struct {
	Type             TaskType          `json:"type"`
	Description      string            `json:"description"`
	Parameters       map[string]string `json:"parameters,omitempty"`
	ExpectedOutcome  string            `json:"expected_outcome,omitempty"`
}

// ExecutionStep is one Reason/Act/Observe/Reflect turn of the ReAct cycle
// for a single subtask.
type ExecutionStep struct {
	SubTaskID    string         `json:"sub_task_id"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Action       *ActionSpec    `json:"action,omitempty"`
	Observation  string         `json:"observation,omitempty"`
	Status       StepStatus     `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at,omitzero"`
	ErrorMessage string         `json:"error_message,omitempty"`
	TaskID       string         `json:"task_id,omitempty"`
}

// StepStatus is the lifecycle state of an ExecutionStep.
type StepStatus string

const (
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
	StepSkipped   StepStatus = "SKIPPED"
)

// PlanExecution tracks a plan's run to completion: its steps, its working
// and episodic memory, and the currently-in-flight reasoning.
type PlanExecution struct {
	PlanID           string           `json:"plan_id"`
	Status           ExecutionStatus  `json:"status"`
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	Steps            []*ExecutionStep `json:"steps"`
	WorkingMemory    map[string]any   `json:"working_memory"`
	EpisodicMemory   map[string]any   `json:"episodic_memory"`
	CurrentReasoning string           `json:"current_reasoning,omitempty"`
	CurrentStepIndex int              `json:"current_step_index"`
	FailureReason    string           `json:"failure_reason,omitempty"`
}

// ExecutionStatus is the lifecycle state of a PlanExecution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionPaused    ExecutionStatus = "PAUSED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

// NewPlanExecution starts tracking an execution for planID.
func NewPlanExecution(planID string, startedAt time.Time) *PlanExecution {
	return &PlanExecution{
		PlanID:         planID,
		Status:         ExecutionRunning,
		StartedAt:      startedAt,
		Steps:          make([]*ExecutionStep, 0, 8),
		WorkingMemory:  make(map[string]any),
		EpisodicMemory: make(map[string]any),
	}
}

// TaskResult is the outcome of running an AgentTask through the executor.
type TaskResult struct {
	ExitCode         *int     `json:"exit_code,omitempty"`
	Output           string   `json:"output"`
	Error            string   `json:"error,omitempty"`
	FilesCreated     []string `json:"files_created,omitempty"`
	CommandsExecuted []string `json:"commands_executed,omitempty"`
	DurationMs       int64    `json:"duration_ms"`
}

// TaskPriority is an AgentTask's queue scheduling priority. Unlike SubTask
// Priority, the queue only ever sees HIGH/MEDIUM/LOW — CRITICAL is a
// planning-time concept that governs replanning, not dispatch order.
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityLow    TaskPriority = "LOW"
)

func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow:
		return true
	default:
		return false
	}
}

// rank orders priorities for the scheduler: lower is more urgent.
func (p TaskPriority) rank() int {
	switch p {
	case TaskPriorityHigh:
		return 0
	case TaskPriorityMedium:
		return 1
	case TaskPriorityLow:
		return 2
	default:
		return 3
	}
}

// Before reports whether p should be scheduled ahead of other.
func (p TaskPriority) Before(other TaskPriority) bool {
	return p.rank() < other.rank()
}

// AgentTask is the unit of the queue: one concrete, side-effecting action.
type AgentTask struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         TaskType          `json:"type"`
	Description  string            `json:"description"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	Priority     TaskPriority      `json:"priority"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Status       AgentTaskStatus   `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Result       *TaskResult       `json:"result,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`

	seq uint64 // insertion sequence, tie-breaker for FIFO-within-priority ordering
}

// Seq returns the task's insertion sequence number.
func (t *AgentTask) Seq() uint64 { return t.seq }

// SetSeq is called once by the queue when the task is enqueued.
func (t *AgentTask) SetSeq(n uint64) { t.seq = n }

// DependenciesMet reports whether every dependency of t is COMPLETED,
// given the status of each task in the owning queue (keyed by task id).
func (t *AgentTask) DependenciesMet(statuses map[string]AgentTaskStatus) bool {
	for _, dep := range t.Dependencies {
		if statuses[dep] != AgentTaskComplete {
			return false
		}
	}
	return true
}
