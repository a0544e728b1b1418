package models

import "time"

// Goal is the natural-language development objective the planner decomposes.
type Goal struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubTask is one unit of a Plan's decomposition.
type SubTask struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	ExpectedOutcome  string            `json:"expected_outcome"`
	Priority         Priority          `json:"priority"`
	Complexity       Complexity        `json:"complexity"`
	Dependencies     []string          `json:"dependencies,omitempty"`
	Status           SubTaskStatus     `json:"status"`
	Commands         []string          `json:"commands,omitempty"`
	CodeLanguage     string            `json:"code_language,omitempty"`
	CodeContent      string            `json:"code_content,omitempty"`
	FilePath         string            `json:"file_path,omitempty"`
	FileContent      string            `json:"file_content,omitempty"`
	FileOperationMode FileOperationMode `json:"file_operation_mode,omitempty"`
	OriginalFileContent string         `json:"original_file_content,omitempty"`
	FileExists       bool              `json:"file_exists"`
	PreserveContext  bool              `json:"preserve_context"`
	CreatedAt        time.Time         `json:"created_at"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Result           string            `json:"result,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
}

// ReadyFor reports whether every dependency of st has completed, given the
// terminal status of each subtask in the owning plan (keyed by subtask id).
func (st *SubTask) ReadyFor(statuses map[string]SubTaskStatus) bool {
	for _, dep := range st.Dependencies {
		if statuses[dep] != SubTaskCompleted {
			return false
		}
	}
	return true
}

// PlanningStrategy is the parsed result of the strategy prompt in plan
// creation phase 3: how the planner intends to sequence and de-risk
// execution. The reference parser keeps executionOrder in the order the LLM
// already produced it rather than re-deriving one from dependencies.
type PlanningStrategy struct {
	Description    string     `json:"description"`
	ExecutionOrder []string   `json:"execution_order,omitempty"`
	ParallelGroups [][]string `json:"parallel_groups,omitempty"`
	RiskMitigation string     `json:"risk_mitigation,omitempty"`
}

// Plan is the decomposition of a Goal into ordered, dependency-gated subtasks.
type Plan struct {
	ID        string            `json:"id"`
	Goal      Goal              `json:"goal"`
	Subtasks  []*SubTask        `json:"subtasks"`
	Strategy  *PlanningStrategy `json:"strategy,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
	Status    PlanStatus        `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// SubTaskByID returns the subtask with the given id, or nil.
func (p *Plan) SubTaskByID(id string) *SubTask {
	for _, st := range p.Subtasks {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// StatusSnapshot returns a map of subtask id to current status, used for
// dependency-gating checks without re-scanning the full subtask slice.
func (p *Plan) StatusSnapshot() map[string]SubTaskStatus {
	snap := make(map[string]SubTaskStatus, len(p.Subtasks))
	for _, st := range p.Subtasks {
		snap[st.ID] = st.Status
	}
	return snap
}

// AllTerminal reports whether every subtask has reached a terminal status.
func (p *Plan) AllTerminal() bool {
	for _, st := range p.Subtasks {
		if !st.Status.IsTerminal() && st.Status != SubTaskBlocked {
			return false
		}
	}
	return true
}

// AnyFailed reports whether any subtask failed.
func (p *Plan) AnyFailed() bool {
	for _, st := range p.Subtasks {
		if st.Status == SubTaskFailed {
			return true
		}
	}
	return false
}
