package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loopagent/core/pkg/interaction"
	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/probe"
	"github.com/loopagent/core/pkg/toolexec"
)

// maxInteractiveRetries bounds how many times an operator may choose Retry
// (spec.md §4.2.5) on the same subtask before the engine treats it like
// Continue and moves on, so a stuck subtask can't loop forever.
const maxInteractiveRetries = 5

// ExecutePlan drives a plan's subtasks to completion, per spec.md §4.2.2:
// tool-availability check, directive phase (files + commands), the ReAct
// cycle, memory merge, and the interactive failure protocol.
func (p *Planner) ExecutePlan(ctx context.Context, planID string) (*models.PlanExecution, error) {
	plan := p.GetPlan(planID)
	if plan == nil {
		return nil, fmt.Errorf("planner: unknown plan %s", planID)
	}

	plan.Status = models.PlanExecuting
	execution := models.NewPlanExecution(planID, time.Now())

subtasks:
	for _, subtask := range plan.Subtasks {
		if !subtask.ReadyFor(plan.StatusSnapshot()) {
			subtask.Status = models.SubTaskBlocked
			continue
		}

		for attempt := 0; ; attempt++ {
			subtask.Status = models.SubTaskRunning
			now := time.Now()
			subtask.StartedAt = &now

			p.checkToolAvailability(ctx, subtask, execution)

			if err := p.runDirectives(ctx, subtask); err != nil {
				subtask.Status = models.SubTaskFailed
				subtask.ErrorMessage = err.Error()
				decision := p.handleFailure(plan, subtask, execution, err.Error())
				if decision == interaction.DecisionStop {
					break subtasks
				}
				if decision == interaction.DecisionRetry && attempt < maxInteractiveRetries {
					continue
				}
				break
			}

			result := p.runReActCycle(ctx, plan.Goal, subtask, execution.WorkingMemory, execution.Steps, p.Tools.Probe())
			execution.Steps = append(execution.Steps, result.Step)

			for k, v := range result.MemoryUpdates {
				execution.WorkingMemory[k] = v
			}

			completedAt := time.Now()
			if result.Success {
				subtask.Status = models.SubTaskCompleted
				subtask.CompletedAt = &completedAt
				subtask.Result = result.Observation
				break
			}

			subtask.Status = models.SubTaskFailed
			subtask.CompletedAt = &completedAt
			subtask.ErrorMessage = result.Observation

			if result.ShouldReplan {
				execution.CurrentReasoning = fmt.Sprintf("replanning requested after critical subtask %s failed", subtask.ID)
			}

			decision := p.handleFailure(plan, subtask, execution, result.Observation)
			if decision == interaction.DecisionStop {
				break subtasks
			}
			if decision == interaction.DecisionRetry && attempt < maxInteractiveRetries {
				continue
			}
			break
		}
	}

	if plan.AnyFailed() {
		plan.Status = models.PlanFailed
		execution.Status = models.ExecutionFailed
		execution.FailureReason = "one or more subtasks failed"
	} else {
		plan.Status = models.PlanCompleted
		execution.Status = models.ExecutionCompleted
	}
	completedAt := time.Now()
	execution.CompletedAt = &completedAt

	return execution, nil
}

// checkToolAvailability asks the LLM for install commands when a subtask's
// commands reference an executable that isn't on PATH, per spec.md §4.2.2
// step 1: surfaced in working memory, never auto-installed.
func (p *Planner) checkToolAvailability(ctx context.Context, subtask *models.SubTask, execution *models.PlanExecution) {
	for _, command := range subtask.Commands {
		exe := probe.BaseExecutable(command)
		if exe == "" || p.Tools.Available(exe) {
			continue
		}
		prompt := fmt.Sprintf("The tool %q required by command %q is not installed. Suggest an install command for common Linux distributions.", exe, command)
		suggestion, err := p.LLM.Send(ctx, prompt)
		if err != nil {
			suggestion = fmt.Sprintf("no install suggestion available: %v", err)
		}
		execution.WorkingMemory[fmt.Sprintf("missing_tool_%s", exe)] = suggestion
	}
}

// runDirectives performs a subtask's file write (respecting its
// FileOperationMode) and shell commands, per spec.md §4.2.2 step 2.
func (p *Planner) runDirectives(ctx context.Context, subtask *models.SubTask) error {
	if subtask.FilePath != "" {
		if err := p.writeSubtaskFile(subtask); err != nil {
			return fmt.Errorf("file directive: %w", err)
		}
	}

	for _, command := range subtask.Commands {
		task := &models.AgentTask{
			Name:        fmt.Sprintf("command: %s", command),
			Type:        models.TaskShellCommand,
			Description: command,
			Parameters:  map[string]string{"command": command},
			Priority:    priorityFor(subtask.Priority),
		}
		taskID := p.Queue.Submit(task)
		completed := p.waitForTask(taskID)
		if completed == nil || completed.Status != models.AgentTaskComplete {
			return fmt.Errorf("command %q did not complete successfully", command)
		}
	}
	return nil
}

// writeSubtaskFile applies a subtask's file content according to its
// FileOperationMode: CREATE fails if the target already exists, REPLACE
// overwrites unconditionally, APPEND concatenates, and MODIFY/AUTO read the
// existing content first so the subtask's content is treated as a diff seed.
func (p *Planner) writeSubtaskFile(subtask *models.SubTask) error {
	safePath := toolexec.SanitizePath(subtask.FilePath, subtask.Description, p.WorkDir)
	if !filepath.IsAbs(safePath) {
		abs, err := filepath.Abs(safePath)
		if err != nil {
			return fmt.Errorf("resolve absolute path: %w", err)
		}
		safePath = abs
	}

	_, statErr := os.Stat(safePath)
	exists := statErr == nil
	subtask.FileExists = exists

	mode := subtask.FileOperationMode
	if mode == "" || mode == models.FileOpAuto {
		if exists {
			mode = models.FileOpModify
		} else {
			mode = models.FileOpCreate
		}
	}

	switch mode {
	case models.FileOpCreate:
		if exists {
			return fmt.Errorf("file %s already exists, refusing to create", safePath)
		}
		return toolexec.WriteAtomic(safePath, []byte(subtask.FileContent), 0o644)

	case models.FileOpReplace:
		return toolexec.WriteAtomic(safePath, []byte(subtask.FileContent), 0o644)

	case models.FileOpAppend:
		existing := ""
		if exists {
			data, err := os.ReadFile(safePath)
			if err != nil {
				return fmt.Errorf("read existing file: %w", err)
			}
			existing = string(data)
		}
		return toolexec.WriteAtomic(safePath, []byte(existing+subtask.FileContent), 0o644)

	case models.FileOpModify:
		if exists {
			data, err := os.ReadFile(safePath)
			if err != nil {
				return fmt.Errorf("read existing file: %w", err)
			}
			subtask.OriginalFileContent = string(data)
		}
		return toolexec.WriteAtomic(safePath, []byte(subtask.FileContent), 0o644)

	default:
		return toolexec.WriteAtomic(safePath, []byte(subtask.FileContent), 0o644)
	}
}

// handleFailure runs the interactive failure protocol for a failed subtask
// and, for CRITICAL subtasks, stores the observation in the execution's
// EpisodicMemory under "critical_failure_<subtask id>". It sends no
// replanning prompt and logs nothing.
func (p *Planner) handleFailure(plan *models.Plan, subtask *models.SubTask, execution *models.PlanExecution, observation string) interaction.Decision {
	report := interaction.FailureReport{
		SubtaskDescription: subtask.Description,
		Observation:        observation,
		OutputHead:         interaction.OutputHead(observation),
		Priority:           subtask.Priority,
	}
	decision := p.Interaction.Resolve(report)

	if subtask.Priority == models.PriorityCritical {
		execution.EpisodicMemory[fmt.Sprintf("critical_failure_%s", subtask.ID)] = observation
	}
	return decision
}

func priorityFor(p models.Priority) models.TaskPriority {
	switch p {
	case models.PriorityCritical, models.PriorityHigh:
		return models.TaskPriorityHigh
	case models.PriorityLow:
		return models.TaskPriorityLow
	default:
		return models.TaskPriorityMedium
	}
}
