package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/toolexec"
)

// cycleResult is the return value of a ReAct cycle, per spec.md §4.2.3:
// "{reasoning, action, observation, success, shouldReplan, memoryUpdates}".
type cycleResult struct {
	Reasoning     string
	Action        *models.ActionSpec
	Observation   string
	Success       bool
	ShouldReplan  bool
	MemoryUpdates map[string]any
	Step          *models.ExecutionStep
}

// runReActCycle drives the four strictly ordered phases — Reason, Act,
// Observe, Reflect — for one subtask, each phase a separate LLM call whose
// text is stored verbatim in the returned ExecutionStep.
func (p *Planner) runReActCycle(ctx context.Context, goal models.Goal, subtask *models.SubTask, workingMemory map[string]any, previousSteps []*models.ExecutionStep, toolAvailability map[string]bool) *cycleResult {
	step := &models.ExecutionStep{SubTaskID: subtask.ID, Status: models.StepRunning, StartedAt: time.Now()}

	reasoning, err := p.reason(ctx, goal, subtask, workingMemory, previousSteps, toolAvailability)
	if err != nil {
		step.Status = models.StepFailed
		step.ErrorMessage = err.Error()
		return &cycleResult{Step: step}
	}
	step.Reasoning = reasoning

	action, err := p.act(ctx, reasoning)
	if err != nil {
		step.Status = models.StepFailed
		step.ErrorMessage = err.Error()
		return &cycleResult{Reasoning: reasoning, Step: step}
	}
	step.Action = action

	task := &models.AgentTask{
		Name:        action.Description,
		Type:        action.Type,
		Description: action.Description,
		Parameters:  toolexec.EnhanceParameters(action.Type, action.Description, action.Parameters),
		Priority:    models.TaskPriorityMedium,
	}
	taskID := p.Queue.Submit(task)
	step.TaskID = taskID
	completed := p.waitForTask(taskID)

	observation, err := p.observe(ctx, action, completed)
	if err != nil {
		step.Status = models.StepFailed
		step.ErrorMessage = err.Error()
		return &cycleResult{Reasoning: reasoning, Action: action, Step: step}
	}
	step.Observation = observation

	taskSucceeded := completed != nil && completed.Status == models.AgentTaskComplete
	reflected, err := p.reflect(ctx, subtask, observation)
	if err != nil {
		reflected = false
	}
	success := taskSucceeded && reflected

	if success {
		step.Status = models.StepCompleted
	} else {
		step.Status = models.StepFailed
	}
	step.CompletedAt = time.Now()

	return &cycleResult{
		Reasoning:     reasoning,
		Action:        action,
		Observation:   observation,
		Success:       success,
		ShouldReplan:  !success && subtask.Priority == models.PriorityCritical,
		MemoryUpdates: map[string]any{fmt.Sprintf("subtask_%s_last_observation", subtask.ID): observation},
		Step:          step,
	}
}

func (p *Planner) reason(ctx context.Context, goal models.Goal, subtask *models.SubTask, workingMemory map[string]any, previousSteps []*models.ExecutionStep, toolAvailability map[string]bool) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal.Description)
	fmt.Fprintf(&b, "Current subtask: %s (%s)\n", subtask.Name, subtask.Description)
	fmt.Fprintf(&b, "Working memory: %v\n", workingMemory)
	if len(previousSteps) > 0 {
		b.WriteString("Previous steps:\n")
		for _, s := range previousSteps {
			actionDesc := ""
			if s.Action != nil {
				actionDesc = s.Action.Description
			}
			fmt.Fprintf(&b, "  - action=%q status=%s\n", actionDesc, s.Status)
		}
	}
	b.WriteString("Available tools:\n")
	for tool, available := range toolAvailability {
		fmt.Fprintf(&b, "  %s: %v\n", tool, available)
	}
	b.WriteString("Available action types: FILE_READ, FILE_WRITE, FILE_COPY, FILE_DELETE, SHELL_COMMAND, CODE_GENERATION, AI_ANALYSIS, MCP_TOOL_CALL\n")
	b.WriteString("\nReason step by step about how to make progress on this subtask.")

	return p.LLM.Send(ctx, b.String())
}

func (p *Planner) act(ctx context.Context, reasoning string) (*models.ActionSpec, error) {
	prompt := fmt.Sprintf(
		"Reasoning:\n%s\n\nNow choose a single action, responding using exactly this template:\nACTION_TYPE: <one of FILE_READ, FILE_WRITE, FILE_COPY, FILE_DELETE, SHELL_COMMAND, CODE_GENERATION, AI_ANALYSIS, MCP_TOOL_CALL>\nACTION_DESCRIPTION: <text>\nPARAMETERS: key=value, key=value, ...\nEXPECTED_OUTCOME: <text>",
		reasoning,
	)
	reply, err := p.LLM.Send(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseActionSpec(reply), nil
}

func (p *Planner) observe(ctx context.Context, action *models.ActionSpec, result *models.AgentTask) (string, error) {
	success := result != nil && result.Status == models.AgentTaskComplete
	var taskResult models.TaskResult
	if result != nil && result.Result != nil {
		taskResult = *result.Result
	}
	prompt := fmt.Sprintf(
		"Action taken: %s\nSucceeded: %v\nResult: %+v\n\nDescribe what happened.",
		action.Description, success, taskResult,
	)
	return p.LLM.Send(ctx, prompt)
}

func (p *Planner) reflect(ctx context.Context, subtask *models.SubTask, observation string) (bool, error) {
	prompt := fmt.Sprintf(
		"Subtask goal: %s\nExpected outcome: %s\nObservation: %s\n\nWas the subtask's goal met? Reply YES or NO.",
		subtask.Description, subtask.ExpectedOutcome, observation,
	)
	reply, err := p.LLM.Send(ctx, prompt)
	if err != nil {
		return false, err
	}
	trimmed := strings.ToLower(strings.TrimSpace(reply))
	return strings.HasPrefix(trimmed, "yes") || strings.Contains(trimmed, "yes"), nil
}

var (
	actionTypePattern        = regexp.MustCompile(`(?i)ACTION_TYPE:\s*([A-Za-z_]+)`)
	actionDescriptionPattern = regexp.MustCompile(`(?i)ACTION_DESCRIPTION:\s*(.*)`)
	parametersPattern        = regexp.MustCompile(`(?i)PARAMETERS:\s*(.*)`)
	expectedOutcomePattern   = regexp.MustCompile(`(?i)EXPECTED_OUTCOME:\s*(.*)`)
	codeFencePattern         = regexp.MustCompile("```[a-zA-Z]*")
	paramKeyStartPattern     = regexp.MustCompile(`^\s*[\w.\-]+\s*=`)
)

// parseActionSpec parses the Act phase's textual template leniently: strips
// code-fence/backtick/markdown artefacts, splits parameter pairs only on
// commas that precede the next "key=", preserves spaces inside values, and
// unquotes outer quotes. Unknown ACTION_TYPE defaults to AI_ANALYSIS
// (spec.md §4.2.3).
func parseActionSpec(reply string) *models.ActionSpec {
	cleaned := codeFencePattern.ReplaceAllString(reply, "")
	cleaned = strings.ReplaceAll(cleaned, "`", "")

	spec := &models.ActionSpec{
		Type:       models.TaskAIAnalysis,
		Parameters: map[string]string{},
	}

	if m := actionTypePattern.FindStringSubmatch(cleaned); m != nil {
		t := models.TaskType(strings.ToUpper(strings.TrimSpace(m[1])))
		if t.IsValid() {
			spec.Type = t
		}
	}
	if m := actionDescriptionPattern.FindStringSubmatch(cleaned); m != nil {
		spec.Description = strings.TrimSpace(firstLine(m[1]))
	}
	if m := expectedOutcomePattern.FindStringSubmatch(cleaned); m != nil {
		spec.ExpectedOutcome = strings.TrimSpace(firstLine(m[1]))
	}
	if m := parametersPattern.FindStringSubmatch(cleaned); m != nil {
		spec.Parameters = parseParameterPairs(firstLine(m[1]))
	}

	return spec
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}

// parseParameterPairs splits "key=value, key=value, ..." on commas that
// precede the next "key=" rather than every comma, so command values
// containing commas survive intact.
func parseParameterPairs(raw string) map[string]string {
	params := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return params
	}

	var pieces []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == ',' && paramKeyStartPattern.MatchString(raw[i+1:]) {
			pieces = append(pieces, raw[start:i])
			start = i + 1
		}
	}
	pieces = append(pieces, raw[start:])
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		idx := strings.Index(piece, "=")
		if idx == -1 {
			continue
		}
		key := strings.TrimSpace(piece[:idx])
		value := strings.TrimSpace(piece[idx+1:])
		value = unquote(value)
		if key != "" {
			params[key] = value
		}
	}
	return params
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
