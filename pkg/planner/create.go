package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loopagent/core/pkg/models"
	"github.com/loopagent/core/pkg/probe"
)

// CreatePlan decomposes goal into a Plan: context probe, decomposition
// prompt, strategy prompt (spec.md §4.2.1).
func (p *Planner) CreatePlan(ctx context.Context, goalText string, extraContext map[string]string) (*models.Plan, error) {
	goal := models.Goal{ID: newID("goal"), Description: goalText, CreatedAt: time.Now()}

	probeResult := probe.ProbeDirectory(p.WorkDir, 3)
	fileRefs := probe.FileReferences(goalText)
	toolAvailability := p.Tools.Probe()

	subtasks, err := p.decompose(ctx, goal, probeResult, fileRefs, toolAvailability, extraContext)
	if err != nil {
		return nil, fmt.Errorf("planner: decomposition failed: %w", err)
	}

	strategy := p.planStrategy(ctx, goal, subtasks)

	plan := &models.Plan{
		ID:        newID("plan"),
		Goal:      goal,
		Subtasks:  subtasks,
		Strategy:  strategy,
		Context:   extraContext,
		Status:    models.PlanCreated,
		CreatedAt: time.Now(),
	}
	p.store(plan)
	return plan, nil
}

func (p *Planner) decompose(ctx context.Context, goal models.Goal, probeResult *probe.ProjectProbe, fileRefs []string, toolAvailability map[string]bool, extraContext map[string]string) ([]*models.SubTask, error) {
	prompt := buildDecompositionPrompt(goal, probeResult, fileRefs, toolAvailability, extraContext)
	reply, err := p.LLM.Send(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return parseSubtasks(reply), nil
}

func buildDecompositionPrompt(goal models.Goal, probeResult *probe.ProjectProbe, fileRefs []string, toolAvailability map[string]bool, extraContext map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal.Description)
	if len(extraContext) > 0 {
		b.WriteString("Additional context:\n")
		for k, v := range extraContext {
			fmt.Fprintf(&b, "  %s: %s\n", k, v)
		}
	}
	fmt.Fprintf(&b, "\nProject probe:\n  type=%s name=%s manifests=%v source_files=%v\n",
		probeResult.ProjectType, probeResult.ProjectName, probeResult.ManifestsFound, probeResult.SourceFileCounts)
	if len(fileRefs) > 0 {
		fmt.Fprintf(&b, "Referenced files in goal: %v\n", fileRefs)
	}
	b.WriteString("Available tools:\n")
	for tool, available := range toolAvailability {
		fmt.Fprintf(&b, "  %s: %v\n", tool, available)
	}
	b.WriteString(`
Decompose the goal into an ordered list of subtasks. Respond using exactly this template, repeated once per subtask:

SUBTASK_1:
Description: <what to do>
Expected Outcome: <what success looks like>
Priority: <CRITICAL|HIGH|MEDIUM|LOW>
Complexity: <SIMPLE|MODERATE|COMPLEX>
Dependencies: <comma-separated subtask numbers, or NONE>
Commands: <one shell command per line, or NONE>
Code Language: <language, or NONE>
Code Content: <code, or NONE>
File Path: <path, or NONE>
File Content: <content, or NONE>

SUBTASK_2:
...
`)
	return b.String()
}

var subtaskMarkerPattern = "SUBTASK_"

// parseSubtasks splits an LLM reply on SUBTASK_<n>: markers and parses the
// labelled fields within each block, per spec.md §4.2.1 phase 2.
func parseSubtasks(reply string) []*models.SubTask {
	blocks := splitOnSubtaskMarkers(reply)

	var subtasks []*models.SubTask
	index := make(map[int]*models.SubTask) // subtask number -> parsed subtask, for dependency resolution

	for _, block := range blocks {
		n, body := block.n, block.body
		st := &models.SubTask{
			ID:         newID("subtask"),
			Name:       fmt.Sprintf("Subtask %d", n),
			Priority:   models.PriorityMedium,
			Complexity: models.ComplexityModerate,
			Status:     models.SubTaskPending,
			CreatedAt:  time.Now(),
		}
		fields := parseLabelledFields(body)

		if v := fields["Description"]; v != "" {
			st.Description = v
		}
		if v := fields["Expected Outcome"]; v != "" {
			st.ExpectedOutcome = v
		}
		if v := models.Priority(strings.ToUpper(strings.TrimSpace(fields["Priority"]))); v.IsValid() {
			st.Priority = v
		}
		if v := models.Complexity(strings.ToUpper(strings.TrimSpace(fields["Complexity"]))); v.IsValid() {
			st.Complexity = v
		}
		if v := fields["Commands"]; v != "" && !isNone(v) {
			st.Commands = nonEmptyLines(v)
		}
		if v := fields["Code Language"]; v != "" && !isNone(v) {
			st.CodeLanguage = v
		}
		if v := fields["Code Content"]; v != "" && !isNone(v) {
			st.CodeContent = v
		}
		if v := fields["File Path"]; v != "" && !isNone(v) {
			st.FilePath = v
		}
		if v := fields["File Content"]; v != "" && !isNone(v) {
			st.FileContent = v
		}
		if st.FilePath != "" {
			st.FileOperationMode = models.FileOpAuto
		}

		index[n] = st

		// Dependencies are resolved to subtask numbers here and translated to
		// ids once every block has been parsed (a dependency may reference a
		// later-numbered subtask in a malformed reply; resolving by number
		// first tolerates that).
		st.Dependencies = parseDependencyNumbers(fields["Dependencies"])
		subtasks = append(subtasks, st)
	}

	// Translate numeric dependency references to subtask ids.
	for _, st := range subtasks {
		var ids []string
		for _, depNum := range st.Dependencies {
			depN, err := strconv.Atoi(depNum)
			if err != nil {
				continue
			}
			if dep, ok := index[depN]; ok {
				ids = append(ids, dep.ID)
			}
		}
		st.Dependencies = ids
	}

	return subtasks
}

type subtaskBlock struct {
	n    int
	body string
}

// splitOnSubtaskMarkers finds every "SUBTASK_<n>:" marker in reply and
// returns the text following each marker up to the next one.
func splitOnSubtaskMarkers(reply string) []subtaskBlock {
	var blocks []subtaskBlock
	remaining := reply
	for {
		idx := strings.Index(remaining, subtaskMarkerPattern)
		if idx == -1 {
			break
		}
		remaining = remaining[idx+len(subtaskMarkerPattern):]
		// remaining now starts with "<n>:" possibly followed by more text.
		end := strings.IndexAny(remaining, ":")
		if end == -1 {
			break
		}
		numStr := strings.TrimSpace(remaining[:end])
		n, err := strconv.Atoi(numStr)
		if err != nil {
			remaining = remaining[end+1:]
			continue
		}
		rest := remaining[end+1:]

		nextIdx := strings.Index(rest, subtaskMarkerPattern)
		var body string
		if nextIdx == -1 {
			body = rest
		} else {
			body = rest[:nextIdx]
		}
		blocks = append(blocks, subtaskBlock{n: n, body: body})
		remaining = rest
	}
	return blocks
}

// parseLabelledFields extracts "Label: value" lines from body, tolerating
// multi-line values that continue until the next recognised label.
func parseLabelledFields(body string) map[string]string {
	labels := []string{
		"Description", "Expected Outcome", "Priority", "Complexity",
		"Dependencies", "Commands", "Code Language", "Code Content",
		"File Path", "File Content",
	}
	fields := make(map[string]string, len(labels))

	lines := strings.Split(body, "\n")
	var currentLabel string
	var buf []string

	flush := func() {
		if currentLabel != "" {
			fields[currentLabel] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		matchedLabel := ""
		for _, label := range labels {
			if strings.HasPrefix(trimmed, label+":") {
				matchedLabel = label
				break
			}
		}
		if matchedLabel != "" {
			flush()
			currentLabel = matchedLabel
			buf = []string{strings.TrimSpace(trimmed[len(matchedLabel)+1:])}
			continue
		}
		if currentLabel != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return fields
}

func isNone(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "NONE")
}

func nonEmptyLines(v string) []string {
	var out []string
	for _, line := range strings.Split(v, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseDependencyNumbers(v string) []string {
	if v == "" || isNone(v) {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// planStrategy sends the strategy prompt and parses the free-form answer
// into a PlanningStrategy, per spec.md §4.2.1 phase 3. On LLM failure it
// falls back to a default strategy whose description records the failure
// and whose execution order is the subtask order.
func (p *Planner) planStrategy(ctx context.Context, goal models.Goal, subtasks []*models.SubTask) *models.PlanningStrategy {
	var names []string
	for _, st := range subtasks {
		names = append(names, st.Name)
	}

	prompt := fmt.Sprintf(
		"Goal: %s\n\nSubtasks: %s\n\nDescribe the recommended execution order, any subtasks that can run in parallel, and risk mitigations.",
		goal.Description, strings.Join(names, ", "),
	)
	reply, err := p.LLM.Send(ctx, prompt)
	if err != nil {
		return &models.PlanningStrategy{Description: "default: strategy call failed", ExecutionOrder: names}
	}
	return parseStrategy(reply, names)
}

// parseStrategy keeps the execution order already implied by subtask
// sequence and stores the LLM's free-form text as description/risk notes.
func parseStrategy(reply string, fallbackOrder []string) *models.PlanningStrategy {
	strategy := &models.PlanningStrategy{ExecutionOrder: fallbackOrder}

	lower := strings.ToLower(reply)
	if idx := strings.Index(lower, "risk"); idx != -1 {
		strategy.Description = strings.TrimSpace(reply[:idx])
		strategy.RiskMitigation = strings.TrimSpace(reply[idx:])
	} else {
		strategy.Description = strings.TrimSpace(reply)
	}
	return strategy
}
