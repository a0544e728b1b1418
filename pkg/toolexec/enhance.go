package toolexec

import (
	"strings"

	"github.com/loopagent/core/pkg/models"
)

// EnhanceParameters fills in missing required parameters with safe defaults
// before a task is dispatched, per spec.md §4.3.4. These defaults exist
// solely to prevent a malformed LLM response from halting the pipeline —
// they are never a substitute for a well-formed action.
func EnhanceParameters(t models.TaskType, description string, params map[string]string) map[string]string {
	if params == nil {
		params = make(map[string]string)
	}

	switch t {
	case models.TaskShellCommand:
		if strings.TrimSpace(params["command"]) == "" {
			if cmd := extractCommandFromDescription(description); cmd != "" {
				params["command"] = cmd
			} else {
				params["command"] = "echo 'No command specified'"
			}
		}
	case models.TaskFileWrite:
		if strings.TrimSpace(params["content"]) == "" {
			params["content"] = "// placeholder content generated because the action had none"
		}
	case models.TaskCodeGenerate:
		if strings.TrimSpace(params["language"]) == "" {
			params["language"] = "python"
		}
	case models.TaskAIAnalysis:
		if strings.TrimSpace(params["context"]) == "" {
			params["context"] = "General analysis"
		}
	}
	return params
}

// extractCommandFromDescription pulls a shell-looking token out of a free
// text description as a last resort before falling back to a no-op echo.
func extractCommandFromDescription(description string) string {
	for _, known := range []string{"git ", "npm ", "go ", "python3 ", "pip ", "mvn ", "docker "} {
		if idx := strings.Index(description, known); idx >= 0 {
			rest := description[idx:]
			if end := strings.IndexAny(rest, ".\n"); end > 0 {
				rest = rest[:end]
			}
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
