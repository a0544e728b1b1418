package toolexec

import (
	"context"
	"fmt"

	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/models"
)

// CodeGenHandler implements CODE_GENERATION: an LLM call producing a code
// string.
type CodeGenHandler struct {
	Client llm.Client
}

func (h *CodeGenHandler) Execute(ctx context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	description := task.Parameters["task_description"]
	language := task.Parameters["language"]
	if language == "" {
		language = "python"
	}

	prompt := fmt.Sprintf(
		"Generate %s code for the following task. Reply with the code only, no explanation.\n\nTask: %s",
		language, description,
	)
	code, err := h.Client.Send(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("code_generation: llm call failed: %w", err)
	}
	return &models.TaskResult{Output: code}, nil
}

// AIAnalysisHandler implements AI_ANALYSIS: an LLM call producing analysis text.
type AIAnalysisHandler struct {
	Client llm.Client
}

func (h *AIAnalysisHandler) Execute(ctx context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	description := task.Parameters["task_description"]
	analysisContext := task.Parameters["context"]
	if analysisContext == "" {
		analysisContext = "General analysis"
	}

	prompt := fmt.Sprintf("Analyze the following and report your findings.\n\nTask: %s\nContext: %s", description, analysisContext)
	analysis, err := h.Client.Send(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ai_analysis: llm call failed: %w", err)
	}
	return &models.TaskResult{Output: analysis}, nil
}
