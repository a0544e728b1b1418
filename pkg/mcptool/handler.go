package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loopagent/core/pkg/models"
)

// Handler implements MCP_TOOL_CALL, delegating to an external MCP server
// named by the task's server_name parameter (default "default"). Generalizes
// the teacher's session-scoped, alert-investigation-specific tool routing
// (pkg/mcp/executor.go) to an arbitrary named-server, named-tool call.
type Handler struct {
	Client *Client
}

// NewHandler returns an MCP_TOOL_CALL Handler bound to client.
func NewHandler(client *Client) *Handler {
	return &Handler{Client: client}
}

func (h *Handler) Execute(ctx context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	toolName := task.Parameters["tool_name"]
	if toolName == "" {
		return nil, fmt.Errorf("mcp_tool_call: missing tool_name parameter")
	}
	serverName := task.Parameters["server_name"]
	if serverName == "" {
		serverName = "default"
	}

	args := map[string]any{}
	if raw := task.Parameters["tool_arguments"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("mcp_tool_call: tool_arguments is not valid JSON: %w", err)
		}
	}

	output, err := h.Client.CallTool(ctx, serverName, toolName, args)
	if err != nil {
		return &models.TaskResult{Output: output, Error: err.Error()}, err
	}
	return &models.TaskResult{Output: output}, nil
}
