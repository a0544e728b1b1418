package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/loopagent/core/pkg/masking"
	"github.com/loopagent/core/pkg/models"
)

// DefaultShell returns the OS-appropriate default shell, per spec.md §4.3.3:
// zsh on macOS, bash on Linux, cmd on Windows.
func DefaultShell() string {
	switch runtime.GOOS {
	case "darwin":
		return "/bin/zsh"
	case "windows":
		return "cmd"
	default:
		return "/bin/bash"
	}
}

// ShellHandler implements SHELL_COMMAND: spawn via the configured shell,
// capture stdout+stderr, record the exit code.
type ShellHandler struct {
	Shell   string
	Masker  *masking.Service
}

func (h *ShellHandler) Execute(ctx context.Context, task *models.AgentTask) (*models.TaskResult, error) {
	command := task.Parameters["command"]
	if command == "" {
		return nil, fmt.Errorf("shell_command: missing command parameter")
	}
	workDir := task.Parameters["working_directory"]

	shell := h.Shell
	if shell == "" {
		shell = DefaultShell()
	}

	start := time.Now()
	var cmd *exec.Cmd
	if shell == "cmd" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, shell, "-c", command)
	}
	if workDir != "" {
		cmd.Dir = workDir
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	duration := time.Since(start).Milliseconds()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			// context deadline, spawn failure, etc — not a shell exit code.
			return nil, fmt.Errorf("run command: %w", runErr)
		}
	}

	masked := h.Masker.Mask(out.String())
	result := &models.TaskResult{
		ExitCode:         &exitCode,
		Output:           masked,
		CommandsExecuted: []string{command},
		DurationMs:       duration,
	}
	// TaskResult.ExitCode == 0 <=> status == COMPLETED is the invariant the
	// spec states for SHELL_COMMAND (spec.md §3); a non-zero exit is
	// reported as an execution error so the executor marks the task FAILED.
	if exitCode != 0 {
		result.Error = fmt.Sprintf("command exited with status %d", exitCode)
		return result, fmt.Errorf("%s", result.Error)
	}
	return result, nil
}
