// Package interaction implements the interactive failure protocol from
// spec.md §4.2.5: when a ReAct cycle reports failure, print a structured
// failure report and ask the operator to Continue, Stop, or Retry. Two
// backends exist — a TTY backend built on github.com/manifoldco/promptui,
// and a non-interactive backend that applies the spec's documented default
// (Continue for non-critical subtasks, Stop for CRITICAL ones).
package interaction

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/loopagent/core/pkg/models"
)

// Decision is the operator's (or the non-interactive default's) response to
// a subtask failure.
type Decision string

const (
	DecisionContinue Decision = "CONTINUE"
	DecisionStop     Decision = "STOP"
	DecisionRetry    Decision = "RETRY"
)

// FailureReport is the structured failure summary printed before asking for
// a decision, per spec.md §4.2.5.
type FailureReport struct {
	SubtaskDescription string
	Action             string
	Observation        string
	ExitCode           *int
	OutputHead         []string // first 10 lines of output
	SuggestedCommands  []string
	Priority           models.Priority
}

// Backend decides how a subtask failure is resolved.
type Backend interface {
	Resolve(report FailureReport) Decision
}

// TTYBackend prompts the operator interactively via promptui.
type TTYBackend struct{}

// NewTTYBackend returns a Backend that prompts an attached terminal.
func NewTTYBackend() *TTYBackend { return &TTYBackend{} }

func (b *TTYBackend) Resolve(report FailureReport) Decision {
	fmt.Println(formatReport(report))

	prompt := promptui.Select{
		Label: "Subtask failed — how should the agent proceed?",
		Items: []string{"Continue (skip subtask)", "Stop (end plan)", "Retry (re-execute)"},
	}
	idx, _, err := prompt.Run()
	if err != nil {
		// Input closed or aborted (e.g. Ctrl-C, EOF on a pipe): fall back to
		// the non-interactive default rather than looping forever.
		return NonInteractiveDefault(report.Priority)
	}
	switch idx {
	case 0:
		return DecisionContinue
	case 1:
		return DecisionStop
	case 2:
		return DecisionRetry
	default:
		return NonInteractiveDefault(report.Priority)
	}
}

// NonInteractiveBackend applies the spec's documented default with no
// operator prompt: Continue for non-critical subtasks, Stop for CRITICAL.
type NonInteractiveBackend struct{}

// NewNonInteractiveBackend returns a Backend usable when no TTY is attached.
func NewNonInteractiveBackend() *NonInteractiveBackend { return &NonInteractiveBackend{} }

func (b *NonInteractiveBackend) Resolve(report FailureReport) Decision {
	return NonInteractiveDefault(report.Priority)
}

// NonInteractiveDefault is the documented default decision for a given
// subtask priority, shared by both backends as a fallback.
func NonInteractiveDefault(priority models.Priority) Decision {
	if priority == models.PriorityCritical {
		return DecisionStop
	}
	return DecisionContinue
}

func formatReport(r FailureReport) string {
	var b strings.Builder
	b.WriteString("=== Subtask failure ===\n")
	fmt.Fprintf(&b, "Description: %s\n", r.SubtaskDescription)
	fmt.Fprintf(&b, "Action: %s\n", r.Action)
	fmt.Fprintf(&b, "Observation: %s\n", r.Observation)
	if r.ExitCode != nil {
		fmt.Fprintf(&b, "Exit code: %d\n", *r.ExitCode)
	}
	if len(r.OutputHead) > 0 {
		b.WriteString("Output (first lines):\n")
		for _, line := range r.OutputHead {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	if len(r.SuggestedCommands) > 0 {
		b.WriteString("Suggested manual commands:\n")
		for _, cmd := range r.SuggestedCommands {
			fmt.Fprintf(&b, "  $ %s\n", cmd)
		}
	}
	return b.String()
}

// OutputHead returns up to the first 10 lines of text.
func OutputHead(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	return lines
}
