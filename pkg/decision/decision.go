// Package decision implements the advisory Decision Engine from spec.md
// §4.5: templated-prompt LLM calls whose replies are parsed tolerantly, with
// safe defaults on any parse failure. Structured replies are expected as
// JSON; malformed JSON is repaired with github.com/kaptinlin/jsonrepair
// before a second parse attempt, mirroring the teacher's own "try direct
// parse, then repair, then fall back" recovery ladder from
// pkg/agent/controller/react_parser.go (line-based) adapted here to
// JSON-based replies.
package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/loopagent/core/pkg/llm"
	"github.com/loopagent/core/pkg/models"
)

// Engine consults an LLM with templated prompts for advisory decisions.
type Engine struct {
	Client llm.Client
}

// New returns an Engine bound to client.
func New(client llm.Client) *Engine {
	return &Engine{Client: client}
}

var confidencePattern = regexp.MustCompile(`(?i)CONFIDENCE:\s*(\d{1,3})`)

// MakeDecision asks the LLM to choose among options given context and
// question, returning the raw reply text with any CONFIDENCE:<0-100> line
// extracted separately.
func (e *Engine) MakeDecision(ctx context.Context, decisionCtx, question string, options []string) (text string, confidence int, err error) {
	prompt := fmt.Sprintf(
		"Context:\n%s\n\nQuestion: %s\n\nOptions:\n%s\n\nRespond with your chosen option, your reasoning, and a line \"CONFIDENCE:<0-100>\".",
		decisionCtx, question, strings.Join(options, "\n"),
	)
	reply, err := e.Client.Send(ctx, prompt)
	if err != nil {
		return "", 0, fmt.Errorf("decision: makeDecision llm call failed: %w", err)
	}

	confidence = 0
	if m := confidencePattern.FindStringSubmatch(reply); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			confidence = clamp(n, 0, 100)
		}
	}
	return reply, confidence, nil
}

// Strategy is the advisory result of decideStrategy.
type Strategy struct {
	Type      StrategyType `json:"type"`
	Reasoning string       `json:"reasoning"`
	Priority  string       `json:"priority"`
}

// StrategyType is the closed set of strategy names spec.md §4.5 names.
type StrategyType string

const (
	StrategyAggressive   StrategyType = "AGGRESSIVE"
	StrategyConservative StrategyType = "CONSERVATIVE"
	StrategyBalanced     StrategyType = "BALANCED"
	StrategyReactive     StrategyType = "REACTIVE"
	StrategyProactive    StrategyType = "PROACTIVE"
	StrategyExploratory  StrategyType = "EXPLORATORY"
	StrategyMaintenance  StrategyType = "MAINTENANCE"
)

func (t StrategyType) isValid() bool {
	switch t {
	case StrategyAggressive, StrategyConservative, StrategyBalanced, StrategyReactive,
		StrategyProactive, StrategyExploratory, StrategyMaintenance:
		return true
	}
	return false
}

// defaultStrategy is returned whenever the LLM's reply cannot be parsed.
func defaultStrategy() Strategy {
	return Strategy{Type: StrategyBalanced, Reasoning: "default: unparseable strategy reply", Priority: string(models.TaskPriorityMedium)}
}

// DecideStrategy asks the LLM to classify situation+context into a strategy.
func (e *Engine) DecideStrategy(ctx context.Context, situation, decisionCtx string) Strategy {
	prompt := fmt.Sprintf(
		"Situation: %s\nContext: %s\n\nRespond with JSON: {\"type\": one of AGGRESSIVE|CONSERVATIVE|BALANCED|REACTIVE|PROACTIVE|EXPLORATORY|MAINTENANCE, \"reasoning\": string, \"priority\": one of HIGH|MEDIUM|LOW}.",
		situation, decisionCtx,
	)
	reply, err := e.Client.Send(ctx, prompt)
	if err != nil {
		slog.Warn("decision: decideStrategy llm call failed, using default", "error", err)
		return defaultStrategy()
	}

	var s Strategy
	if !parseJSONTolerant(reply, &s) || !s.Type.isValid() {
		slog.Warn("decision: decideStrategy reply unparseable, using default", "reply", reply)
		return defaultStrategy()
	}
	return s
}

// ActionCheck is the result of shouldTakeAction.
type ActionCheck struct {
	ShouldProceed bool   `json:"-"`
	Proceed       string `json:"should_proceed"`
	Reasoning     string `json:"reasoning"`
	RiskLevel     string `json:"risk_level"`
}

func defaultActionCheck() ActionCheck {
	return ActionCheck{ShouldProceed: false, Proceed: "NO", Reasoning: "default: unparseable reply, declining to proceed", RiskLevel: "HIGH"}
}

// ShouldTakeAction asks the LLM whether action is safe to take given context
// and metadata.
func (e *Engine) ShouldTakeAction(ctx context.Context, action, decisionCtx string, metadata map[string]string) ActionCheck {
	prompt := fmt.Sprintf(
		"Proposed action: %s\nContext: %s\nMetadata: %v\n\nRespond with JSON: {\"should_proceed\": \"YES\"|\"NO\", \"reasoning\": string, \"risk_level\": \"LOW\"|\"MEDIUM\"|\"HIGH\"}.",
		action, decisionCtx, metadata,
	)
	reply, err := e.Client.Send(ctx, prompt)
	if err != nil {
		slog.Warn("decision: shouldTakeAction llm call failed, using default", "error", err)
		return defaultActionCheck()
	}

	var out ActionCheck
	if !parseJSONTolerant(reply, &out) {
		slog.Warn("decision: shouldTakeAction reply unparseable, using default", "reply", reply)
		return defaultActionCheck()
	}
	out.Proceed = strings.ToUpper(strings.TrimSpace(out.Proceed))
	if out.Proceed != "YES" && out.Proceed != "NO" {
		return defaultActionCheck()
	}
	out.ShouldProceed = out.Proceed == "YES"
	if out.RiskLevel == "" {
		out.RiskLevel = "MEDIUM"
	}
	return out
}

// PrioritizeTasks asks the LLM to reorder tasks by id. Unknown and repeated
// ids in the reply are ignored, and tasks the reply omits are appended in
// their original order. The original order is returned unchanged when the
// LLM call fails, the reply does not parse, or the result does not account
// for every task (which happens only when tasks share an id).
func (e *Engine) PrioritizeTasks(ctx context.Context, tasks []*models.AgentTask, decisionCtx string) []*models.AgentTask {
	if len(tasks) < 2 {
		return tasks
	}

	ids := make([]string, len(tasks))
	byID := make(map[string]*models.AgentTask, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		byID[t.ID] = t
	}

	prompt := fmt.Sprintf(
		"Context: %s\n\nTask ids in current order: %s\n\nRespond with JSON: {\"order\": [task ids in the priority order you recommend]}.",
		decisionCtx, strings.Join(ids, ", "),
	)
	reply, err := e.Client.Send(ctx, prompt)
	if err != nil {
		slog.Warn("decision: prioritizeTasks llm call failed, keeping original order", "error", err)
		return tasks
	}

	var parsed struct {
		Order []string `json:"order"`
	}
	if !parseJSONTolerant(reply, &parsed) {
		slog.Warn("decision: prioritizeTasks reply unparseable, keeping original order", "reply", reply)
		return tasks
	}

	seen := make(map[string]bool, len(parsed.Order))
	reordered := make([]*models.AgentTask, 0, len(tasks))
	for _, id := range parsed.Order {
		t, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		reordered = append(reordered, t)
	}
	for _, t := range tasks {
		if !seen[t.ID] {
			reordered = append(reordered, t)
		}
	}
	if len(reordered) != len(tasks) {
		slog.Warn("decision: prioritizeTasks reply dropped tasks, keeping original order")
		return tasks
	}
	return reordered
}

// ErrorDecision is the result of handleError.
type ErrorDecision struct {
	Action       ErrorAction `json:"action"`
	Reason       string      `json:"reason"`
	RetryDelayMs int         `json:"retry_delay_ms"`
}

// ErrorAction is the closed set of error-recovery actions spec.md §4.5 names.
type ErrorAction string

const (
	ErrorActionRetry    ErrorAction = "RETRY"
	ErrorActionSkip     ErrorAction = "SKIP"
	ErrorActionStop     ErrorAction = "STOP"
	ErrorActionEscalate ErrorAction = "ESCALATE"
)

func (a ErrorAction) isValid() bool {
	switch a {
	case ErrorActionRetry, ErrorActionSkip, ErrorActionStop, ErrorActionEscalate:
		return true
	}
	return false
}

func defaultErrorDecision() ErrorDecision {
	return ErrorDecision{Action: ErrorActionRetry, Reason: "default: unparseable reply", RetryDelayMs: 5000}
}

// HandleError asks the LLM how to react to a failure given context.
func (e *Engine) HandleError(ctx context.Context, taskErr error, decisionCtx string) ErrorDecision {
	if taskErr == nil {
		return defaultErrorDecision()
	}
	prompt := fmt.Sprintf(
		"Error: %s\nContext: %s\n\nRespond with JSON: {\"action\": \"RETRY\"|\"SKIP\"|\"STOP\"|\"ESCALATE\", \"reason\": string, \"retry_delay_ms\": integer}.",
		taskErr.Error(), decisionCtx,
	)
	reply, err := e.Client.Send(ctx, prompt)
	if err != nil {
		slog.Warn("decision: handleError llm call failed, using default", "error", err)
		return defaultErrorDecision()
	}

	var out ErrorDecision
	if !parseJSONTolerant(reply, &out) || !out.Action.isValid() {
		slog.Warn("decision: handleError reply unparseable, using default", "reply", reply)
		return defaultErrorDecision()
	}
	if out.RetryDelayMs <= 0 {
		out.RetryDelayMs = 5000
	}
	return out
}

// RetryDelay is a convenience accessor returning the decision's delay as a
// time.Duration.
func (d ErrorDecision) RetryDelay() time.Duration {
	return time.Duration(d.RetryDelayMs) * time.Millisecond
}

// parseJSONTolerant attempts json.Unmarshal on the tightest { ... } slice of
// reply, repairing malformed JSON with jsonrepair before a second attempt.
// Returns false if both attempts fail.
func parseJSONTolerant(reply string, out any) bool {
	candidate := extractJSONObject(reply)
	if candidate == "" {
		return false
	}
	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return true
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(repaired), out) == nil
}

// extractJSONObject returns the substring from the first "{" to the last
// "}" in text, or "" if no braces are present. LLM replies routinely wrap
// JSON in prose or markdown fences; this strips that wrapper before parsing.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
