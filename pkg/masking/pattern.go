// Package masking redacts credentials from shell output and other task
// results before they reach the Observe phase of the ReAct cycle, the
// durable state snapshot's history entries, or the logs, adapted from the
// teacher's pkg/masking regex+structural masker split.
package masking

import (
	"log/slog"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns covers the credential shapes most likely to leak through
// shell command output: cloud keys, bearer tokens, private keys, and
// generic key=value secrets.
var builtinPatterns = []struct {
	Name        string
	Pattern     string
	Replacement string
}{
	{"aws_access_key", `AKIA[0-9A-Z]{16}`, "***AWS_ACCESS_KEY***"},
	{"aws_secret_key", `(?i)aws_secret_access_key\s*[:=]\s*\S+`, "aws_secret_access_key=***REDACTED***"},
	{"bearer_token", `(?i)bearer\s+[A-Za-z0-9._-]{10,}`, "Bearer ***REDACTED***"},
	{"private_key_block", `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`, "***PRIVATE_KEY_REDACTED***"},
	{"generic_secret_kv", `(?i)(password|passwd|secret|api[_-]?key|token)\s*[:=]\s*['"]?[^\s'"]{4,}['"]?`, "$1=***REDACTED***"},
	{"github_token", `gh[pousr]_[A-Za-z0-9]{20,}`, "***GITHUB_TOKEN***"},
}

func compileBuiltins() []*CompiledPattern {
	out := make([]*CompiledPattern, 0, len(builtinPatterns))
	for _, p := range builtinPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("masking: failed to compile built-in pattern, skipping", "pattern", p.Name, "error", err)
			continue
		}
		out = append(out, &CompiledPattern{Name: p.Name, Regex: re, Replacement: p.Replacement})
	}
	return out
}

// CustomPattern is a user-supplied regex/replacement pair, taken from
// config.MaskingConfig.CustomPatterns.
type CustomPattern struct {
	Pattern     string
	Replacement string
}
