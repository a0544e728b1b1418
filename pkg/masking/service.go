package masking

import (
	"log/slog"
	"regexp"

	"github.com/loopagent/core/pkg/config"
)

// Service applies regex-based masking to task output. Created once at
// engine startup; thread-safe and stateless aside from compiled patterns.
type Service struct {
	patterns []*CompiledPattern
	enabled  bool
}

// NewService compiles the built-in patterns plus cfg.CustomPatterns.
// Invalid custom patterns are logged and skipped rather than failing
// startup — a malformed mask configuration should not take the engine down.
func NewService(cfg config.MaskingConfig) *Service {
	s := &Service{enabled: cfg.Enabled}
	s.patterns = compileBuiltins()

	for _, cp := range cfg.CustomPatterns {
		re, err := regexp.Compile(cp.Pattern)
		if err != nil {
			slog.Error("masking: failed to compile custom pattern, skipping",
				"pattern", cp.Description, "error", err)
			continue
		}
		s.patterns = append(s.patterns, &CompiledPattern{
			Name:        "custom:" + cp.Description,
			Regex:       re,
			Replacement: cp.Replacement,
		})
	}
	return s
}

// Mask applies every compiled pattern to text in order and returns the
// redacted result. A nil/disabled Service is a no-op, so callers can always
// invoke Mask unconditionally.
func (s *Service) Mask(text string) string {
	if s == nil || !s.enabled || text == "" {
		return text
	}
	out := text
	for _, p := range s.patterns {
		out = p.Regex.ReplaceAllString(out, p.Replacement)
	}
	return out
}
