package config

import (
	"fmt"
	"strings"
)

// Validator checks a resolved Config against the invariants the spec
// requires (positive concurrency, a known LLM provider, a non-empty state
// file path when persistence is enabled; whether that path is writable is
// not checked). Mirrors the teacher's dedicated
// Validator type (pkg/config/validator.go) rather than scattering checks
// through the loader.
type Validator struct{}

// NewValidator returns a ready-to-use Validator.
func NewValidator() *Validator { return &Validator{} }

// Validate returns every validation error found; an empty slice means cfg is valid.
func (v *Validator) Validate(cfg *Config) []error {
	var errs []error

	if cfg.Agent.MaxConcurrentTasks < 1 {
		errs = append(errs, NewValidationError("agent", "max_concurrent_tasks", "", fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, cfg.Agent.MaxConcurrentTasks)))
	}
	if cfg.Agent.ExecutionIntervalMs < 1 {
		errs = append(errs, NewValidationError("agent", "execution_interval_ms", "", fmt.Errorf("%w: must be >= 1, got %d", ErrInvalidValue, cfg.Agent.ExecutionIntervalMs)))
	}
	if cfg.Agent.ShutdownTimeout <= 0 {
		errs = append(errs, NewValidationError("agent", "shutdown_timeout", "", fmt.Errorf("%w: must be positive", ErrInvalidValue)))
	}
	if cfg.Agent.StatePersistence.Enabled {
		if strings.TrimSpace(cfg.Agent.StatePersistence.FilePath) == "" {
			errs = append(errs, NewValidationError("agent", "state_persistence.file_path", "", ErrMissingRequiredField))
		}
		if cfg.Agent.StatePersistence.MaxHistoryEntries < 1 {
			errs = append(errs, NewValidationError("agent", "state_persistence.max_history_entries", "", fmt.Errorf("%w: must be >= 1", ErrInvalidValue)))
		}
	}
	if cfg.FileOps.MaxReadSize < 1 {
		errs = append(errs, NewValidationError("file_ops", "max_read_size", "", fmt.Errorf("%w: must be >= 1", ErrInvalidValue)))
	}
	if provider := LLMProviderType(cfg.LLM.DefaultProvider); !provider.IsValid() {
		errs = append(errs, NewValidationError("llm", "default_provider", "", fmt.Errorf("%w: %q", ErrInvalidValue, cfg.LLM.DefaultProvider)))
	}
	if strings.TrimSpace(cfg.ExecutionShell) == "" {
		errs = append(errs, NewValidationError("root", "execution_shell", "", ErrMissingRequiredField))
	}

	return errs
}
