package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved, validated agent engine configuration.
type Config struct {
	Agent          AgentSection
	LLM            LLMSection
	FileOps        FileOpsSection
	MCP            MCPSection
	Masking        MaskingConfig
	ExecutionShell string
}

// Stats summarizes the resolved configuration for health/status reporting.
type Stats struct {
	MaxConcurrentTasks int    `json:"max_concurrent_tasks"`
	DecisionModel      string `json:"decision_model"`
	LLMProvider        string `json:"llm_provider"`
	StatePersisted     bool   `json:"state_persisted"`
}

// Stats returns a snapshot suitable for the /health and /status endpoints.
func (c *Config) Stats() Stats {
	return Stats{
		MaxConcurrentTasks: c.Agent.MaxConcurrentTasks,
		DecisionModel:      c.Agent.DecisionModel,
		LLMProvider:        c.LLM.DefaultProvider,
		StatePersisted:     c.Agent.StatePersistence.Enabled,
	}
}

// Initialize loads agent.yaml from configDir, merges it over the built-in
// defaults, validates the result, and logs summary stats. It mirrors the
// teacher's load → validate → log pipeline in pkg/config/loader.go.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	_ = ctx

	userCfg, err := loadYAML(filepath.Join(configDir, "agent.yaml"))
	if err != nil {
		return nil, err
	}

	merged := DefaultConfig()
	if err := mergo.Merge(&merged, userCfg, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}

	cfg := &Config{
		Agent:          merged.Agent,
		LLM:            merged.LLM,
		FileOps:        merged.FileOps,
		MCP:            merged.MCP,
		Masking:        merged.Masking,
		ExecutionShell: merged.ExecutionShell,
	}

	v := NewValidator()
	if errs := v.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, errs)
	}

	slog.Info("configuration loaded",
		"config_dir", configDir,
		"max_concurrent_tasks", cfg.Agent.MaxConcurrentTasks,
		"execution_interval_ms", cfg.Agent.ExecutionIntervalMs,
		"decision_model", cfg.Agent.DecisionModel,
		"llm_provider", cfg.LLM.DefaultProvider,
		"state_persistence_enabled", cfg.Agent.StatePersistence.Enabled,
	)

	return cfg, nil
}

// loadYAML reads filename, expands ${VAR}/$VAR environment references, and
// unmarshals it into a Defaults-shaped overlay. A missing file is not an
// error — the caller just gets the zero-value overlay, i.e. all defaults.
func loadYAML(filename string) (Defaults, error) {
	var out Defaults

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("config file not found, using built-in defaults", "file", filename)
			return out, nil
		}
		return out, NewLoadError(filename, err)
	}

	expanded := ExpandEnv(data)
	if err := yaml.Unmarshal(expanded, &out); err != nil {
		return out, NewLoadError(filename, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	return out, nil
}
