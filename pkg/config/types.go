package config

import "time"

// Shared types used across configuration structs.

// TransportConfig defines an MCP server's transport configuration, used by
// the MCP_TOOL_CALL handler to dial the right kind of server.
type TransportConfig struct {
	Type TransportType `yaml:"type" validate:"required"`

	// For stdio transport
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`

	// For http/sse transport
	URL         string `yaml:"url,omitempty"`
	BearerToken string `yaml:"bearer_token,omitempty"`
	VerifySSL   *bool  `yaml:"verify_ssl,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"` // seconds
}

// MCPSection configures the MCP servers the MCP_TOOL_CALL handler may dial,
// keyed by server name as referenced from a task's server_name parameter.
type MCPSection struct {
	Servers map[string]TransportConfig `yaml:"servers,omitempty"`
}

// MaskingConfig defines data masking configuration applied to shell/tool output.
type MaskingConfig struct {
	Enabled        bool             `yaml:"enabled"`
	PatternGroups  []string         `yaml:"pattern_groups,omitempty"`
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// MaskingPattern defines a regex-based masking pattern.
type MaskingPattern struct {
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement" validate:"required"`
	Description string `yaml:"description,omitempty"`
}

// StatePersistenceConfig controls the durable JSON snapshot of agent state.
type StatePersistenceConfig struct {
	Enabled           bool          `yaml:"enabled"`
	FilePath          string        `yaml:"file_path"`
	BackupInterval    time.Duration `yaml:"backup_interval"`
	MaxHistoryEntries int           `yaml:"max_history_entries" validate:"omitempty,min=1"`
}

// AgentSection is the agent.* section of agent.yaml.
type AgentSection struct {
	ModeEnabled         bool                   `yaml:"mode_enabled"`
	MaxConcurrentTasks  int                    `yaml:"max_concurrent_tasks" validate:"omitempty,min=1"`
	ExecutionIntervalMs int                    `yaml:"execution_interval_ms" validate:"omitempty,min=1"`
	ShutdownTimeout     time.Duration          `yaml:"shutdown_timeout"`
	StatePersistence    StatePersistenceConfig `yaml:"state_persistence"`
	DecisionModel       string                 `yaml:"decision_model"`

	// PersistStateEveryNCycles triggers a State Manager save from the main
	// cycle loop every N cycles, independent of the State Manager's own
	// backup-interval ticker.
	PersistStateEveryNCycles int `yaml:"persist_state_every_n_cycles" validate:"omitempty,min=1"`
}

// FileOpsSection is the file_ops.* section.
type FileOpsSection struct {
	MaxReadSize int64 `yaml:"max_read_size" validate:"omitempty,min=1"`
}

// LLMSection is the llm.* section.
type LLMSection struct {
	DefaultProvider string            `yaml:"default_provider"`
	Endpoints       map[string]string `yaml:"endpoints,omitempty"`
}
