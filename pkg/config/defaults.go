package config

import "time"

// Defaults contains system-wide default values, applied when agent.yaml
// omits a field. Merged over with dario.cat/mergo so a user config only
// needs to specify what it overrides.
type Defaults struct {
	Agent          AgentSection   `yaml:"agent"`
	LLM            LLMSection     `yaml:"llm"`
	FileOps        FileOpsSection `yaml:"file_ops"`
	MCP            MCPSection     `yaml:"mcp"`
	Masking        MaskingConfig  `yaml:"masking"`
	ExecutionShell string         `yaml:"execution_shell"`
}

// DefaultConfig returns the built-in defaults named in the spec's
// configuration table.
func DefaultConfig() Defaults {
	return Defaults{
		Agent: AgentSection{
			ModeEnabled:         true,
			MaxConcurrentTasks:  4,
			ExecutionIntervalMs: 1000,
			ShutdownTimeout:     30 * time.Second,
			StatePersistence: StatePersistenceConfig{
				Enabled:           true,
				FilePath:          "./agent-state.json",
				BackupInterval:    60 * time.Second,
				MaxHistoryEntries: 1000,
			},
			DecisionModel:            "default",
			PersistStateEveryNCycles: 50,
		},
		LLM: LLMSection{
			DefaultProvider: string(LLMProviderTypeOpenAI),
		},
		FileOps: FileOpsSection{
			MaxReadSize: 10 * 1024 * 1024, // 10 MiB
		},
		MCP: MCPSection{
			Servers: map[string]TransportConfig{},
		},
		Masking: MaskingConfig{
			Enabled: true,
		},
		ExecutionShell: "/bin/sh",
	}
}
