package config

// TransportType defines MCP server transport types.
type TransportType string

const (
	// TransportTypeStdio uses subprocess communication via stdin/stdout.
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeHTTP uses HTTP/HTTPS JSON-RPC.
	TransportTypeHTTP TransportType = "http"
	// TransportTypeSSE uses Server-Sent Events.
	TransportTypeSSE TransportType = "sse"
)

// IsValid checks if the transport type is valid.
func (t TransportType) IsValid() bool {
	return t == TransportTypeStdio || t == TransportTypeHTTP || t == TransportTypeSSE
}

// LLMProviderType defines supported LLM providers for llm.default_provider.
type LLMProviderType string

const (
	LLMProviderTypeGoogle    LLMProviderType = "google"
	LLMProviderTypeOpenAI    LLMProviderType = "openai"
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	LLMProviderTypeLocal     LLMProviderType = "local"
)

// IsValid checks if the LLM provider type is valid.
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeGoogle, LLMProviderTypeOpenAI, LLMProviderTypeAnthropic, LLMProviderTypeLocal:
		return true
	default:
		return false
	}
}
