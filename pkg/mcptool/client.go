// Package mcptool implements the MCP_TOOL_CALL task type: the one TaskType
// the spec names but whose transport it declares external (spec.md §9,
// Open Questions). We keep the teacher's real go-sdk client wrapper
// (pkg/mcp/client.go), generalized from per-session alert-investigation
// tool calls to arbitrary MCP tool invocations keyed by server name.
package mcptool

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loopagent/core/pkg/config"
	"github.com/loopagent/core/pkg/version"
)

// connectTimeout bounds how long establishing a new server session may take.
const connectTimeout = 10 * time.Second

// Client manages MCP SDK sessions to the servers configured under
// mcp.servers in agent.yaml, connecting lazily on first use and reusing the
// session thereafter. Thread-safe for concurrent tool calls from multiple
// workers.
type Client struct {
	servers map[string]config.TransportConfig

	mu       sync.Mutex
	sessions map[string]*mcpsdk.ClientSession
}

// NewClient returns a Client that can connect to any server named in servers.
func NewClient(servers map[string]config.TransportConfig) *Client {
	return &Client{
		servers:  servers,
		sessions: make(map[string]*mcpsdk.ClientSession),
	}
}

// CallTool connects to serverName (if not already connected) and invokes
// toolName with args, returning the concatenated text content of the reply.
func (c *Client) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (string, error) {
	session, err := c.session(ctx, serverName)
	if err != nil {
		return "", fmt.Errorf("mcptool: connect to %q: %w", serverName, err)
	}

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcptool: call %q on %q: %w", toolName, serverName, err)
	}
	text := extractText(result)
	if result.IsError {
		return text, fmt.Errorf("mcptool: tool %q reported an error: %s", toolName, text)
	}
	return text, nil
}

func (c *Client) session(ctx context.Context, serverName string) (*mcpsdk.ClientSession, error) {
	c.mu.Lock()
	if s, ok := c.sessions[serverName]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	transportCfg, ok := c.servers[serverName]
	if !ok {
		return nil, fmt.Errorf("server %q not configured", serverName)
	}
	transport, err := createTransport(transportCfg)
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    version.AppName,
		Version: version.GitCommit,
	}, nil)

	session, err := client.Connect(connectCtx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	c.mu.Lock()
	if existing, ok := c.sessions[serverName]; ok {
		c.mu.Unlock()
		session.Close()
		return existing, nil
	}
	c.sessions[serverName] = session
	c.mu.Unlock()
	return session, nil
}

// Close terminates every open session and forgets it. No code in this
// repository calls it; the Lifecycle Controller's shutdown does not.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, s := range c.sessions {
		_ = s.Close()
		delete(c.sessions, name)
	}
}

func extractText(result *mcpsdk.CallToolResult) string {
	var out string
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			if out != "" {
				out += "\n"
			}
			out += tc.Text
		}
	}
	return out
}
