// Package downstream owns the lifecycle of connections to downstream MCP
// servers: lazy client construction (stdio subprocess or HTTP, with OAuth
// auto-negotiation), one shared client per server, retrying test connections,
// and differential hot-reload that preserves unchanged connections.
package downstream

import (
	"context"
	"fmt"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

// DefaultInitTimeout bounds how long client construction (including the MCP
// handshake) may take before it is considered a failed connect.
const DefaultInitTimeout = 10 * time.Second

// client is the gateway's tagged-variant capability over a downstream
// server: a stdio subprocess or a remote HTTP endpoint, both reduced to the
// two operations the gateway actually proxies, plus Close. It deliberately
// does not expose resources/prompts/ping — the gateway's virtual tools
// never use them.
type client struct {
	underlying mcpclient.MCPClient
}

func newStdioClient(ctx context.Context, desc gatewayconfig.ServerDescriptor) (*client, error) {
	envStrings := make([]string, 0, len(desc.Env))
	for k, v := range desc.Env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	mc, err := mcpclient.NewStdioMCPClient(desc.Command, envStrings, desc.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio client for %q: %w", desc.Name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, DefaultInitTimeout)
	defer cancel()

	if _, err := initializeClient(initCtx, mc); err != nil {
		_ = mc.Close()
		return nil, fmt.Errorf("failed to initialize MCP protocol for %q: %w", desc.Name, err)
	}

	return &client{underlying: mc}, nil
}

// newHTTPClient constructs a client for an HTTP server descriptor. When the
// descriptor carries no Authorization header (case-insensitive), OAuth
// auto-negotiation is enabled: the client is built with a dynamic header
// function backed by tokenSource, and a 401 on the first handshake attempt
// triggers one negotiation-and-retry before giving up.
func newHTTPClient(ctx context.Context, desc gatewayconfig.ServerDescriptor, oauthEnabled bool, tokenSource *cachingTokenSource) (*client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(desc.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(desc.Headers))
	}
	if oauthEnabled && tokenSource != nil {
		opts = append(opts, transport.WithHTTPHeaderFunc(tokenSource.bearerHeader))
	}

	mc, err := mcpclient.NewStreamableHttpClient(desc.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client for %q: %w", desc.Name, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, DefaultInitTimeout)
	defer cancel()

	_, err = initializeClient(initCtx, mc)
	if err != nil && oauthEnabled && tokenSource != nil && looksUnauthorized(err.Error()) {
		if tokenSource.Negotiate(ctx, err.Error()) {
			logging.Debug("downstream", "negotiated OAuth token for %q, retrying handshake", desc.Name)
			_, err = initializeClient(initCtx, mc)
		}
	}
	if err != nil {
		_ = mc.Close()
		return nil, fmt.Errorf("failed to initialize MCP protocol for %q: %w", desc.Name, err)
	}

	return &client{underlying: mc}, nil
}

func initializeClient(ctx context.Context, mc mcpclient.MCPClient) (*mcp.InitializeResult, error) {
	return mc.Initialize(ctx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "agent-mcp-gateway",
				Version: "0.1.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
}

func (c *client) listTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := c.underlying.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

func (c *client) callTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	result, err := c.underlying.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}
	return result, nil
}

func (c *client) close() {
	if err := c.underlying.Close(); err != nil {
		logging.Debug("downstream", "error closing client: %v", err)
	}
}
