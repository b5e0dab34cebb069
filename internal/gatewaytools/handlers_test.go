package gatewaytools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/agent-mcp-gateway/internal/audit"
	"github.com/giantswarm/agent-mcp-gateway/internal/downstream"
	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
	"github.com/giantswarm/agent-mcp-gateway/internal/metrics"
	"github.com/giantswarm/agent-mcp-gateway/internal/policy"
)

func testDeps(t *testing.T, rules *gatewayconfig.Rules, mcpConfig *gatewayconfig.MCPConfig) *Deps {
	t.Helper()
	conns := downstream.NewManager()
	conns.InitializeConnections(mcpConfig)

	return &Deps{
		Policy:        policy.New(rules),
		Connections:   conns,
		Metrics:       metrics.NewCollector(),
		Audit:         audit.NewSink(filepath.Join(t.TempDir(), "audit.jsonl")),
		MCPConfigPath: "mcp-servers.json",
		RulesPath:     "gateway-rules.json",
		AuditLogPath:  "audit.jsonl",
	}
}

func wildcardRules() *gatewayconfig.Rules {
	return &gatewayconfig.Rules{
		Agents: map[string]gatewayconfig.AgentRule{
			"tester": {
				Allow: gatewayconfig.PolicySection{
					Servers: []string{"*"},
					Tools:   map[string][]string{"*": {"*"}},
				},
			},
		},
		Defaults: gatewayconfig.Defaults{DenyOnMissingAgent: true},
	}
}

func twoServerConfig() *gatewayconfig.MCPConfig {
	return &gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{
		"alpha": {Name: "alpha", Transport: gatewayconfig.TransportStdio, Command: "alpha-bin", Description: "alpha server"},
		"beta":  {Name: "beta", Transport: gatewayconfig.TransportHTTP, URL: "https://beta.example.com/mcp", Description: "beta server"},
	}}
}

func callToolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), &decoded))
	return decoded
}

func TestHandleListServersReturnsAllServersForWildcardAgent(t *testing.T) {
	deps := testDeps(t, wildcardRules(), twoServerConfig())
	ctx := withAgent(context.Background(), "tester")

	result, err := deps.handleListServers(ctx, callToolRequest(nil))
	require.NoError(t, err)

	decoded := resultText(t, result)
	servers, ok := decoded["servers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, servers, 2)
}

func TestHandleListServersIncludesMetadataOnlyWhenRequested(t *testing.T) {
	deps := testDeps(t, wildcardRules(), twoServerConfig())
	ctx := withAgent(context.Background(), "tester")

	result, err := deps.handleListServers(ctx, callToolRequest(map[string]interface{}{"include_metadata": true}))
	require.NoError(t, err)

	decoded := resultText(t, result)
	servers := decoded["servers"].([]interface{})
	for _, raw := range servers {
		entry := raw.(map[string]interface{})
		if entry["name"] == "alpha" {
			assert.Equal(t, "alpha server", entry["description"])
			assert.Equal(t, "alpha-bin", entry["command"])
		}
	}
}

func TestHandleGetServerToolsDeniesAccessForUnknownAgent(t *testing.T) {
	rules := &gatewayconfig.Rules{
		Agents:   map[string]gatewayconfig.AgentRule{},
		Defaults: gatewayconfig.Defaults{DenyOnMissingAgent: true},
	}
	deps := testDeps(t, rules, twoServerConfig())
	ctx := withAgent(context.Background(), "stranger")

	result, err := deps.handleGetServerTools(ctx, callToolRequest(map[string]interface{}{"server": "alpha"}))
	require.NoError(t, err)

	decoded := resultText(t, result)
	assert.Contains(t, decoded["error"], "Access denied")
	assert.Equal(t, float64(0), decoded["total_available"])
}

func TestHandleGetServerToolsReportsDownstreamErrorForUnreachableServer(t *testing.T) {
	deps := testDeps(t, wildcardRules(), twoServerConfig())
	ctx := withAgent(context.Background(), "tester")

	result, err := deps.handleGetServerTools(ctx, callToolRequest(map[string]interface{}{"server": "alpha"}))
	require.NoError(t, err)

	decoded := resultText(t, result)
	assert.NotEmpty(t, decoded["error"])
	assert.Equal(t, float64(0), decoded["total_available"])
}

func TestHandleGetServerToolsReportsServerNotFoundForUnknownServer(t *testing.T) {
	deps := testDeps(t, wildcardRules(), twoServerConfig())
	ctx := withAgent(context.Background(), "tester")

	result, err := deps.handleGetServerTools(ctx, callToolRequest(map[string]interface{}{"server": "ghost"}))
	require.NoError(t, err)

	decoded := resultText(t, result)
	assert.Contains(t, decoded["error"], "server not found")
}

func TestHandleExecuteToolReturnsNotAuthorizedErrorForDeniedAgent(t *testing.T) {
	rules := &gatewayconfig.Rules{
		Agents: map[string]gatewayconfig.AgentRule{
			"tester": {Allow: gatewayconfig.PolicySection{Servers: []string{"beta"}, Tools: map[string][]string{"beta": {"*"}}}},
		},
		Defaults: gatewayconfig.Defaults{DenyOnMissingAgent: true},
	}
	deps := testDeps(t, rules, twoServerConfig())
	ctx := withAgent(context.Background(), "tester")

	_, err := deps.handleExecuteTool(ctx, callToolRequest(map[string]interface{}{"server": "alpha", "tool": "do-thing"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized")
}

func TestHandleExecuteToolReportsServerNotFoundForUnknownServer(t *testing.T) {
	deps := testDeps(t, wildcardRules(), twoServerConfig())
	ctx := withAgent(context.Background(), "tester")

	_, err := deps.handleExecuteTool(ctx, callToolRequest(map[string]interface{}{"server": "ghost", "tool": "do-thing"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server not found: ghost")
}

func TestMatchToolPatternSupportsGlobWildcards(t *testing.T) {
	assert.True(t, matchToolPattern("get_*", "get_weather"))
	assert.False(t, matchToolPattern("get_*", "set_weather"))
	assert.True(t, matchToolPattern("*", "anything"))
}

func TestMatchToolPatternSupportsNegatedCharacterClass(t *testing.T) {
	assert.False(t, matchToolPattern("[!dg]et_user", "get_user"))
	assert.True(t, matchToolPattern("[!dg]et_user", "net_user"))
}

func TestParseNamesSplitsAndTrimsCommaList(t *testing.T) {
	names := parseNames(" a, b ,c")
	assert.Len(t, names, 3)
	_, ok := names["a"]
	assert.True(t, ok)
}

func TestParseNamesReturnsNilForEmptyString(t *testing.T) {
	assert.Nil(t, parseNames(""))
}
