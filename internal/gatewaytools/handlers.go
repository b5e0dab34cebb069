package gatewaytools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/agent-mcp-gateway/internal/audit"
	"github.com/giantswarm/agent-mcp-gateway/internal/downstream"
	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
	"github.com/giantswarm/agent-mcp-gateway/internal/metrics"
	"github.com/giantswarm/agent-mcp-gateway/internal/policy"
	"github.com/giantswarm/agent-mcp-gateway/internal/reload"
	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

// Deps are the subsystems the four virtual-tool handlers consult. Every
// field is a pointer to a shared, already-constructed instance; Deps itself
// carries no state of its own.
type Deps struct {
	Policy      *policy.Engine
	Connections *downstream.Manager
	Metrics     *metrics.Collector
	Audit       *audit.Sink
	Reload      *reload.Orchestrator

	MCPConfigPath string
	RulesPath     string
	AuditLogPath  string
}

// RegisterTools builds the server.ServerTool list for the four virtual
// tools, wrapping each handler in the agent_id middleware. get_gateway_status
// is included only when debug is true — it must be entirely absent from
// list_tools output, not merely access-denied.
func RegisterTools(deps *Deps, debug bool) []server.ServerTool {
	denyOnMissing := deps.Policy.DenyOnMissingAgent
	wrap := func(h HandlerFunc) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return asMCPHandler(deps.withConfigPoll(WithAgentMiddleware(denyOnMissing, h)))
	}

	tools := []server.ServerTool{
		{
			Tool: mcp.Tool{
				Name:        "list_servers",
				Description: "List the downstream MCP servers this agent may access.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"agent_id":         map[string]interface{}{"type": "string", "description": "Calling agent's identity."},
						"include_metadata": map[string]interface{}{"type": "boolean", "description": "Include descriptions and transport-specific fields."},
					},
				},
			},
			Handler: wrap(deps.handleListServers),
		},
		{
			Tool: mcp.Tool{
				Name:        "get_server_tools",
				Description: "List the tools a downstream server exposes, filtered by this agent's policy.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"agent_id":          map[string]interface{}{"type": "string"},
						"server":            map[string]interface{}{"type": "string"},
						"names":             map[string]interface{}{"type": "string", "description": "Comma-separated tool names to include."},
						"pattern":           map[string]interface{}{"type": "string", "description": "Glob pattern tool names must match."},
						"max_schema_tokens": map[string]interface{}{"type": "integer", "description": "Token budget for the returned schema set."},
					},
					Required: []string{"server"},
				},
			},
			Handler: wrap(deps.handleGetServerTools),
		},
		{
			Tool: mcp.Tool{
				Name:        "execute_tool",
				Description: "Invoke a tool on a downstream server on this agent's behalf.",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"agent_id":   map[string]interface{}{"type": "string"},
						"server":     map[string]interface{}{"type": "string"},
						"tool":       map[string]interface{}{"type": "string"},
						"args":       map[string]interface{}{"type": "object"},
						"timeout_ms": map[string]interface{}{"type": "integer"},
					},
					Required: []string{"server", "tool"},
				},
			},
			Handler: wrap(deps.handleExecuteTool),
		},
	}

	if debug {
		tools = append(tools, server.ServerTool{
			Tool: mcp.Tool{
				Name:        "get_gateway_status",
				Description: "Diagnostic snapshot of reload history, policy summary, and configured servers (debug mode only).",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"agent_id": map[string]interface{}{"type": "string"},
					},
				},
			},
			Handler: wrap(deps.handleGetGatewayStatus),
		})
	}

	return tools
}

func asMCPHandler(h HandlerFunc) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return h(ctx, req)
	}
}

// withConfigPoll is the §4.G mtime-poll fallback: every virtual-tool call
// opportunistically checks whether either watched config file's mtime has
// advanced since the last check, synthesizing the same reload callback the
// filesystem watcher would have fired. Cheap enough (two stat calls) to run
// unconditionally ahead of every call.
func (d *Deps) withConfigPoll(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if d.Reload != nil {
			d.Reload.CheckConfigChanges()
		}
		return next(ctx, req)
	}
}

func argsOf(req mcp.CallToolRequest) map[string]interface{} {
	args, _ := req.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]interface{}, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// handleListServers implements list_servers per §4.H: expand the policy
// engine's allowed-server set (or the wildcard sentinel) against the
// currently configured servers, in the engine's order.
func (d *Deps) handleListServers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := logging.Now()
	agent := AgentFromContext(ctx)
	args := argsOf(req)
	includeMetadata := boolArg(args, "include_metadata")

	allowed := d.Policy.GetAllowedServers(agent)
	config := d.Connections.GetServersConfig()

	names := allowed
	if len(allowed) == 1 && allowed[0] == policy.Wildcard {
		names = config.ServerNames()
		sort.Strings(names)
	}

	type serverEntry struct {
		Name        string `json:"name"`
		Transport   string `json:"transport"`
		Description string `json:"description,omitempty"`
		Command     string `json:"command,omitempty"`
		URL         string `json:"url,omitempty"`
	}

	var out []serverEntry
	for _, name := range names {
		desc, ok := config.Servers[name]
		if !ok {
			continue
		}
		entry := serverEntry{Name: desc.Name, Transport: string(desc.Transport)}
		if includeMetadata {
			entry.Description = desc.Description
			if desc.Transport == gatewayconfig.TransportStdio {
				entry.Command = desc.Command
			} else {
				entry.URL = desc.URL
			}
		}
		out = append(out, entry)
	}

	d.recordOutcome(agent, "list_servers", audit.DecisionAllow, start, nil)
	return jsonResult(map[string]interface{}{"servers": out}), nil
}

// handleGetServerTools implements get_server_tools per §4.H steps 1-6.
func (d *Deps) handleGetServerTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := logging.Now()
	agent := AgentFromContext(ctx)
	args := argsOf(req)
	serverName := stringArg(args, "server")

	type toolEntry struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		InputSchema interface{} `json:"inputSchema"`
	}
	response := map[string]interface{}{
		"server": serverName,
	}

	if !d.Policy.CanAccessServer(agent, serverName) {
		response["error"] = fmt.Sprintf("Access denied: agent %q cannot access server %q", agent, serverName)
		response["total_available"] = 0
		response["returned"] = 0
		d.recordOutcome(agent, "get_server_tools", audit.DecisionDeny, start, map[string]interface{}{"server": serverName})
		return jsonResult(response), nil
	}

	downstreamTools, err := d.Connections.ListTools(ctx, serverName)
	if err != nil {
		response["error"] = err.Error()
		response["total_available"] = 0
		response["returned"] = 0
		d.recordOutcome(agent, "get_server_tools", audit.DecisionError, start, map[string]interface{}{"server": serverName, "error": err.Error()})
		return jsonResult(response), nil
	}
	response["total_available"] = len(downstreamTools)

	nameFilter := parseNames(stringArg(args, "names"))
	pattern := stringArg(args, "pattern")
	maxTokens, hasBudget := intArg(args, "max_schema_tokens")

	var included []toolEntry
	var tokensUsed int
	for _, t := range downstreamTools {
		if len(nameFilter) > 0 {
			if _, ok := nameFilter[t.Name]; !ok {
				continue
			}
		}
		if pattern != "" && !matchToolPattern(pattern, t.Name) {
			continue
		}
		if !d.Policy.CanAccessTool(agent, serverName, t.Name) {
			continue
		}
		if hasBudget {
			schemaBytes, _ := json.Marshal(t.InputSchema)
			cost := int(math.Ceil(float64(len(t.Name)+len(t.Description)+len(schemaBytes)) / 4))
			if tokensUsed+cost > maxTokens {
				break
			}
			tokensUsed += cost
		}
		included = append(included, toolEntry{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	response["tools"] = included
	response["returned"] = len(included)
	if hasBudget {
		response["tokens_used"] = tokensUsed
	}

	d.recordOutcome(agent, "get_server_tools", audit.DecisionAllow, start, map[string]interface{}{"server": serverName, "returned": len(included)})
	return jsonResult(response), nil
}

func parseNames(names string) map[string]struct{} {
	if names == "" {
		return nil
	}
	out := make(map[string]struct{})
	for _, n := range strings.Split(names, ",") {
		n = strings.TrimSpace(n)
		if n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func matchToolPattern(pattern, name string) bool {
	return policy.MatchPattern(pattern, name)
}

// handleExecuteTool implements execute_tool per §4.H: gate on server and
// tool access, delegate to the connection manager, and normalize the
// downstream result shape.
func (d *Deps) handleExecuteTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := logging.Now()
	agent := AgentFromContext(ctx)
	args := argsOf(req)
	serverName := stringArg(args, "server")
	toolName := stringArg(args, "tool")

	toolArgs, _ := args["args"].(map[string]interface{})
	if toolArgs == nil {
		toolArgs = map[string]interface{}{}
	}
	timeoutMs, _ := intArg(args, "timeout_ms")

	meta := map[string]interface{}{"server": serverName, "tool": toolName}

	if !d.Policy.CanAccessServer(agent, serverName) || !d.Policy.CanAccessTool(agent, serverName, toolName) {
		d.recordOutcome(agent, "execute_tool", audit.DecisionDeny, start, meta)
		return nil, fmt.Errorf("not authorized: agent %q may not invoke %q on %q", agent, toolName, serverName)
	}

	result, err := d.Connections.CallTool(ctx, serverName, toolName, toolArgs, timeoutMs)
	if err != nil {
		d.recordOutcome(agent, "execute_tool", audit.DecisionError, start, mergeMeta(meta, "error", err.Error()))
		if _, isTimeout := err.(*downstream.TimeoutError); isTimeout {
			return nil, err
		}
		if strings.Contains(err.Error(), "server not found") {
			return nil, fmt.Errorf("server not found: %s", serverName)
		}
		return nil, fmt.Errorf("tool execution failed: %v", err)
	}

	d.recordOutcome(agent, "execute_tool", audit.DecisionAllow, start, meta)
	return result, nil
}

func mergeMeta(base map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[key] = value
	return out
}

// handleGetGatewayStatus implements get_gateway_status per §4.H. It is only
// ever registered when debug mode is enabled.
func (d *Deps) handleGetGatewayStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := logging.Now()
	agent := AgentFromContext(ctx)

	status := d.Reload.Status()
	agentIDs := d.Policy.AgentIDs()

	snapshot := map[string]interface{}{
		"reload_status": map[string]interface{}{
			"mcp_config": fileStatusJSON(status.MCPConfig),
			"rules":      fileStatusJSON(status.Rules),
		},
		"policy_summary": map[string]interface{}{
			"total_agents":          len(agentIDs),
			"agent_ids":             agentIDs,
			"deny_on_missing_agent": d.Policy.DenyOnMissingAgent(),
		},
		"available_servers": d.Connections.GetAllServers(),
		"config_paths": map[string]interface{}{
			"mcp_config": d.MCPConfigPath,
			"rules":      d.RulesPath,
			"audit_log":  d.AuditLogPath,
		},
		"message": "Gateway is operational. Check reload_status for hot reload health.",
	}

	d.recordOutcome(agent, "get_gateway_status", audit.DecisionAllow, start, nil)
	return jsonResult(snapshot), nil
}

func fileStatusJSON(s reload.FileStatus) map[string]interface{} {
	out := map[string]interface{}{
		"attempt_count": s.AttemptCount,
		"success_count": s.SuccessCount,
		"last_error":    nil,
		"last_warnings": s.LastWarnings,
	}
	if s.LastError != "" {
		out["last_error"] = s.LastError
	}
	if s.LastAttempt != nil {
		out["last_attempt"] = s.LastAttempt.Format(time.RFC3339Nano)
	}
	if s.LastSuccess != nil {
		out["last_success"] = s.LastSuccess.Format(time.RFC3339Nano)
	}
	return out
}

// recordOutcome records both the audit line and the metrics sample for one
// completed operation. Every record carries a fresh request id so an
// operator can correlate a single audit line across the audit log and any
// downstream log correlation, even though the gateway itself never reuses
// it across calls. Non-ALLOW outcomes additionally surface on the
// diagnostic stream: the JSONL sink is the durable decision record, this
// is the live signal an operator watching stderr actually sees.
func (d *Deps) recordOutcome(agent, operation string, decision audit.Decision, start time.Time, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	requestID := uuid.NewString()
	metadata["request_id"] = requestID

	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
	d.Audit.Log(agent, operation, decision, latencyMs, metadata)
	d.Metrics.Record(agent, operation, latencyMs, decision == audit.DecisionError)

	if decision != audit.DecisionAllow {
		logging.Audit(logging.AuditEvent{
			Action:  operation,
			Outcome: string(decision),
			AgentID: agent,
			Target:  logging.TruncateID(requestID),
		})
	}
}
