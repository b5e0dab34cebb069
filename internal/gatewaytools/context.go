// Package gatewaytools implements the four gateway-exposed virtual tools
// (list_servers, get_server_tools, execute_tool, get_gateway_status) and the
// request middleware that extracts and strips agent_id before they run.
package gatewaytools

import "context"

type contextKey string

// currentAgentKey is the well-known per-call context key the middleware
// stores the asserted agent id under.
const currentAgentKey contextKey = "current_agent"

// AgentFromContext returns the agent id stored by the middleware, or ""
// when the call carried no agent_id and deny_on_missing_agent is false.
func AgentFromContext(ctx context.Context) string {
	agent, _ := ctx.Value(currentAgentKey).(string)
	return agent
}

func withAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, currentAgentKey, agent)
}
