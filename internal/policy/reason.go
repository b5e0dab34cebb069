package policy

import (
	"fmt"

	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
)

// DecisionReason returns a deterministic, single-line explanation of the
// access decision for (agent, server, tool). tool may be empty for a
// server-only query. The string names the agent, the server/tool, the rule
// that produced the decision, and whether it was literal or pattern-based.
func (e *Engine) DecisionReason(agent, server, tool string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rule, known := e.rules.Agents[agent]
	if !known {
		if e.rules.Defaults.DenyOnMissingAgent {
			return fmt.Sprintf("Agent %q is not configured; default deny_on_missing_agent=true denies access", agent)
		}
		return fmt.Sprintf("Agent %q is not configured; default deny_on_missing_agent=false allows access", agent)
	}

	serverReason, serverAllowed := explainServer(rule, agent, server)
	if tool == "" || !serverAllowed {
		return serverReason
	}

	return explainTool(rule, agent, server, tool)
}

func explainServer(rule gatewayconfig.AgentRule, agent, server string) (string, bool) {
	for _, p := range rule.Deny.Servers {
		if p == server {
			return fmt.Sprintf("Agent %q: server %q denied by literal deny.servers entry %q", agent, server, p), false
		}
		if p == Wildcard {
			return fmt.Sprintf("Agent %q: server %q denied by deny.servers wildcard %q", agent, server, p), false
		}
	}
	for _, p := range rule.Deny.Servers {
		if MatchPattern(p, server) {
			return fmt.Sprintf("Agent %q: server %q denied by deny.servers pattern %q", agent, server, p), false
		}
	}
	for _, p := range rule.Allow.Servers {
		if p == server {
			return fmt.Sprintf("Agent %q: server %q allowed by literal allow.servers entry %q", agent, server, p), true
		}
		if p == Wildcard {
			return fmt.Sprintf("Agent %q: server %q allowed by allow.servers wildcard %q", agent, server, p), true
		}
	}
	for _, p := range rule.Allow.Servers {
		if MatchPattern(p, server) {
			return fmt.Sprintf("Agent %q: server %q allowed by allow.servers pattern %q", agent, server, p), true
		}
	}
	return fmt.Sprintf("Agent %q: server %q denied by default (no matching rule)", agent, server), false
}

func explainTool(rule gatewayconfig.AgentRule, agent, server, tool string) string {
	denyExplicit, denyWildcard := partitionPatterns(toolPatterns(rule.Deny.Tools, server))
	allowExplicit, allowWildcard := partitionPatterns(toolPatterns(rule.Allow.Tools, server))

	for _, p := range denyExplicit {
		if p == tool {
			return fmt.Sprintf("Agent %q: tool %q on server %q denied by literal deny.tools entry %q", agent, tool, server, p)
		}
	}
	for _, p := range denyWildcard {
		if MatchPattern(p, tool) {
			return fmt.Sprintf("Agent %q: tool %q on server %q denied by deny.tools pattern %q", agent, tool, server, p)
		}
	}
	for _, p := range allowExplicit {
		if p == tool {
			return fmt.Sprintf("Agent %q: tool %q on server %q allowed by literal allow.tools entry %q", agent, tool, server, p)
		}
	}
	for _, p := range allowWildcard {
		if MatchPattern(p, tool) {
			return fmt.Sprintf("Agent %q: tool %q on server %q allowed by allow.tools pattern %q", agent, tool, server, p)
		}
	}
	return fmt.Sprintf("Agent %q: tool %q on server %q denied by default (no matching rule)", agent, tool, server)
}
