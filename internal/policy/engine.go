package policy

import (
	"sort"
	"sync"

	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
)

// Wildcard is the sentinel returned by GetAllowedServers/GetAllowedTools
// when the policy grants access to every name rather than an explicit list.
const Wildcard = "*"

// Engine evaluates (agent, server, tool) authorization against the
// currently active rule set and supports atomically swapping in a new,
// already-validated rule set.
// The zero value is not usable; construct with New.
type Engine struct {
	mu    sync.RWMutex
	rules *gatewayconfig.Rules
}

// New constructs an Engine with an initial, already-validated rule set.
func New(rules *gatewayconfig.Rules) *Engine {
	return &Engine{rules: rules}
}

// CanAccessServer reports whether agent may access server at all.
func (e *Engine) CanAccessServer(agent, server string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rule, ok := e.rules.Agents[agent]
	if !ok {
		return !e.rules.Defaults.DenyOnMissingAgent
	}
	return canAccessServerLocked(rule, server)
}

func canAccessServerLocked(rule gatewayconfig.AgentRule, server string) bool {
	// 2a/2b: explicit and wildcard deny.
	for _, pattern := range rule.Deny.Servers {
		if pattern == server || pattern == Wildcard {
			return false
		}
	}
	for _, pattern := range rule.Deny.Servers {
		if pattern != Wildcard && MatchPattern(pattern, server) {
			return false
		}
	}
	// 2c/2d: explicit and wildcard allow.
	for _, pattern := range rule.Allow.Servers {
		if pattern == server || pattern == Wildcard {
			return true
		}
	}
	for _, pattern := range rule.Allow.Servers {
		if pattern != Wildcard && MatchPattern(pattern, server) {
			return true
		}
	}
	// 2e: default deny.
	return false
}

// CanAccessTool reports whether agent may invoke tool on server. Per
// invariant 1, a true result here implies CanAccessServer(agent, server)
// also holds, since tool access is only evaluated once server access is
// granted.
func (e *Engine) CanAccessTool(agent, server, tool string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rule, ok := e.rules.Agents[agent]
	if !ok {
		return !e.rules.Defaults.DenyOnMissingAgent
	}
	if !canAccessServerLocked(rule, server) {
		return false
	}
	return canAccessToolLocked(rule, server, tool)
}

func canAccessToolLocked(rule gatewayconfig.AgentRule, server, tool string) bool {
	denyExplicit, denyWildcard := partitionPatterns(toolPatterns(rule.Deny.Tools, server))
	allowExplicit, allowWildcard := partitionPatterns(toolPatterns(rule.Allow.Tools, server))

	for _, p := range denyExplicit {
		if p == tool {
			return false
		}
	}
	for _, p := range denyWildcard {
		if MatchPattern(p, tool) {
			return false
		}
	}
	for _, p := range allowExplicit {
		if p == tool {
			return true
		}
	}
	for _, p := range allowWildcard {
		if MatchPattern(p, tool) {
			return true
		}
	}
	return false
}

// toolPatterns returns the tool patterns listed for server together with
// those listed under the "*" server key, which apply to every server.
func toolPatterns(tools map[string][]string, server string) []string {
	if server == Wildcard {
		return tools[server]
	}
	return append(append([]string(nil), tools[server]...), tools[Wildcard]...)
}

// partitionPatterns splits a server's tool pattern list into explicit
// (no "*") and wildcard (contains "*") patterns, preserving order.
func partitionPatterns(patterns []string) (explicit, wildcard []string) {
	for _, p := range patterns {
		if containsWildcard(p) {
			wildcard = append(wildcard, p)
		} else {
			explicit = append(explicit, p)
		}
	}
	return explicit, wildcard
}

func containsWildcard(pattern string) bool {
	for _, r := range pattern {
		if r == '*' {
			return true
		}
	}
	return false
}

// GetAllowedServers returns the agent's allowed server names, or
// ([]string{Wildcard}) when allow.servers contains "*". Servers matching a
// deny entry are excluded from an explicit list; the Wildcard sentinel is
// returned as is, without deny entries applied to it.
func (e *Engine) GetAllowedServers(agent string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rule, ok := e.rules.Agents[agent]
	if !ok {
		if e.rules.Defaults.DenyOnMissingAgent {
			return nil
		}
		return []string{Wildcard}
	}

	for _, p := range rule.Allow.Servers {
		if p == Wildcard {
			return []string{Wildcard}
		}
	}

	var out []string
	for _, p := range rule.Allow.Servers {
		if canAccessServerLocked(rule, p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// GetAllowedTools returns the agent's allowed tool names for server, or
// ([]string{Wildcard}) when every non-denied tool is granted.
func (e *Engine) GetAllowedTools(agent, server string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rule, ok := e.rules.Agents[agent]
	if !ok {
		if e.rules.Defaults.DenyOnMissingAgent {
			return nil
		}
		return []string{Wildcard}
	}
	if !canAccessServerLocked(rule, server) {
		return nil
	}

	for _, p := range toolPatterns(rule.Allow.Tools, server) {
		if p == Wildcard {
			return []string{Wildcard}
		}
	}

	var out []string
	for _, p := range toolPatterns(rule.Allow.Tools, server) {
		if canAccessToolLocked(rule, server, p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Reload atomically swaps in newRules. It performs no validation of its own
// and never fails: callers pass rules already validated by
// gatewayconfig.LoadRules. No diff between the old and new rule sets is
// computed. In-flight readers always observe either the complete old or
// the complete new rule set, never a partial mix.
func (e *Engine) Reload(newRules *gatewayconfig.Rules) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = newRules
}

// Snapshot returns the currently active rules. Callers must treat the
// returned value as read-only; Engine itself never mutates an installed
// rule set, only replaces it wholesale.
func (e *Engine) Snapshot() *gatewayconfig.Rules {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

// AgentIDs returns the configured agent ids, sorted for deterministic
// diagnostics output.
func (e *Engine) AgentIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.rules.Agents))
	for id := range e.rules.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DenyOnMissingAgent reports the current default policy for unknown agents.
func (e *Engine) DenyOnMissingAgent() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules.Defaults.DenyOnMissingAgent
}
