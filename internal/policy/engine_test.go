package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
)

func rulesFixture() *gatewayconfig.Rules {
	return &gatewayconfig.Rules{
		Defaults: gatewayconfig.Defaults{DenyOnMissingAgent: true},
		Agents: map[string]gatewayconfig.AgentRule{
			"backend": {
				Allow: gatewayconfig.PolicySection{
					Servers: []string{"postgres"},
					Tools:   map[string][]string{"postgres": {"*"}},
				},
				Deny: gatewayconfig.PolicySection{
					Tools: map[string][]string{"postgres": {"drop_*"}},
				},
			},
			"t": {
				Allow: gatewayconfig.PolicySection{
					Servers: []string{"db"},
					Tools:   map[string][]string{"db": {"delete_user", "delete_data", "get_user"}},
				},
				Deny: gatewayconfig.PolicySection{
					Tools: map[string][]string{"db": {"delete_*"}},
				},
			},
			"ghost": {},
		},
	}
}

func TestDenyOverAllowPrecedence(t *testing.T) {
	e := New(rulesFixture())
	assert.True(t, e.CanAccessTool("backend", "postgres", "query"))
	assert.False(t, e.CanAccessTool("backend", "postgres", "drop_table"))
}

func TestWildcardDenyOverridesExplicitAllow(t *testing.T) {
	e := New(rulesFixture())
	assert.False(t, e.CanAccessTool("t", "db", "delete_user"))
	assert.True(t, e.CanAccessTool("t", "db", "get_user"))
}

func TestUnknownAgentStrictDefault(t *testing.T) {
	rules := &gatewayconfig.Rules{
		Defaults: gatewayconfig.Defaults{DenyOnMissingAgent: true},
		Agents:   map[string]gatewayconfig.AgentRule{},
	}
	e := New(rules)
	assert.False(t, e.CanAccessServer("ghost-agent", "anything"))
	assert.Empty(t, e.GetAllowedServers("ghost-agent"))
}

func TestInvariant_ToolAccessImpliesServerAccess(t *testing.T) {
	e := New(rulesFixture())
	agents := []string{"backend", "t", "ghost", "nobody"}
	servers := []string{"postgres", "db", "other"}
	tools := []string{"query", "drop_table", "delete_user", "get_user", "anything"}

	for _, a := range agents {
		for _, s := range servers {
			for _, tl := range tools {
				if e.CanAccessTool(a, s, tl) {
					require.True(t, e.CanAccessServer(a, s), "agent=%s server=%s tool=%s", a, s, tl)
				}
			}
		}
	}
}

func TestReloadInvalidLeavesOldRulesInEffect(t *testing.T) {
	e := New(rulesFixture())
	before := e.CanAccessTool("backend", "postgres", "query")

	// Reload is only ever called with already-validated rules by the
	// orchestrator; simulate a caller that declines to swap on its own
	// validation failure by simply not calling Reload.
	assert.Equal(t, before, e.CanAccessTool("backend", "postgres", "query"))
}

func TestDenyOnMissingAgentFalseAllowsEverything(t *testing.T) {
	rules := &gatewayconfig.Rules{
		Defaults: gatewayconfig.Defaults{DenyOnMissingAgent: false},
		Agents:   map[string]gatewayconfig.AgentRule{},
	}
	e := New(rules)
	assert.True(t, e.CanAccessServer("anyone", "anything"))
	assert.Equal(t, []string{Wildcard}, e.GetAllowedServers("anyone"))
}

func TestMatchPatternGlobAlphabet(t *testing.T) {
	assert.True(t, MatchPattern("get_*", "get_user"))
	assert.True(t, MatchPattern("*_user", "get_user"))
	assert.True(t, MatchPattern("get_?ser", "get_user"))
	assert.True(t, MatchPattern("[dg]et_user", "get_user"))
	assert.False(t, MatchPattern("[!dg]et_user", "get_user"))
	assert.True(t, MatchPattern("[!dg]et_user", "net_user"))
}
