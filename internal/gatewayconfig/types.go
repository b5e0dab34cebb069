// Package gatewayconfig loads, validates, and env-substitutes the gateway's
// two configuration files: the MCP server descriptor set and the per-agent
// policy rules. Both entry points are re-entrant and side-effect-free;
// nothing here mutates global state.
package gatewayconfig

import "reflect"

// Transport names the downstream connection kind for a server descriptor.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// ServerDescriptor is a tagged variant: exactly one of the Stdio or HTTP
// field groups is populated, selected by Transport.
type ServerDescriptor struct {
	Name        string
	Transport   Transport
	Description string

	// Stdio fields.
	Command string
	Args    []string
	Env     map[string]string

	// HTTP fields.
	URL     string
	Headers map[string]string
}

// Equal reports whether two descriptors are field-for-field identical,
// the test the Downstream Connection Manager uses to decide whether a
// server's client survives a reload unchanged.
func (d ServerDescriptor) Equal(other ServerDescriptor) bool {
	if d.Name != other.Name || d.Transport != other.Transport || d.Description != other.Description {
		return false
	}
	if d.Command != other.Command || d.URL != other.URL {
		return false
	}
	if !reflect.DeepEqual(d.Args, other.Args) {
		return false
	}
	if !reflect.DeepEqual(d.Env, other.Env) {
		return false
	}
	if !reflect.DeepEqual(d.Headers, other.Headers) {
		return false
	}
	return true
}

// MCPConfig is the set of named downstream server descriptors.
type MCPConfig struct {
	Servers map[string]ServerDescriptor
}

// ServerNames returns the configured server names. Order is not significant.
func (c *MCPConfig) ServerNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	return names
}

// PolicySection is one side (allow or deny) of an agent's rule set.
type PolicySection struct {
	Servers []string
	Tools   map[string][]string
}

// AgentRule is the allow/deny pair configured for a single agent id.
type AgentRule struct {
	Allow PolicySection
	Deny  PolicySection
}

// Defaults holds gateway-wide policy defaults.
type Defaults struct {
	DenyOnMissingAgent bool
}

// Rules is the fully parsed and validated policy rule set.
type Rules struct {
	Agents   map[string]AgentRule
	Defaults Defaults
}
