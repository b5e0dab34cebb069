package downstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
)

func TestGetClientReportsNotFoundForUnknownServer(t *testing.T) {
	m := NewManager()
	m.InitializeConnections(&gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{}})

	_, err := m.GetClient("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server not found")
}

func TestGetClientReportsUnconnectedBeforeFirstUse(t *testing.T) {
	m := NewManager()
	m.InitializeConnections(&gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{
		"echo": {Name: "echo", Transport: gatewayconfig.TransportStdio, Command: "echo"},
	}})

	connected, err := m.GetClient("echo")
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestReloadPreservesUnchangedDescriptorIdentity(t *testing.T) {
	m := NewManager()
	desc := gatewayconfig.ServerDescriptor{Name: "echo", Transport: gatewayconfig.TransportStdio, Command: "echo"}
	m.InitializeConnections(&gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{"echo": desc}})

	before := m.entries["echo"]
	before.client = &client{} // simulate a live connection without dialing

	result := m.Reload(&gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{"echo": desc}})

	assert.Equal(t, []string{"echo"}, result.Unchanged)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Changed)
	assert.Empty(t, result.Removed)
	assert.Same(t, before, m.entries["echo"], "unchanged descriptor must keep its existing entry, not rebuild")
}

func TestReloadPartitionsAddedChangedRemovedAndUnchanged(t *testing.T) {
	m := NewManager()
	m.InitializeConnections(&gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{
		"keep":   {Name: "keep", Transport: gatewayconfig.TransportStdio, Command: "keep"},
		"change": {Name: "change", Transport: gatewayconfig.TransportStdio, Command: "old"},
		"drop":   {Name: "drop", Transport: gatewayconfig.TransportStdio, Command: "drop"},
	}})

	result := m.Reload(&gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{
		"keep":   {Name: "keep", Transport: gatewayconfig.TransportStdio, Command: "keep"},
		"change": {Name: "change", Transport: gatewayconfig.TransportStdio, Command: "new"},
		"added":  {Name: "added", Transport: gatewayconfig.TransportStdio, Command: "added"},
	}})

	assert.ElementsMatch(t, []string{"keep"}, result.Unchanged)
	assert.ElementsMatch(t, []string{"change"}, result.Changed)
	assert.ElementsMatch(t, []string{"added"}, result.Added)
	assert.ElementsMatch(t, []string{"drop"}, result.Removed)

	_, hasDrop := m.entries["drop"]
	assert.False(t, hasDrop)
	require.Contains(t, m.entries, "change")
	assert.Equal(t, "new", m.entries["change"].descriptor.Command)
}

func TestGetAllServersReflectsCurrentConfig(t *testing.T) {
	m := NewManager()
	m.InitializeConnections(&gatewayconfig.MCPConfig{Servers: map[string]gatewayconfig.ServerDescriptor{
		"a": {Name: "a", Transport: gatewayconfig.TransportStdio, Command: "a"},
		"b": {Name: "b", Transport: gatewayconfig.TransportStdio, Command: "b"},
	}})
	assert.ElementsMatch(t, []string{"a", "b"}, m.GetAllServers())
}

func TestCaseInsensitiveAuthorizationHeaderDisablesOAuth(t *testing.T) {
	_, found := caseInsensitiveLookup(map[string]string{"authorization": "Bearer x"}, "Authorization")
	assert.True(t, found)

	_, notFound := caseInsensitiveLookup(map[string]string{"X-Api-Key": "x"}, "Authorization")
	assert.False(t, notFound)
}
