package reload

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/agent-mcp-gateway/internal/downstream"
	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
	"github.com/giantswarm/agent-mcp-gateway/internal/policy"
)

const validMCPConfig = `{"mcpServers": {"echo": {"command": "echo"}}}`
const validRules = `{"agents": {"tester": {"allow": {"servers": ["*"], "tools": {"*": ["*"]}}}}}`
const invalidJSON = `{not json`

func writeTempConfigs(t *testing.T, mcpBody, rulesBody string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	mcpPath := filepath.Join(dir, "mcp-servers.json")
	rulesPath := filepath.Join(dir, "gateway-rules.json")
	require.NoError(t, os.WriteFile(mcpPath, []byte(mcpBody), 0o644))
	require.NoError(t, os.WriteFile(rulesPath, []byte(rulesBody), 0o644))
	return mcpPath, rulesPath
}

func newTestOrchestrator(t *testing.T, mcpBody, rulesBody string) (*Orchestrator, string, string) {
	t.Helper()
	mcpPath, rulesPath := writeTempConfigs(t, mcpBody, rulesBody)
	mcpConfig, rules, _, err := gatewayconfig.ReloadConfigs(mcpPath, rulesPath)
	require.NoError(t, err)

	p := policy.New(rules)
	c := downstream.NewManager()
	c.InitializeConnections(mcpConfig)

	return New(mcpPath, rulesPath, p, c), mcpPath, rulesPath
}

func TestReloadSuccessRecordsSuccessAndAdvancesAttemptCount(t *testing.T) {
	o, mcpPath, _ := newTestOrchestrator(t, validMCPConfig, validRules)

	o.OnMCPConfigChanged(mcpPath)

	status := o.Status()
	assert.Equal(t, 1, status.MCPConfig.AttemptCount)
	assert.Equal(t, 1, status.MCPConfig.SuccessCount)
	assert.Empty(t, status.MCPConfig.LastError)
	require.NotNil(t, status.MCPConfig.LastSuccess)
}

func TestReloadFailureLeavesOldStateAndRecordsError(t *testing.T) {
	o, mcpPath, _ := newTestOrchestrator(t, validMCPConfig, validRules)

	require.NoError(t, os.WriteFile(mcpPath, []byte(invalidJSON), 0o644))

	o.OnMCPConfigChanged(mcpPath)

	status := o.Status()
	assert.Equal(t, 1, status.MCPConfig.AttemptCount)
	assert.Equal(t, 0, status.MCPConfig.SuccessCount)
	assert.NotEmpty(t, status.MCPConfig.LastError)
	assert.Nil(t, status.MCPConfig.LastSuccess)
}

func TestOnRulesChangedTracksRulesFileIndependently(t *testing.T) {
	o, _, rulesPath := newTestOrchestrator(t, validMCPConfig, validRules)

	o.OnRulesChanged(rulesPath)

	status := o.Status()
	assert.Equal(t, 1, status.Rules.AttemptCount)
	assert.Equal(t, 1, status.Rules.SuccessCount)
	assert.Equal(t, 0, status.MCPConfig.AttemptCount)
}

func TestCheckConfigChangesDetectsMtimeAdvance(t *testing.T) {
	o, mcpPath, _ := newTestOrchestrator(t, validMCPConfig, validRules)

	o.CheckConfigChanges() // primes lastMCPMtime, no prior baseline means no reload fires yet
	assert.Equal(t, 0, o.Status().MCPConfig.AttemptCount)

	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(mcpPath, future, future))

	o.CheckConfigChanges()
	require.Eventually(t, func() bool {
		return o.Status().MCPConfig.AttemptCount == 1
	}, time.Second, 10*time.Millisecond, "expected mtime-poll fallback to trigger a reload attempt")
}
