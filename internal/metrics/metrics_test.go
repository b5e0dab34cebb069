package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileLinearInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 30, percentile(sorted, 50), 0.001)
	assert.InDelta(t, 46, percentile(sorted, 90), 0.001)
	assert.InDelta(t, 50, percentile(sorted, 100), 0.001)
}

func TestCollectorRecordAndSummary(t *testing.T) {
	c := NewCollector()
	c.Record("agent-a", "execute_tool", 100, false)
	c.Record("agent-a", "execute_tool", 200, true)
	c.Record("agent-b", "list_servers", 5, false)

	summary := c.GetOperationSummary("execute_tool")
	assert.Equal(t, int64(2), summary.Count)
	assert.Equal(t, int64(1), summary.Errors)
	assert.InDelta(t, 0.5, summary.ErrorRate, 0.001)
	assert.InDelta(t, 150, summary.AvgLatencyMs, 0.001)

	agentSummary := c.GetAgentSummary("agent-a")
	assert.Contains(t, agentSummary, "execute_tool")
	assert.ElementsMatch(t, []string{"agent-a", "agent-b"}, c.GetAllAgents())
}

func TestCollectorEmptySummaryIsZeroNotPanicking(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, Summary{}, c.GetOperationSummary("never_called"))
}

func TestCollectorReset(t *testing.T) {
	c := NewCollector()
	c.Record("a", "op", 1, false)
	c.Reset()
	assert.Empty(t, c.GetAllAgents())
	assert.Equal(t, Summary{}, c.GetOperationSummary("op"))
}
