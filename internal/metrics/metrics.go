// Package metrics aggregates per-operation and per-agent counters, latency
// percentiles, and error rates for completed gateway calls.
package metrics

import (
	"math"
	"sort"
	"sync"
)

// Summary is a point-in-time snapshot of one operation's recorded calls.
type Summary struct {
	Count        int64
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64
	ErrorRate    float64
	Errors       int64
}

// operationMetrics accumulates raw samples for one operation (or one
// (agent, operation) pair). Latency storage grows with the process
// lifetime; callers that need a hard cap can wrap Collector with their own
// reservoir sampler without changing this type's contract.
type operationMetrics struct {
	count          int64
	totalLatencyMs float64
	latenciesMs    []float64
	errors         int64
}

func (m *operationMetrics) record(latencyMs float64, isError bool) {
	m.count++
	m.totalLatencyMs += latencyMs
	m.latenciesMs = append(m.latenciesMs, latencyMs)
	if isError {
		m.errors++
	}
}

func (m *operationMetrics) summary() Summary {
	if m.count == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(m.latenciesMs))
	copy(sorted, m.latenciesMs)
	sort.Float64s(sorted)

	return Summary{
		Count:        m.count,
		AvgLatencyMs: round2(m.totalLatencyMs / float64(m.count)),
		P50LatencyMs: round2(percentile(sorted, 50)),
		P95LatencyMs: round2(percentile(sorted, 95)),
		P99LatencyMs: round2(percentile(sorted, 99)),
		ErrorRate:    round2(float64(m.errors) / float64(m.count)),
		Errors:       m.errors,
	}
}

// percentile computes the pct-th percentile of an already-sorted slice via
// linear interpolation between the two bracketing samples.
func percentile(sorted []float64, pct float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	k := float64(n-1) * (pct / 100)
	f := math.Floor(k)
	c := f + 1
	if int(c) >= n {
		return sorted[n-1]
	}
	d0 := sorted[int(f)] * (c - k)
	d1 := sorted[int(c)] * (k - f)
	return d0 + d1
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Collector is the thread-safe metrics store for the whole gateway process.
type Collector struct {
	mu             sync.Mutex
	byOperation    map[string]*operationMetrics
	byAgentAndOp   map[string]map[string]*operationMetrics
}

// NewCollector constructs an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		byOperation:  make(map[string]*operationMetrics),
		byAgentAndOp: make(map[string]map[string]*operationMetrics),
	}
}

// Record adds one completed call's latency and outcome to both the global
// per-operation bucket and the per-(agent, operation) bucket.
func (c *Collector) Record(agent, operation string, latencyMs float64, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, ok := c.byOperation[operation]
	if !ok {
		op = &operationMetrics{}
		c.byOperation[operation] = op
	}
	op.record(latencyMs, isError)

	agentOps, ok := c.byAgentAndOp[agent]
	if !ok {
		agentOps = make(map[string]*operationMetrics)
		c.byAgentAndOp[agent] = agentOps
	}
	agentOp, ok := agentOps[operation]
	if !ok {
		agentOp = &operationMetrics{}
		agentOps[operation] = agentOp
	}
	agentOp.record(latencyMs, isError)
}

// GetSummary returns the summary for every operation observed so far, keyed
// by operation name.
func (c *Collector) GetSummary() map[string]Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Summary, len(c.byOperation))
	for op, m := range c.byOperation {
		out[op] = m.summary()
	}
	return out
}

// GetOperationSummary returns the summary for a single operation.
func (c *Collector) GetOperationSummary(operation string) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byOperation[operation]
	if !ok {
		return Summary{}
	}
	return m.summary()
}

// GetAgentSummary returns, for a single agent, the summary of every
// operation that agent has invoked.
func (c *Collector) GetAgentSummary(agent string) map[string]Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	agentOps, ok := c.byAgentAndOp[agent]
	if !ok {
		return map[string]Summary{}
	}
	out := make(map[string]Summary, len(agentOps))
	for op, m := range agentOps {
		out[op] = m.summary()
	}
	return out
}

// GetAllAgents returns the agent ids that have recorded at least one call.
func (c *Collector) GetAllAgents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	agents := make([]string, 0, len(c.byAgentAndOp))
	for agent := range c.byAgentAndOp {
		agents = append(agents, agent)
	}
	return agents
}

// Reset clears all recorded metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byOperation = make(map[string]*operationMetrics)
	c.byAgentAndOp = make(map[string]map[string]*operationMetrics)
}
