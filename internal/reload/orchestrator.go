// Package reload bridges filesystem change notifications (or a mtime-poll
// fallback) to validated, atomic reloads of the policy engine and
// downstream connection manager, tracking attempt/success/error history for
// each of the two watched configuration files.
package reload

import (
	"os"
	"sync"

	"github.com/giantswarm/agent-mcp-gateway/internal/downstream"
	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
	"github.com/giantswarm/agent-mcp-gateway/internal/policy"
	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

// Orchestrator owns the reload-status record and applies validated config
// changes to the policy engine and connection manager. Because the MCP
// config and rules files cross-reference each other, every reload -
// regardless of which file changed - loads and validates both.
type Orchestrator struct {
	mcpPath   string
	rulesPath string
	policy    *policy.Engine
	conns     *downstream.Manager

	status *statusTracker

	mtimeMu       sync.Mutex
	lastMCPMtime  int64
	lastRulesMtime int64
}

// New constructs an Orchestrator for the given config file paths, already
// wired to the live policy engine and connection manager it reloads.
func New(mcpPath, rulesPath string, p *policy.Engine, c *downstream.Manager) *Orchestrator {
	return &Orchestrator{
		mcpPath:   mcpPath,
		rulesPath: rulesPath,
		policy:    p,
		conns:     c,
		status:    newStatusTracker(),
	}
}

// OnMCPConfigChanged is the watcher.Callback for the MCP server config
// file: on successful validation of both files it reloads the policy engine
// and the connection manager; on failure the old configuration keeps
// running and the error is recorded under the MCP config file's status.
func (o *Orchestrator) OnMCPConfigChanged(string) {
	o.reload(true)
}

// OnRulesChanged is the watcher.Callback for the gateway rules file: on
// successful validation of both files it reloads the policy engine and the
// connection manager; on failure the old rules keep running and the error
// is recorded under the rules file's status.
func (o *Orchestrator) OnRulesChanged(string) {
	o.reload(false)
}

func (o *Orchestrator) reload(triggeredByMCP bool) {
	o.status.mu.Lock()
	if triggeredByMCP {
		o.status.recordAttempt(&o.status.mcpConfig)
	} else {
		o.status.recordAttempt(&o.status.rules)
	}
	o.status.mu.Unlock()

	mcpConfig, rules, warnings, err := gatewayconfig.ReloadConfigs(o.mcpPath, o.rulesPath)
	if err != nil {
		logging.Error("reload", err, "configuration reload failed, keeping previous configuration in effect")
		o.status.mu.Lock()
		if triggeredByMCP {
			o.status.recordError(&o.status.mcpConfig, err.Error())
		} else {
			o.status.recordError(&o.status.rules, err.Error())
		}
		o.status.mu.Unlock()
		return
	}

	o.policy.Reload(rules)
	result := o.conns.Reload(mcpConfig)
	logging.Info("reload", "configuration reloaded: %d added, %d removed, %d changed, %d unchanged",
		len(result.Added), len(result.Removed), len(result.Changed), len(result.Unchanged))

	o.status.mu.Lock()
	if triggeredByMCP {
		o.status.recordSuccess(&o.status.mcpConfig, nil)
	} else {
		o.status.recordSuccess(&o.status.rules, warnings)
	}
	o.status.mu.Unlock()
}

// Status returns an immutable snapshot of both files' reload history, for
// get_gateway_status.
func (o *Orchestrator) Status() Status {
	return o.status.snapshot()
}

// CheckConfigChanges is the mtime-poll fallback for environments where the
// filesystem watcher does not fire (matching the original gateway's
// check_config_changes). Call opportunistically, e.g. once per virtual-tool
// invocation; it synthesizes the same reload callback any watched file's
// mtime has advanced since the last check.
func (o *Orchestrator) CheckConfigChanges() {
	o.mtimeMu.Lock()
	defer o.mtimeMu.Unlock()

	if mtime, ok := fileMtime(o.mcpPath); ok {
		if o.lastMCPMtime > 0 && mtime > o.lastMCPMtime {
			logging.Debug("reload", "detected MCP config change via mtime poll")
			go o.OnMCPConfigChanged(o.mcpPath)
		}
		o.lastMCPMtime = mtime
	}

	if mtime, ok := fileMtime(o.rulesPath); ok {
		if o.lastRulesMtime > 0 && mtime > o.lastRulesMtime {
			logging.Debug("reload", "detected gateway rules change via mtime poll")
			go o.OnRulesChanged(o.rulesPath)
		}
		o.lastRulesMtime = mtime
	}
}

func fileMtime(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.ModTime().UnixNano(), true
}
