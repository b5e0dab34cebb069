// Package gatewayserver wires the config loader, policy engine, downstream
// connection manager, audit sink, metrics collector, config watcher, and
// reload orchestrator into a single running mcp-go stdio server exposing
// the gateway's four virtual tools.
package gatewayserver

import (
	"context"
	"fmt"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/agent-mcp-gateway/internal/audit"
	"github.com/giantswarm/agent-mcp-gateway/internal/downstream"
	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayconfig"
	"github.com/giantswarm/agent-mcp-gateway/internal/gatewaytools"
	"github.com/giantswarm/agent-mcp-gateway/internal/metrics"
	"github.com/giantswarm/agent-mcp-gateway/internal/policy"
	"github.com/giantswarm/agent-mcp-gateway/internal/reload"
	"github.com/giantswarm/agent-mcp-gateway/internal/watcher"
	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

const (
	serverName    = "agent-mcp-gateway"
	serverVersion = "0.1.0"
	watchDebounce = 300 * time.Millisecond
)

// Options configures one Run invocation.
type Options struct {
	Debug bool
}

// State holds every subsystem the gateway wires together for the lifetime
// of one server run. It is constructed once in Run and threaded explicitly
// into gatewaytools.Deps rather than held in package-level globals.
type State struct {
	Policy      *policy.Engine
	Connections *downstream.Manager
	Metrics     *metrics.Collector
	Audit       *audit.Sink
	Reload      *reload.Orchestrator
	Watcher     *watcher.Watcher
}

// Run loads configuration, builds the gateway's subsystems, registers the
// virtual tools, and serves the MCP protocol over stdio until ctx is
// canceled or the stdio stream closes. A configuration error at startup is
// always fatal, per the gateway's error-handling design.
func Run(ctx context.Context, opts Options) error {
	mcpPath := gatewayconfig.MCPConfigPath()
	rulesPath := gatewayconfig.RulesPath()
	auditPath := gatewayconfig.AuditLogPath()
	debug := opts.Debug || gatewayconfig.DebugEnabled()

	logLevel := logging.LevelInfo
	if debug {
		logLevel = logging.LevelDebug
	}
	logging.InitForCLI(logLevel, os.Stderr)

	if defaultAgent := gatewayconfig.DefaultAgent(); defaultAgent != "" {
		logging.Info("gateway", "GATEWAY_DEFAULT_AGENT set to %q (log-only, no fallback effect)", defaultAgent)
	}

	mcpConfig, rules, warnings, err := gatewayconfig.ReloadConfigs(mcpPath, rulesPath)
	if err != nil {
		return fmt.Errorf("failed to load gateway configuration: %w", err)
	}
	for _, w := range warnings {
		logging.Warn("gateway", "configuration warning: %s", w)
	}

	state := &State{
		Policy:      policy.New(rules),
		Connections: downstream.NewManager(),
		Metrics:     metrics.NewCollector(),
		Audit:       audit.NewSink(auditPath),
	}
	state.Connections.InitializeConnections(mcpConfig)
	state.Reload = reload.New(mcpPath, rulesPath, state.Policy, state.Connections)

	w, err := watcher.New(mcpPath, rulesPath, state.Reload.OnMCPConfigChanged, state.Reload.OnRulesChanged, watchDebounce)
	if err != nil {
		return fmt.Errorf("failed to construct config watcher: %w", err)
	}
	state.Watcher = w
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer w.Stop()
	defer state.Connections.CloseAllConnections()
	defer state.Audit.Close()

	deps := &gatewaytools.Deps{
		Policy:        state.Policy,
		Connections:   state.Connections,
		Metrics:       state.Metrics,
		Audit:         state.Audit,
		Reload:        state.Reload,
		MCPConfigPath: mcpPath,
		RulesPath:     rulesPath,
		AuditLogPath:  auditPath,
	}

	srv := mcpserver.NewMCPServer(
		serverName,
		serverVersion,
		mcpserver.WithToolCapabilities(false),
	)
	srv.AddTools(gatewaytools.RegisterTools(deps, debug)...)

	toolCount := 3
	if debug {
		toolCount = 4
	}
	logging.Info("gateway", "starting %s v%s with %d gateway tools (%d downstream servers configured)",
		serverName, serverVersion, toolCount, len(mcpConfig.Servers))

	stdioServer := mcpserver.NewStdioServer(srv)
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("gateway server stopped: %w", err)
	}
	return nil
}
