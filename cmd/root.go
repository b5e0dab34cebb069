package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/agent-mcp-gateway/internal/gatewayserver"
	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

// Exit codes for the gateway CLI. The spec collapses every failure mode
// (config errors, runtime startup failures) into a single nonzero code;
// only clean shutdown returns success.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

var (
	debugFlag bool
	initFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "agent-mcp-gateway",
	Short: "Policy-enforcing proxy for the Model Context Protocol",
	Long: `agent-mcp-gateway fronts many downstream MCP servers behind a single
stdio endpoint, enforcing a per-agent allow/deny policy and exposing four
virtual tools: list_servers, get_server_tools, execute_tool, and (in debug
mode) get_gateway_status.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if initFlag {
			return runInit(cmd)
		}
		return gatewayserver.Run(cmd.Context(), gatewayserver.Options{Debug: debugFlag})
	},
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the CLI entry point, called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agent-mcp-gateway version %s\n" .Version}}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error("gateway", err, "agent-mcp-gateway exited with an error")
		os.Exit(getExitCode(err))
	}
}

// getExitCode collapses every error kind to the spec's two-code surface:
// 0 for success, 1 for any configuration or runtime failure. The error's
// kind is not inspected; Execute logs the error text before exiting.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	return ExitCodeError
}

func init() {
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "enable debug mode (registers get_gateway_status)")
	rootCmd.Flags().BoolVar(&initFlag, "init", false, "scaffold an example configuration directory and exit")
}
