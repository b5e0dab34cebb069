package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const exampleMCPConfig = `{
  "mcpServers": {
    "example-stdio": {
      "command": "npx",
      "args": ["-y", "@modelcontextprotocol/server-everything"],
      "env": {}
    },
    "example-http": {
      "url": "https://example.com/mcp",
      "headers": {}
    }
  }
}
`

const exampleGatewayRules = `{
  "agents": {
    "example-agent": {
      "allow": {
        "servers": ["*"],
        "tools": {
          "*": ["*"]
        }
      },
      "deny": {
        "servers": [],
        "tools": {}
      }
    }
  },
  "defaults": {
    "deny_on_missing_agent": true
  }
}
`

// runInit scaffolds ~/.config/agent-mcp-gateway/ with example mcp-servers.json
// and gateway-rules.json files, prompting before overwriting an existing
// directory.
func runInit(cmd *cobra.Command) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to determine home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "agent-mcp-gateway")

	if info, err := os.Stat(configDir); err == nil && info.IsDir() {
		fmt.Fprintf(cmd.OutOrStdout(), "Config directory already exists at %s. Overwrite? (y/N): ", configDir)
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(line)) != "y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Initialization cancelled.")
			return nil
		}
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config directory: %s\n", configDir)

	mcpPath := filepath.Join(configDir, "mcp-servers.json")
	if err := os.WriteFile(mcpPath, []byte(exampleMCPConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", mcpPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", mcpPath)

	rulesPath := filepath.Join(configDir, "gateway-rules.json")
	if err := os.WriteFile(rulesPath, []byte(exampleGatewayRules), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rulesPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", rulesPath)

	fmt.Fprintf(cmd.OutOrStdout(), "\nConfiguration initialized. Edit configs at: %s\n", configDir)
	fmt.Fprintf(cmd.OutOrStdout(), "\nTo use these configs, run:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  GATEWAY_MCP_CONFIG=%s \\\n", mcpPath)
	fmt.Fprintf(cmd.OutOrStdout(), "  GATEWAY_RULES=%s \\\n", rulesPath)
	fmt.Fprintf(cmd.OutOrStdout(), "  agent-mcp-gateway\n")

	return nil
}
