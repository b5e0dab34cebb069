package main

import "github.com/giantswarm/agent-mcp-gateway/cmd"

// version can be set during build with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
