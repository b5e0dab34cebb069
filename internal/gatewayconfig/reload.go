package gatewayconfig

// ReloadConfigs loads and validates both configuration files. Because the
// rules file references server names from the MCP config, the two are
// always loaded together: a change to either file requires re-validating
// both. Cross-validation warnings are returned alongside a successful load
// and never turn a load into a failure.
func ReloadConfigs(mcpPath, rulesPath string) (*MCPConfig, *Rules, []string, error) {
	mcp, err := LoadMCPConfig(mcpPath)
	if err != nil {
		return nil, nil, nil, err
	}

	rules, err := LoadRules(rulesPath)
	if err != nil {
		return nil, nil, nil, err
	}

	warnings := CrossValidate(mcp, rules)
	return mcp, rules, warnings, nil
}
