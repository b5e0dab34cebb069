package gatewayconfig

import "fmt"

// CrossValidate checks every server name referenced by any agent rule
// against the MCP configuration's actual server set. Unknown references
// never fail validation — they are returned as human-readable warnings for
// the caller to log and surface via reload-status.
func CrossValidate(mcp *MCPConfig, rules *Rules) []string {
	if mcp == nil || rules == nil {
		return nil
	}

	var warnings []string
	for agentID, rule := range rules.Agents {
		warnings = append(warnings, checkServerRefs(mcp, agentID, "allow", rule.Allow)...)
		warnings = append(warnings, checkServerRefs(mcp, agentID, "deny", rule.Deny)...)
		warnings = append(warnings, checkToolServerRefs(mcp, agentID, "allow", rule.Allow)...)
		warnings = append(warnings, checkToolServerRefs(mcp, agentID, "deny", rule.Deny)...)
	}
	return warnings
}

func checkServerRefs(mcp *MCPConfig, agentID, sectionName string, section PolicySection) []string {
	var warnings []string
	for _, name := range section.Servers {
		if name == "*" {
			continue
		}
		if _, ok := mcp.Servers[name]; !ok {
			warnings = append(warnings, fmt.Sprintf("Agent %q %s.servers references undefined server %q", agentID, sectionName, name))
		}
	}
	return warnings
}

func checkToolServerRefs(mcp *MCPConfig, agentID, sectionName string, section PolicySection) []string {
	var warnings []string
	for serverName := range section.Tools {
		if serverName == "*" {
			continue
		}
		if _, ok := mcp.Servers[serverName]; !ok {
			warnings = append(warnings, fmt.Sprintf("Agent %q %s.tools references undefined server %q", agentID, sectionName, serverName))
		}
	}
	return warnings
}
