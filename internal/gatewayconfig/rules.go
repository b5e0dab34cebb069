package gatewayconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var agentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// LoadRules reads, parses, and validates the gateway rules file at path. No
// environment substitution is performed on this file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &NotFoundError{Message: fmt.Sprintf("Gateway rules file not found: %s", path)}
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidJSONError{Message: fmt.Sprintf("Gateway rules file is not valid JSON: %s: %v", path, err)}
	}

	return validateRules(raw)
}

func validateRules(raw interface{}) (*Rules, error) {
	top, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("Gateway rules must be a JSON object, got %T", raw)}
	}

	rules := &Rules{
		Agents:   make(map[string]AgentRule),
		Defaults: Defaults{DenyOnMissingAgent: true},
	}

	if rawDefaults, ok := top["defaults"]; ok {
		defaultsObj, ok := rawDefaults.(map[string]interface{})
		if !ok {
			return nil, &InvalidSchemaError{Message: fmt.Sprintf("defaults must be an object, got %T", rawDefaults)}
		}
		if rawDeny, ok := defaultsObj["deny_on_missing_agent"]; ok {
			denyBool, ok := rawDeny.(bool)
			if !ok {
				return nil, &InvalidSchemaError{Message: fmt.Sprintf("defaults.deny_on_missing_agent must be a boolean, got %T", rawDeny)}
			}
			rules.Defaults.DenyOnMissingAgent = denyBool
		}
	}

	if rawAgents, ok := top["agents"]; ok {
		agentsObj, ok := rawAgents.(map[string]interface{})
		if !ok {
			return nil, &InvalidSchemaError{Message: fmt.Sprintf("agents must be an object, got %T", rawAgents)}
		}
		for agentID, rawAgent := range agentsObj {
			if !agentIDPattern.MatchString(agentID) {
				return nil, &InvalidSchemaError{Message: fmt.Sprintf("Agent ID %q contains invalid characters. Only alphanumeric, underscore, dot, and hyphen allowed.", agentID)}
			}
			agentObj, ok := rawAgent.(map[string]interface{})
			if !ok {
				return nil, &InvalidSchemaError{Message: fmt.Sprintf("Agent %q configuration must be an object, got %T", agentID, rawAgent)}
			}

			rule := AgentRule{}
			if rawAllow, ok := agentObj["allow"]; ok {
				section, err := validateSection(agentID, "allow", rawAllow)
				if err != nil {
					return nil, err
				}
				rule.Allow = section
			}
			if rawDeny, ok := agentObj["deny"]; ok {
				section, err := validateSection(agentID, "deny", rawDeny)
				if err != nil {
					return nil, err
				}
				rule.Deny = section
			}
			rules.Agents[agentID] = rule
		}
	}

	return rules, nil
}

func validateSection(agentID, sectionName string, raw interface{}) (PolicySection, error) {
	section := PolicySection{Tools: make(map[string][]string)}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return section, &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s must be an object, got %T", agentID, sectionName, raw)}
	}

	if rawServers, ok := obj["servers"]; ok {
		servers, ok := rawServers.([]interface{})
		if !ok {
			return section, &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.servers must be an array, got %T", agentID, sectionName, rawServers)}
		}
		for i, item := range servers {
			pattern, ok := item.(string)
			if !ok {
				return section, &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.servers[%d] must be a string, got %T", agentID, sectionName, i, item)}
			}
			if err := validateServerPattern(agentID, sectionName, i, pattern); err != nil {
				return section, err
			}
			section.Servers = append(section.Servers, pattern)
		}
	}

	if rawTools, ok := obj["tools"]; ok {
		toolsObj, ok := rawTools.(map[string]interface{})
		if !ok {
			return section, &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.tools must be an object, got %T", agentID, sectionName, rawTools)}
		}
		for serverName, rawPatterns := range toolsObj {
			patterns, ok := rawPatterns.([]interface{})
			if !ok {
				return section, &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.tools[%q] must be an array, got %T", agentID, sectionName, serverName, rawPatterns)}
			}
			list := make([]string, 0, len(patterns))
			for i, item := range patterns {
				pattern, ok := item.(string)
				if !ok {
					return section, &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.tools[%q][%d] must be a string, got %T", agentID, sectionName, serverName, i, item)}
				}
				if err := validateToolPattern(agentID, sectionName, serverName, i, pattern); err != nil {
					return section, err
				}
				list = append(list, pattern)
			}
			section.Tools[serverName] = list
		}
	}

	return section, nil
}

// validateServerPattern enforces that a server-name pattern is either a
// literal name or the bare wildcard, never a wildcard embedded in a larger
// pattern.
func validateServerPattern(agentID, sectionName string, index int, pattern string) error {
	if !strings.Contains(pattern, "*") {
		return nil
	}
	if pattern != "*" {
		return &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.servers[%d]: wildcard \"*\" can only be used alone, not in patterns", agentID, sectionName, index)}
	}
	return nil
}

// validateToolPattern enforces that a tool pattern contains at most one "*",
// and if present it sits at the start, the end, or is the whole pattern.
func validateToolPattern(agentID, sectionName, serverName string, index int, pattern string) error {
	count := strings.Count(pattern, "*")
	if count == 0 {
		return nil
	}
	if count > 1 {
		return &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.tools[%q][%d]: pattern %q contains multiple wildcards - only one allowed", agentID, sectionName, serverName, index, pattern)}
	}
	if pattern == "*" || strings.HasPrefix(pattern, "*") || strings.HasSuffix(pattern, "*") {
		return nil
	}
	return &InvalidSchemaError{Message: fmt.Sprintf("Agent %q %s.tools[%q][%d]: wildcard in pattern %q must be at start, end, or alone", agentID, sectionName, serverName, index, pattern)}
}
