package gatewayconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadMCPConfig reads, parses, env-substitutes, and validates the MCP server
// configuration file at path. Environment substitution runs over every
// string in the decoded document first; the substituted document is then
// validated.
func LoadMCPConfig(path string) (*MCPConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Message: fmt.Sprintf("MCP server configuration file not found: %s", path)}
		}
		return nil, &NotFoundError{Message: fmt.Sprintf("MCP server configuration file not found: %s", path)}
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidJSONError{Message: fmt.Sprintf("MCP server configuration is not valid JSON: %s: %v", path, err)}
	}

	substituted, err := substituteEnvVars(raw)
	if err != nil {
		return nil, err
	}

	return validateMCPConfig(substituted)
}

func validateMCPConfig(raw interface{}) (*MCPConfig, error) {
	top, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("MCP server configuration must be a JSON object, got %T", raw)}
	}

	rawServers, ok := top["mcpServers"]
	if !ok {
		rawServers = map[string]interface{}{}
	}
	serversObj, ok := rawServers.(map[string]interface{})
	if !ok {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("mcpServers must be an object, got %T", rawServers)}
	}

	config := &MCPConfig{Servers: make(map[string]ServerDescriptor, len(serversObj))}

	for name, rawServer := range serversObj {
		serverObj, ok := rawServer.(map[string]interface{})
		if !ok {
			return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q configuration must be an object, got %T", name, rawServer)}
		}

		descriptor, err := validateServerDescriptor(name, serverObj)
		if err != nil {
			return nil, err
		}
		config.Servers[name] = *descriptor
	}

	return config, nil
}

func validateServerDescriptor(name string, obj map[string]interface{}) (*ServerDescriptor, error) {
	_, hasCommand := obj["command"]
	_, hasURL := obj["url"]

	if hasCommand && hasURL {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q cannot have both \"command\" (stdio) and \"url\" (HTTP) - specify one transport type only", name)}
	}
	if !hasCommand && !hasURL {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q must specify either \"command\" (stdio) or \"url\" (HTTP) transport", name)}
	}

	descriptor := &ServerDescriptor{Name: name}

	if desc, ok := obj["description"]; ok {
		s, ok := desc.(string)
		if !ok {
			return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: %q must be a %s, got %T", name, "description", "string", desc)}
		}
		descriptor.Description = s
	}

	if hasCommand {
		descriptor.Transport = TransportStdio
		command, ok := obj["command"].(string)
		if !ok {
			return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: %q must be a %s, got %T", name, "command", "string", obj["command"])}
		}
		descriptor.Command = command

		if rawArgs, ok := obj["args"]; ok {
			args, err := stringSlice(name, "args", rawArgs)
			if err != nil {
				return nil, err
			}
			descriptor.Args = args
		}

		if rawEnv, ok := obj["env"]; ok {
			env, err := stringMap(name, "env", rawEnv)
			if err != nil {
				return nil, err
			}
			descriptor.Env = env
		}
		return descriptor, nil
	}

	descriptor.Transport = TransportHTTP
	url, ok := obj["url"].(string)
	if !ok {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: %q must be a %s, got %T", name, "url", "string", obj["url"])}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: \"url\" must start with http:// or https://, got %q", name, url)}
	}
	descriptor.URL = url

	if rawHeaders, ok := obj["headers"]; ok {
		headers, err := stringMap(name, "headers", rawHeaders)
		if err != nil {
			return nil, err
		}
		descriptor.Headers = headers
	}

	return descriptor, nil
}

func stringSlice(serverName, field string, raw interface{}) ([]string, error) {
	rawList, ok := raw.([]interface{})
	if !ok {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: %q must be a %s, got %T", serverName, field, "array", raw)}
	}
	out := make([]string, 0, len(rawList))
	for _, item := range rawList {
		s, ok := item.(string)
		if !ok {
			return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: %q must be a %s, got %T", serverName, field, "array of strings", item)}
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(serverName, field string, raw interface{}) (map[string]string, error) {
	rawMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: %q must be a %s, got %T", serverName, field, "object", raw)}
	}
	out := make(map[string]string, len(rawMap))
	for key, val := range rawMap {
		s, ok := val.(string)
		if !ok {
			return nil, &InvalidSchemaError{Message: fmt.Sprintf("Server %q: %q must be a %s, got %T", serverName, field, "object of strings", val)}
		}
		out[key] = s
	}
	return out, nil
}
