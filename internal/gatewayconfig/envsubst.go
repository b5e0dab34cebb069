package gatewayconfig

import (
	"fmt"
	"os"
	"regexp"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars recursively walks a decoded JSON value, replacing every
// "${NAME}" occurrence in string values with the named environment
// variable's value. Numbers, booleans, nulls, and the shape of maps/slices
// are left untouched. Only string values are ever substituted.
func substituteEnvVars(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return substituteEnvVarsInString(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			substituted, err := substituteEnvVars(val)
			if err != nil {
				return nil, err
			}
			out[key] = substituted
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			substituted, err := substituteEnvVars(val)
			if err != nil {
				return nil, err
			}
			out[i] = substituted
		}
		return out, nil
	default:
		return value, nil
	}
}

func substituteEnvVarsInString(s string) (string, error) {
	var firstErr error
	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := envVarPattern.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			firstErr = &EnvVarMissingError{
				VarName: name,
				Message: fmt.Sprintf("Environment variable %q referenced in configuration but not set. Please set this variable before starting the gateway.", name),
			}
			return match
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
