package gatewayconfig

// NotFoundError reports a missing configuration file.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// InvalidJSONError reports a file that failed to parse as JSON.
type InvalidJSONError struct {
	Message string
}

func (e *InvalidJSONError) Error() string { return e.Message }

// InvalidSchemaError reports a structurally or semantically invalid document
// (wrong field type, mutually-exclusive transport fields, bad wildcard
// position, unknown-character agent id, and so on).
type InvalidSchemaError struct {
	Message string
}

func (e *InvalidSchemaError) Error() string { return e.Message }

// EnvVarMissingError reports a "${VAR}" placeholder whose environment
// variable is not set.
type EnvVarMissingError struct {
	Message string
	VarName string
}

func (e *EnvVarMissingError) Error() string { return e.Message }
