package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Registration errors
const (
	// ErrCodeRegistrationConflict indicates both a value and a factory were given for one key.
	ErrCodeRegistrationConflict ErrorCode = "REGISTRATION_CONFLICT"
	// ErrCodeInvalidKey indicates a dependency key that is neither a type nor a function.
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"
)

// Resolution errors
const (
	// ErrCodeUnresolvable indicates a target that is neither a constructible type nor a function.
	ErrCodeUnresolvable ErrorCode = "UNRESOLVABLE_TARGET"
	// ErrCodeMissingImplementation indicates a contract requested without a binding.
	ErrCodeMissingImplementation ErrorCode = "MISSING_IMPLEMENTATION"
	// ErrCodeUnknownParameter indicates an override naming a parameter the target does not declare.
	ErrCodeUnknownParameter ErrorCode = "UNKNOWN_PARAMETER"
	// ErrCodeInvalidParameter indicates a malformed parameter declaration.
	ErrCodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
	// ErrCodeTypeMismatch indicates a value that cannot be assigned to its declared type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrCodeUnderResolved indicates parameters left unbound after resolution.
	ErrCodeUnderResolved ErrorCode = "UNDER_RESOLVED"
	// ErrCodeCircularDependency indicates a key that depends on itself.
	ErrCodeCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
)

// Collaborator errors
const (
	// ErrCodeSettingsLoad indicates an environment-backed settings leaf failed to load.
	ErrCodeSettingsLoad ErrorCode = "SETTINGS_LOAD"
	// ErrCodeInvalidInput indicates a struct failed validation.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal wraps a plain error raised by application code.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// resolutionCodes are raised by the resolver itself. Only these collect the
// chain of targets as they bubble up a dependency graph.
var resolutionCodes = map[ErrorCode]bool{
	ErrCodeUnresolvable:          true,
	ErrCodeMissingImplementation: true,
	ErrCodeUnknownParameter:      true,
	ErrCodeInvalidParameter:      true,
	ErrCodeTypeMismatch:          true,
	ErrCodeUnderResolved:         true,
	ErrCodeCircularDependency:    true,
	ErrCodeSettingsLoad:          true,
}

// IsResolutionCode returns true if the code is raised by dependency resolution.
func IsResolutionCode(code ErrorCode) bool {
	return resolutionCodes[code]
}
