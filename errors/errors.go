package errors

import (
	"fmt"
	"strings"
)

// AppError is the unified injectkit error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Path is the chain of targets that were being resolved, outermost first.
	Path []string `json:"path,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error renders "CODE: root -> branch -> leaf: message".
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	if len(e.Path) > 0 {
		b.WriteString(strings.Join(e.Path, " -> "))
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so sentinels
// such as ErrMissingImplementation match with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Within returns a copy of the error with segment prepended to its path.
// The receiver is left untouched because the same error value may surface
// through several branches of a graph.
func (e *AppError) Within(segment string) *AppError {
	cp := *e
	cp.Path = make([]string, 0, len(e.Path)+1)
	cp.Path = append(cp.Path, segment)
	cp.Path = append(cp.Path, e.Path...)
	return &cp
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Sentinels for errors.Is checks.
var (
	ErrRegistrationConflict  = New(ErrCodeRegistrationConflict, "registration conflict")
	ErrInvalidKey            = New(ErrCodeInvalidKey, "invalid key")
	ErrUnresolvable          = New(ErrCodeUnresolvable, "unresolvable target")
	ErrMissingImplementation = New(ErrCodeMissingImplementation, "missing implementation")
	ErrUnknownParameter      = New(ErrCodeUnknownParameter, "unknown parameter")
	ErrInvalidParameter      = New(ErrCodeInvalidParameter, "invalid parameter")
	ErrTypeMismatch          = New(ErrCodeTypeMismatch, "type mismatch")
	ErrUnderResolved         = New(ErrCodeUnderResolved, "under-resolved parameters")
	ErrCircularDependency    = New(ErrCodeCircularDependency, "circular dependency")
	ErrSettingsLoad          = New(ErrCodeSettingsLoad, "settings load failed")
	ErrInvalidInput          = New(ErrCodeInvalidInput, "invalid input")
)

// --- Common Error Constructors ---

// RegistrationConflict creates an error for a key registered with both a value and a factory.
func RegistrationConflict(key string) *AppError {
	return &AppError{
		Code:    ErrCodeRegistrationConflict,
		Message: fmt.Sprintf("can't decide whether to use factory or value for %s", key),
		Details: map[string]any{"key": key},
	}
}

// InvalidKey creates an error for a value that cannot act as a dependency key.
func InvalidKey(got string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidKey,
		Message: fmt.Sprintf("%s is not a type or a function", got),
		Details: map[string]any{"got": got},
	}
}

// Unresolvable creates an error for a target that cannot be constructed.
func Unresolvable(target, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeUnresolvable,
		Message: fmt.Sprintf("%s can't be resolved: %s", target, reason),
		Details: map[string]any{"target": target},
	}
}

// MissingImplementation creates an error for a contract with no binding.
func MissingImplementation(contract string) *AppError {
	return &AppError{
		Code:    ErrCodeMissingImplementation,
		Message: fmt.Sprintf("implementation for contract %s is not defined", contract),
		Details: map[string]any{"contract": contract},
	}
}

// UnknownParameter creates an error for an override the target does not declare.
func UnknownParameter(name, target string) *AppError {
	return &AppError{
		Code:    ErrCodeUnknownParameter,
		Message: fmt.Sprintf("parameter %s is not part of %s's signature", name, target),
		Details: map[string]any{"parameter": name, "target": target},
	}
}

// InvalidParameter creates an error for a malformed parameter declaration.
func InvalidParameter(name, target, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidParameter,
		Message: fmt.Sprintf("parameter %s of %s is invalid: %s", name, target, reason),
		Details: map[string]any{"parameter": name, "target": target},
	}
}

// TypeMismatch creates an error for a value not assignable to the expected type.
func TypeMismatch(name, expected, got string) *AppError {
	return &AppError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("%s expects %s, got %s", name, expected, got),
		Details: map[string]any{"name": name, "expected": expected, "got": got},
	}
}

// UnderResolved creates an error for parameters left unbound after resolution.
func UnderResolved(target string, missing []string) *AppError {
	return &AppError{
		Code:    ErrCodeUnderResolved,
		Message: fmt.Sprintf("can't resolve %d parameter(s) for %s: %s", len(missing), target, strings.Join(missing, ", ")),
		Details: map[string]any{"target": target, "missing": len(missing), "parameters": missing},
	}
}

// CircularDependency creates an error for a key found again in its own resolution chain.
func CircularDependency(chain []string) *AppError {
	return &AppError{
		Code:    ErrCodeCircularDependency,
		Message: fmt.Sprintf("circular dependency detected: %s", strings.Join(chain, " -> ")),
		Details: map[string]any{"chain": chain},
	}
}

// SettingsLoad creates an error for a settings leaf that failed to load.
func SettingsLoad(target string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeSettingsLoad,
		Message: fmt.Sprintf("failed to load settings %s", target),
		Details: map[string]any{"target": target},
		Cause:   cause,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// Internal wraps err as an INTERNAL_ERROR. An AppError is returned as is.
func Internal(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return &AppError{Code: ErrCodeInternal, Message: "internal error", Cause: err}
}
