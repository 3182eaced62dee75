package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Configuration errors (CONFIG-001 to CONFIG-099)
	// These are the only errors that surface as hard failures to callers;
	// everything else in the engine is converted into a result value.
	ErrCodeConfigSuiteNotFound   ErrorCode = "CONFIG-001"
	ErrCodeConfigSuiteInvalid    ErrorCode = "CONFIG-002"
	ErrCodeConfigSuiteUnmarshal  ErrorCode = "CONFIG-003"
	ErrCodeConfigCodeSpec        ErrorCode = "CONFIG-004"
	ErrCodeConfigBatchSize       ErrorCode = "CONFIG-005"
	ErrCodeConfigUnknownStrategy ErrorCode = "CONFIG-006"
	ErrCodeConfigUnknownLanguage ErrorCode = "CONFIG-007"
	ErrCodeConfigTimeout         ErrorCode = "CONFIG-008"

	// Sandbox errors (SANDBOX-001 to SANDBOX-099)
	ErrCodeSandboxInterpreter ErrorCode = "SANDBOX-001"
	ErrCodeSandboxHarness     ErrorCode = "SANDBOX-002"
	ErrCodeSandboxTempFile    ErrorCode = "SANDBOX-003"

	// Scheduler errors (SCHED-001 to SCHED-099)
	ErrCodeSchedNoTasks     ErrorCode = "SCHED-001"
	ErrCodeSchedDuplicateID ErrorCode = "SCHED-002"
	ErrCodeSchedUnknownDep  ErrorCode = "SCHED-003"
	ErrCodeSchedCyclicDep   ErrorCode = "SCHED-004"

	// Pipeline errors (PIPELINE-001 to PIPELINE-099)
	ErrCodePipelineUnknownStepKind ErrorCode = "PIPELINE-001"
	ErrCodePipelineMissingKey      ErrorCode = "PIPELINE-002"
	ErrCodePipelineKeyOverwrite    ErrorCode = "PIPELINE-003"
	ErrCodePipelineNoInvoker       ErrorCode = "PIPELINE-004"
	ErrCodePipelineStepInvalid     ErrorCode = "PIPELINE-005"

	// Agent bridge errors (AGENT-001 to AGENT-099)
	ErrCodeAgentNotFound ErrorCode = "AGENT-001"
	ErrCodeAgentFailed   ErrorCode = "AGENT-002"
	ErrCodeAgentResponse ErrorCode = "AGENT-003"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
)

// FlowError represents an enhanced error with code, suggestions, and documentation
type FlowError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *FlowError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FlowError) Unwrap() error {
	return e.Cause
}

// New creates a new FlowError
func New(code ErrorCode, message string) *FlowError {
	return &FlowError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new FlowError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *FlowError {
	return &FlowError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *FlowError) WithSuggestion(suggestion string) *FlowError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *FlowError) WithSuggestions(suggestions ...string) *FlowError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the error code carried by err, or "" when err is not a FlowError.
func CodeOf(err error) ErrorCode {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsConfiguration reports whether err belongs to the configuration taxonomy
// (the CONFIG- code range). Other error classes are never raised by the
// engine; they are converted into result values at the fault boundary.
func IsConfiguration(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "CONFIG-")
}

// Common error constructors for frequently used errors

// NewSuiteNotFoundError creates a suite file not found error
func NewSuiteNotFoundError(path string) *FlowError {
	return New(ErrCodeConfigSuiteNotFound, fmt.Sprintf("suite file not found: %s", path)).
		WithSuggestion("Run 'flowbench init' to scaffold a starter suite").
		WithSuggestion("Check if the file path is correct")
}

// NewSuiteInvalidError creates a suite validation error
func NewSuiteInvalidError(details string) *FlowError {
	return New(ErrCodeConfigSuiteInvalid, fmt.Sprintf("invalid suite: %s", details)).
		WithSuggestion("Run 'flowbench validate <suite.yaml>' to see validation errors")
}

// NewCodeSpecError creates a malformed CodeSpec error
func NewCodeSpecError(details string) *FlowError {
	return New(ErrCodeConfigCodeSpec, fmt.Sprintf("invalid code spec: %s", details)).
		WithSuggestion("Provide exactly one of inline source or a file path").
		WithSuggestion("Check the step's language and timeout settings")
}

// NewBatchSizeError creates an invalid batch size error
func NewBatchSizeError(size int) *FlowError {
	return New(ErrCodeConfigBatchSize, fmt.Sprintf("batch size must be >= 1, got %d", size)).
		WithSuggestion("Set batch_size to a positive integer")
}

// NewUnknownStrategyError creates an unknown aggregation strategy error
func NewUnknownStrategyError(strategy string) *FlowError {
	return New(ErrCodeConfigUnknownStrategy, fmt.Sprintf("unknown aggregation strategy: %s", strategy)).
		WithSuggestion("Use one of: concat, stats, filter, custom")
}

// NewUnknownLanguageError creates an unknown sandbox language error
func NewUnknownLanguageError(language string) *FlowError {
	return New(ErrCodeConfigUnknownLanguage, fmt.Sprintf("unknown language: %s", language)).
		WithSuggestion("Use one of: python, javascript")
}

// NewMissingKeyError creates a missing pipeline context key error
func NewMissingKeyError(key, stepID string) *FlowError {
	return New(ErrCodePipelineMissingKey, fmt.Sprintf("step %s: context key not found: %s", stepID, key)).
		WithSuggestion("Check the step's input mapping against earlier output keys").
		WithSuggestion("Check the sample's global inputs")
}
