package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Plan errors (PLAN-001 to PLAN-099) — document construction and validation
	ErrCodePlanMissingMandatoryPhase ErrorCode = "PLAN-001"
	ErrCodePlanEmptyTaskList         ErrorCode = "PLAN-002"
	ErrCodePlanDuplicateTaskID       ErrorCode = "PLAN-003"
	ErrCodePlanEmptyCriteria         ErrorCode = "PLAN-004"
	ErrCodePlanAlreadyFinalized      ErrorCode = "PLAN-005"
	ErrCodePlanNotFinalized          ErrorCode = "PLAN-006"
	ErrCodePlanInvalidPriority       ErrorCode = "PLAN-007"
	ErrCodePlanUnknownPhase          ErrorCode = "PLAN-008"
	ErrCodePlanTaskNotFound          ErrorCode = "PLAN-009"
	ErrCodePlanMissingProject        ErrorCode = "PLAN-010"
	ErrCodePlanUntitledTask          ErrorCode = "PLAN-011"

	// Codec errors (CODEC-001 to CODEC-099)
	ErrCodeCodecUnknownLegendVersion ErrorCode = "CODEC-001"
	ErrCodeCodecMalformedArtifact    ErrorCode = "CODEC-002"
	ErrCodeCodecLegendInvalid        ErrorCode = "CODEC-003"

	// External service errors (SERVICE-001 to SERVICE-099)
	ErrCodeServiceTimeout     ErrorCode = "SERVICE-001"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE-002"
	ErrCodeServiceExhausted   ErrorCode = "SERVICE-003"
	ErrCodeServiceBadResponse ErrorCode = "SERVICE-004"
	ErrCodeServiceAuth        ErrorCode = "SERVICE-005"

	// Session store errors (STORE-001 to STORE-099)
	ErrCodeStoreNotFound    ErrorCode = "STORE-001"
	ErrCodeStoreConflict    ErrorCode = "STORE-002"
	ErrCodeStoreCorrupt     ErrorCode = "STORE-003"
	ErrCodeStoreUnavailable ErrorCode = "STORE-004"
	ErrCodeStoreExpired     ErrorCode = "STORE-005"

	// Dialogue errors (DIALOGUE-001 to DIALOGUE-099)
	ErrCodeDialogueBadState    ErrorCode = "DIALOGUE-001"
	ErrCodeDialogueUnknownSlot ErrorCode = "DIALOGUE-002"
	ErrCodeDialogueNoDraft     ErrorCode = "DIALOGUE-003"

	// Deliberation errors (DELIB-001 to DELIB-099)
	ErrCodeDelibNoCoordinator ErrorCode = "DELIB-001"
	ErrCodeDelibNoSpecialists ErrorCode = "DELIB-002"
	ErrCodeDelibBadEdit       ErrorCode = "DELIB-003"

	// Config errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid  ErrorCode = "CONFIG-001"
	ErrCodeConfigNotFound ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-004"
	ErrCodeFileMarshal     ErrorCode = "IO-005"
)

// ForgeError represents an enhanced error with code, suggestions, and a wrapped cause
type ForgeError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *ForgeError) Error() string {
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
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// New creates a new ForgeError
func New(code ErrorCode, message string) *ForgeError {
	return &ForgeError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new ForgeError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *ForgeError {
	return &ForgeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *ForgeError) WithSuggestion(suggestion string) *ForgeError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ForgeError) WithSuggestions(suggestions ...string) *ForgeError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf extracts the ErrorCode from an error chain, or "" if none is present
func CodeOf(err error) ErrorCode {
	for err != nil {
		if fe, ok := err.(*ForgeError); ok {
			return fe.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// IsValidation reports whether the error belongs to the document validation family
func IsValidation(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "PLAN-")
}

// IsExternalService reports whether the error belongs to the external service family
func IsExternalService(err error) bool {
	return strings.HasPrefix(string(CodeOf(err)), "SERVICE-")
}

// IsConflict reports whether the error is a session write collision
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeStoreConflict
}

// Common error constructors for frequently used errors

// NewMissingMandatoryPhaseError reports a mandatory phase absent from the plan
func NewMissingMandatoryPhaseError(category string) *ForgeError {
	return New(ErrCodePlanMissingMandatoryPhase, fmt.Sprintf("mandatory phase %q is missing from the plan", category)).
		WithSuggestion("Construct plans through the builder, which creates every mandatory phase")
}

// NewEmptyTaskListError reports a phase present in the plan but holding no tasks
func NewEmptyTaskListError(category string) *ForgeError {
	return New(ErrCodePlanEmptyTaskList, fmt.Sprintf("phase %q has no tasks", category)).
		WithSuggestion("Add at least one task to the phase before finalizing").
		WithSuggestion("Ask the participant a follow-up question about this phase")
}

// NewDuplicateTaskIDError reports a task id collision within a plan
func NewDuplicateTaskIDError(id int) *ForgeError {
	return New(ErrCodePlanDuplicateTaskID, fmt.Sprintf("duplicate task id %d", id)).
		WithSuggestion("Allocate task ids through the plan builder only")
}

// NewEmptyCriteriaError reports a task with no acceptance criteria
func NewEmptyCriteriaError(taskID int, title string) *ForgeError {
	return New(ErrCodePlanEmptyCriteria, fmt.Sprintf("task %d (%s) has no acceptance criteria", taskID, title)).
		WithSuggestion("Every task needs at least one acceptance criterion")
}

// NewUnknownLegendVersionError reports an artifact stamped with a legend the codec does not know
func NewUnknownLegendVersionError(version string) *ForgeError {
	return New(ErrCodeCodecUnknownLegendVersion, fmt.Sprintf("unknown legend version: %s", version)).
		WithSuggestion("Upgrade to a codec build that registers this legend version").
		WithSuggestion("Check that the artifact was produced by a compatible codec")
}

// NewServiceTimeoutError reports an external call that exceeded its deadline
func NewServiceTimeoutError(service string, cause error) *ForgeError {
	return Wrap(ErrCodeServiceTimeout, fmt.Sprintf("%s call timed out", service), cause)
}

// NewStoreConflictError reports a concurrent write collision on a session
func NewStoreConflictError(sessionID string) *ForgeError {
	return New(ErrCodeStoreConflict, fmt.Sprintf("concurrent write on session %s", sessionID)).
		WithSuggestion("Reload the session and reapply the mutation")
}

// NewStoreNotFoundError reports a missing session
func NewStoreNotFoundError(participantID string) *ForgeError {
	return New(ErrCodeStoreNotFound, fmt.Sprintf("no session for participant %s", participantID))
}
