package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// DatabaseErrorMessage describes relational store failures.
	DatabaseErrorMessage = "database operation failed"
)

// Machine-readable codes surfaced to API clients and tool results.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
	CodeOnboardingIncomplete = "ONBOARDING_INCOMPLETE"
	CodeAlreadyCompleted     = "ALREADY_COMPLETED"
	CodeOnboardingRequired   = "ONBOARDING_REQUIRED"
	CodeAgentNotAvailable    = "AGENT_NOT_AVAILABLE"
	CodeStateMismatch        = "STATE_MISMATCH"
	CodeNotFound             = "NOT_FOUND"
	CodeTurnInProgress       = "TURN_IN_PROGRESS"
	CodeLLM                  = "LLM_ERROR"
	CodePersistence          = "PERSISTENCE_ERROR"
)

// Sentinel kinds. Match with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrOnboardingIncomplete = errors.New("onboarding incomplete")
	ErrAlreadyCompleted     = errors.New("onboarding already completed")
	ErrOnboardingRequired   = errors.New("onboarding required")
	ErrAgentNotAvailable    = errors.New("agent not available")
	ErrStateMismatch        = errors.New("state mismatch")
	ErrPersistence          = errors.New("persistence error")
	ErrLLM                  = errors.New("llm error")
	ErrNotFound             = errors.New("not found")
	ErrTurnInProgress       = errors.New("turn in progress")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Code    string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// WithStatus returns a copy carrying a different HTTP status.
func (e *AppError) WithStatus(status int) *AppError {
	cp := *e
	cp.Status = status
	return &cp
}

// InvalidInput reports a validation failure on a single field.
func InvalidInput(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidInput,
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Field:   field,
		Message: message,
	}
}

// InvalidInputf is InvalidInput with a formatted message.
func InvalidInputf(field, format string, args ...any) *AppError {
	return InvalidInput(field, fmt.Sprintf(format, args...))
}

// OnboardingIncomplete reports the first missing section or field path.
func OnboardingIncomplete(missingPath string) *AppError {
	return &AppError{
		Err:     ErrOnboardingIncomplete,
		Status:  http.StatusBadRequest,
		Code:    CodeOnboardingIncomplete,
		Field:   missingPath,
		Message: fmt.Sprintf("onboarding incomplete: missing %s", missingPath),
	}
}

// AlreadyCompleted reports an onboarding that is already finished.
func AlreadyCompleted() *AppError {
	return &AppError{
		Err:     ErrAlreadyCompleted,
		Status:  http.StatusConflict,
		Code:    CodeAlreadyCompleted,
		Message: "onboarding already completed",
	}
}

// OnboardingRequired reports a post-onboarding request from a user still onboarding.
func OnboardingRequired() *AppError {
	return &AppError{
		Err:     ErrOnboardingRequired,
		Status:  http.StatusForbidden,
		Code:    CodeOnboardingRequired,
		Message: "onboarding must be completed first",
	}
}

// AgentNotAvailable reports an agent that cannot serve the current phase.
func AgentNotAvailable(agent, phase string) *AppError {
	return &AppError{
		Err:     ErrAgentNotAvailable,
		Status:  http.StatusForbidden,
		Code:    CodeAgentNotAvailable,
		Field:   "agent_type",
		Message: fmt.Sprintf("agent %q is not available during %s", agent, phase),
	}
}

// StateMismatch reports a client whose view of the state is stale.
func StateMismatch(current, requested int) *AppError {
	return &AppError{
		Err:     ErrStateMismatch,
		Status:  http.StatusBadRequest,
		Code:    CodeStateMismatch,
		Field:   "current_state",
		Message: fmt.Sprintf("state mismatch: backend is at %d, request claims %d", current, requested),
	}
}

// NotFound reports a missing resource.
func NotFound(what string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", what),
	}
}

// TurnInProgress reports a concurrent turn for the same user.
func TurnInProgress() *AppError {
	return &AppError{
		Err:     ErrTurnInProgress,
		Status:  http.StatusConflict,
		Code:    CodeTurnInProgress,
		Message: "another turn is in progress for this user",
	}
}

// WrapLLM wraps a model provider failure.
func WrapLLM(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrLLM, err),
		Status:  http.StatusInternalServerError,
		Code:    CodeLLM,
		Message: "language model request failed",
	}
}

// WrapDB wraps a relational store failure. AppErrors pass through untouched.
func WrapDB(err error) error {
	if err == nil {
		return nil
	}
	var app *AppError
	if errors.As(err, &app) {
		return err
	}
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrPersistence, err),
		Status:  http.StatusInternalServerError,
		Code:    CodePersistence,
		Message: DatabaseErrorMessage,
	}
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var app *AppError
	if errors.As(err, &app) && app.Status != 0 {
		return app.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	var app *AppError
	if errors.As(err, &app) && app.Code != "" {
		return app.Code
	}
	return CodeInternal
}

// FieldOf returns the offending field carried by err, if any.
func FieldOf(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Field
	}
	return ""
}

// MessageOf returns a message that is safe to show to API clients.
func MessageOf(err error) string {
	var app *AppError
	if errors.As(err, &app) && app.Message != "" {
		return app.Message
	}
	return SystemErrorMessage
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusNotFound:
		return CodeNotFound
	default:
		return CodeInternal
	}
}
