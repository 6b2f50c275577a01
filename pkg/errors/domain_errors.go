package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AlreadyDecidedError is returned when a decision targets an approval record
// that has already reached a terminal status. Retried requests land here and
// must not re-run promotion.
type AlreadyDecidedError struct {
	RecordID string
	Status   string
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("approval record '%s' is already %s", e.RecordID, e.Status)
}

func (e *AlreadyDecidedError) HTTPStatus() int {
	return http.StatusConflict
}

func (e *AlreadyDecidedError) Code() string {
	return "ALREADY_DECIDED"
}

// NewAlreadyDecidedError creates a new AlreadyDecidedError
func NewAlreadyDecidedError(recordID, status string) *AlreadyDecidedError {
	return &AlreadyDecidedError{RecordID: recordID, Status: status}
}

// NotYetActionableError is returned when a decision targets a WAITING record,
// i.e. an approval level actioned out of order.
type NotYetActionableError struct {
	RecordID string
	Level    int
}

func (e *NotYetActionableError) Error() string {
	return fmt.Sprintf("approval record '%s' (level %d) is still waiting on earlier levels", e.RecordID, e.Level)
}

func (e *NotYetActionableError) HTTPStatus() int {
	return http.StatusConflict
}

func (e *NotYetActionableError) Code() string {
	return "NOT_YET_ACTIONABLE"
}

// NewNotYetActionableError creates a new NotYetActionableError
func NewNotYetActionableError(recordID string, level int) *NotYetActionableError {
	return &NotYetActionableError{RecordID: recordID, Level: level}
}

// InvalidTransitionError is returned when a lifecycle guard fails. It names
// the current status and the status the action requires so callers can tell
// the user why a stale button press was refused.
type InvalidTransitionError struct {
	Action   string
	From     string
	Expected string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s: permit is %s, expected %s", e.Action, e.From, e.Expected)
}

func (e *InvalidTransitionError) HTTPStatus() int {
	return http.StatusConflict
}

func (e *InvalidTransitionError) Code() string {
	return "INVALID_TRANSITION"
}

// NewInvalidTransitionError creates a new InvalidTransitionError
func NewInvalidTransitionError(action, from, expected string) *InvalidTransitionError {
	return &InvalidTransitionError{Action: action, From: from, Expected: expected}
}

// ConfigurationError represents a broken approval template (missing or
// non-contiguous levels). Chain creation fails rather than building a
// partial chain.
type ConfigurationError struct {
	WorkflowID string
	Message    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("approval template for workflow '%s' is misconfigured: %s", e.WorkflowID, e.Message)
}

func (e *ConfigurationError) HTTPStatus() int {
	return http.StatusInternalServerError
}

func (e *ConfigurationError) Code() string {
	return "CONFIGURATION_ERROR"
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(workflowID, message string) *ConfigurationError {
	return &ConfigurationError{WorkflowID: workflowID, Message: message}
}

// DependencyError wraps a failure of a collaborator (database, clock,
// notification delivery). The surrounding transaction has been rolled back.
type DependencyError struct {
	Dependency string
	Cause      error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency '%s' unavailable: %v", e.Dependency, e.Cause)
}

func (e *DependencyError) HTTPStatus() int {
	return http.StatusServiceUnavailable
}

func (e *DependencyError) Code() string {
	return "DEPENDENCY_UNAVAILABLE"
}

func (e *DependencyError) Unwrap() error {
	return e.Cause
}

// NewDependencyError creates a new DependencyError
func NewDependencyError(dependency string, cause error) *DependencyError {
	return &DependencyError{Dependency: dependency, Cause: cause}
}

// IsInvalidTransition checks if an error is an InvalidTransitionError
func IsInvalidTransition(err error) bool {
	var it *InvalidTransitionError
	return errors.As(err, &it)
}

// IsAlreadyDecided checks if an error is an AlreadyDecidedError
func IsAlreadyDecided(err error) bool {
	var ad *AlreadyDecidedError
	return errors.As(err, &ad)
}
