package store

import (
	"errors"
	"fmt"
)

// Standard store error types shared by all implementations.
var (
	// ErrAgentNotFound indicates no agent exists for the given identifier.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrModelNotFound indicates no data model exists for the given identifier.
	ErrModelNotFound = errors.New("model not found")

	// ErrActionNotFound indicates no action exists for the given identifier.
	ErrActionNotFound = errors.New("action not found")

	// ErrRecordNotFound indicates no record exists for the given identifier.
	ErrRecordNotFound = errors.New("record not found")

	// ErrScheduleNotFound indicates no schedule exists for the given identifier.
	ErrScheduleNotFound = errors.New("schedule not found")
)

// Error wraps store failures with the operation and entity being accessed.
type Error struct {
	Op       string // Operation being performed (e.g., "ScheduleByID", "SaveRecord")
	EntityID string // Entity identifier if applicable
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.EntityID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a wrapped store error with context.
func NewError(op, entityID string, err error) *Error {
	return &Error{Op: op, EntityID: entityID, Err: err}
}

// IsAgentNotFound checks if an error indicates a missing agent.
func IsAgentNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound)
}

// IsModelNotFound checks if an error indicates a missing data model.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}

// IsScheduleNotFound checks if an error indicates a missing schedule.
func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}
