package service

import (
	"fmt"

	"ms-timeline/internal/events/db"
)

// ValidationError is reported to clients as 400. Nothing has been written
// when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing event. It matches db.ErrNotFound with errors.Is.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Event with ID %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == db.ErrNotFound
}
