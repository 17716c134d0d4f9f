package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate is returned when a number is already stored
	ErrDuplicate = errors.New("phone number already exists")
	// ErrNotFound is returned when a number to remove is not stored
	ErrNotFound = errors.New("phone number not found")
)

// Error is a persistence failure
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Op != "" {
		return fmt.Sprintf("store error during %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("store error: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Cause: err}
}
