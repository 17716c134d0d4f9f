package llm

import (
	"errors"
	"fmt"
)

// ServiceError reports a failure talking to the language service.
// Empty is set when the service answered without any usable text.
type ServiceError struct {
	Message string
	Empty   bool
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("language service: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("language service: %s", e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// IsEmptyResponse reports whether err is a ServiceError for an empty answer
func IsEmptyResponse(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Empty
}
