package phone

import "fmt"

// ValidationError reports a number rejected by the acceptance policy
type ValidationError struct {
	Number string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Number != "" {
		return fmt.Sprintf("invalid phone number %q: %s", e.Number, e.Reason)
	}
	return fmt.Sprintf("invalid phone number: %s", e.Reason)
}
