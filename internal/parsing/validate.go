package parsing

import (
	"fmt"

	"github.com/jonathan/autodialer/internal/types"
)

// NotRecognizedMessage is returned for commands that resolved to unknown
const NotRecognizedMessage = "Command not recognized. Please try rephrasing your request."

// ValidateCommand checks the parameters each action needs before it is
// dispatched. It returns a *ValidationError naming the offending field.
func ValidateCommand(cmd types.Command) error {
	switch {
	case cmd.Action == types.ActionUnknown:
		return &ValidationError{Message: NotRecognizedMessage, Field: "action"}
	case cmd.Action.RequiresPhoneNumber():
		if cmd.Parameters.GetString(types.ParamPhoneNumber) == "" {
			return &ValidationError{
				Message: fmt.Sprintf("Phone number is required for %s command", cmd.Action),
				Field:   types.ParamPhoneNumber,
			}
		}
		if msg := cmd.Parameters.GetString(types.ParamPhoneNumberError); msg != "" {
			return &ValidationError{Message: msg, Field: types.ParamPhoneNumber}
		}
	}
	return nil
}
