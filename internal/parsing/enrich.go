package parsing

import (
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/types"
)

// Enrichment adjustments
const (
	foundPhoneBonus      = 0.1
	invalidPhoneMultiple = 0.7
)

// EnrichPhoneNumbers reconciles the fused result with the numbers that appear
// in the raw input. A missing phone_number is filled from the text (raising
// confidence), an existing one is canonicalized or annotated with
// phone_number_error (lowering confidence), and every number found is listed
// under all_phone_numbers. The input result is not modified.
func EnrichPhoneNumbers(result types.ParseResult, input string, validator *phone.Validator) types.ParseResult {
	out := result.Clone()
	found := phone.FindInText(input)

	if out.Parameters.GetString(types.ParamPhoneNumber) == "" && len(found) > 0 {
		out.Parameters[types.ParamPhoneNumber] = found[0]
		out.Confidence = types.ClampConfidence(out.Confidence + foundPhoneBonus)
	}

	if raw := out.Parameters.GetString(types.ParamPhoneNumber); raw != "" {
		pn := validator.Validate(raw)
		if pn.Valid {
			out.Parameters[types.ParamPhoneNumber] = pn.Normalized
			delete(out.Parameters, types.ParamPhoneNumberError)
		} else {
			out.Parameters[types.ParamPhoneNumberError] = InvalidPhoneMessage(raw, pn.Reason)
			out.Confidence = types.ClampConfidence(out.Confidence * invalidPhoneMultiple)
		}
	}

	if len(found) > 0 {
		out.Parameters[types.ParamAllPhoneNumbers] = found
	}
	return out
}
