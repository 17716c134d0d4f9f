package parsing

import (
	"strings"

	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/types"
)

// Fixed fallback confidences
const (
	fallbackBulkConfidence   = 0.8
	fallbackNumberConfidence = 0.75
	fallbackQueryConfidence  = 0.7
)

type fallbackRule struct {
	action      types.Action
	keywords    []string
	confidence  float64
	explanation string
}

var fallbackRules = []fallbackRule{
	{types.ActionCallAll, []string{"call all", "dial all", "start calling", "bulk call"}, fallbackBulkConfidence, "Detected bulk calling command (fallback parsing)"},
	{types.ActionCallSpecific, []string{"call", "dial", "phone"}, fallbackNumberConfidence, "Detected specific number calling command (fallback parsing)"},
	{types.ActionAddNumber, []string{"add", "save", "include"}, fallbackNumberConfidence, "Detected add number command (fallback parsing)"},
	{types.ActionRemoveNumber, []string{"remove", "delete", "exclude"}, fallbackNumberConfidence, "Detected remove number command (fallback parsing)"},
	{types.ActionViewLogs, []string{"logs", "history", "calls made", "recent calls"}, fallbackQueryConfidence, "Detected view logs command (fallback parsing)"},
	{types.ActionGetStatistics, []string{"statistics", "stats", "success rate", "analytics"}, fallbackQueryConfidence, "Detected statistics command (fallback parsing)"},
}

// FallbackParser is the keyword parser used whenever the language model
// cannot produce a usable answer. It returns fixed confidences.
type FallbackParser struct{}

// NewFallbackParser creates a fallback parser
func NewFallbackParser() *FallbackParser {
	return &FallbackParser{}
}

// Parse matches the first rule whose keywords appear in the input. Rules for
// phone-dependent actions only match when a number is present.
func (p *FallbackParser) Parse(input string) types.ParseResult {
	lower := strings.ToLower(strings.TrimSpace(input))
	numbers := phone.FindInText(input)

	for _, rule := range fallbackRules {
		if rule.action.RequiresPhoneNumber() && len(numbers) == 0 {
			continue
		}
		if !containsAny(lower, rule.keywords) {
			continue
		}
		params := types.Parameters{}
		if rule.action.RequiresPhoneNumber() {
			params[types.ParamPhoneNumber] = numbers[0]
		}
		return types.ParseResult{
			Action:           rule.action,
			Parameters:       params,
			Confidence:       rule.confidence,
			Explanation:      rule.explanation,
			ProcessingMethod: types.MethodAIFallback,
		}
	}

	return types.ParseResult{
		Action:           types.ActionUnknown,
		Parameters:       types.Parameters{},
		Confidence:       unknownConfidence,
		Explanation:      "Could not parse command (fallback parsing)",
		ProcessingMethod: types.MethodAIFallback,
		Error:            "Command not recognized",
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
