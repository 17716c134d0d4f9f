// Package parsing turns free-text commands into actions. Two independent
// parsers (keyword/regex scoring and a language model) are fused into one
// decision, enriched with the phone numbers found in the text and validated.
package parsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/types"
)

// Structured scoring weights
const (
	keywordWeight       = 0.6
	regexWeight         = 0.3
	phonePresentBonus   = 0.2
	phoneMissingPenalty = 0.3

	// StructuredMinConfidence is the score below which the structured parser
	// reports unknown
	StructuredMinConfidence = 0.3

	unknownConfidence = 0.1
)

const phoneExpr = `((?:\+?91)?[\s-]?[6-9]\d{9}|(?:\+?91)?[\s-]?1800\d{7})`

type actionPattern struct {
	action   types.Action
	keywords []string
	regex    *regexp.Regexp
	boost    float64
}

// patterns are evaluated in priority order; ties keep the earlier action
var patterns = []actionPattern{
	{
		action:   types.ActionCallAll,
		keywords: []string{"call all", "dial all", "start calling", "bulk call", "call everyone", "dial everyone"},
		regex:    regexp.MustCompile(`(?i)(call|dial|start calling|phone)\s+(all|everyone|everybody|all numbers)`),
		boost:    0.1,
	},
	{
		action:   types.ActionCallSpecific,
		keywords: []string{"call", "dial", "phone"},
		regex:    regexp.MustCompile(`(?i)(call|dial|phone)\s*` + phoneExpr),
		boost:    0.15,
	},
	{
		action:   types.ActionAddNumber,
		keywords: []string{"add", "save", "include", "insert"},
		regex:    regexp.MustCompile(`(?i)(add|save|include|insert)\s*(number)?\s*` + phoneExpr),
		boost:    0.1,
	},
	{
		action:   types.ActionRemoveNumber,
		keywords: []string{"remove", "delete", "exclude", "drop"},
		regex:    regexp.MustCompile(`(?i)(remove|delete|exclude|drop)\s*(number)?\s*` + phoneExpr),
		boost:    0.1,
	},
	{
		action:   types.ActionViewLogs,
		keywords: []string{"logs", "history", "calls made", "recent calls", "call log", "show calls"},
		regex:    regexp.MustCompile(`(?i)(show|view|display|get)\s*(call)?\s*(logs?|history|recent calls)`),
		boost:    0.05,
	},
	{
		action:   types.ActionGetStatistics,
		keywords: []string{"statistics", "stats", "success rate", "analytics", "performance", "summary"},
		regex:    regexp.MustCompile(`(?i)(show|get|display)\s*(call)?\s*(statistics|stats|success rate|analytics|performance|summary)`),
		boost:    0.05,
	},
}

var (
	messagePattern = regexp.MustCompile(`(?i)(with message|message|say)\s*["']?([^"']+)["']?`)
	limitPattern   = regexp.MustCompile(`(?i)\b(?:last|recent|latest|top)\s+(\d{1,4})\b`)
	daysPattern    = regexp.MustCompile(`(?i)\b(\d{1,4})\s+days?\b`)
	delayPattern   = regexp.MustCompile(`(?i)\bdelay(?:\s+of)?\s+(\d{1,3})\b`)
)

// StructuredParser scores the input against fixed keyword and regex patterns
type StructuredParser struct{}

// NewStructuredParser creates a structured parser
func NewStructuredParser() *StructuredParser {
	return &StructuredParser{}
}

// Parse scores every action and returns the best match, or unknown when no
// action scores at least StructuredMinConfidence
func (p *StructuredParser) Parse(input string) types.ParseResult {
	lower := strings.ToLower(strings.TrimSpace(input))
	numbers := phone.FindInText(input)

	best := types.ActionUnknown
	bestScore := 0.0
	for _, pat := range patterns {
		score := scorePattern(pat, lower, len(numbers) > 0)
		if score > bestScore {
			best, bestScore = pat.action, score
		}
	}

	if best == types.ActionUnknown || bestScore < StructuredMinConfidence {
		return types.ParseResult{
			Action:           types.ActionUnknown,
			Parameters:       types.Parameters{},
			Confidence:       unknownConfidence,
			Explanation:      "No clear action pattern detected",
			ProcessingMethod: types.MethodStructured,
		}
	}

	params := types.Parameters{}
	if best.RequiresPhoneNumber() && len(numbers) > 0 {
		params[types.ParamPhoneNumber] = numbers[0]
	}
	if msg := ExtractMessage(input); msg != "" {
		params[types.ParamMessage] = msg
	}
	addOptionalParams(best, input, params)

	return types.ParseResult{
		Action:           best,
		Parameters:       params,
		Confidence:       types.ClampConfidence(bestScore),
		Explanation:      fmt.Sprintf("Detected %s command using structured parsing", best),
		ProcessingMethod: types.MethodStructured,
	}
}

func scorePattern(pat actionPattern, lower string, hasPhone bool) float64 {
	matches := 0
	for _, kw := range pat.keywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}

	score := float64(matches) / float64(len(pat.keywords)) * keywordWeight
	if pat.regex.MatchString(lower) {
		score += regexWeight
	}
	score += pat.boost

	if pat.action.RequiresPhoneNumber() {
		if hasPhone {
			score += phonePresentBonus
		} else {
			score *= phoneMissingPenalty
		}
	}
	return score
}

// ExtractMessage returns the free-text message following "message" or "say",
// or "" when the input carries none
func ExtractMessage(input string) string {
	m := messagePattern.FindStringSubmatch(input)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[2])
}

// addOptionalParams picks up the numeric knobs the handlers understand:
// a log limit, a statistics day window and a bulk-call delay
func addOptionalParams(action types.Action, input string, params types.Parameters) {
	var pattern *regexp.Regexp
	var key string
	switch action {
	case types.ActionViewLogs:
		pattern, key = limitPattern, types.ParamLimit
	case types.ActionGetStatistics:
		pattern, key = daysPattern, types.ParamDays
	case types.ActionCallAll:
		pattern, key = delayPattern, types.ParamDelay
	default:
		return
	}
	if m := pattern.FindStringSubmatch(input); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && (n > 0 || key == types.ParamDelay) {
			params[key] = n
		}
	}
}
