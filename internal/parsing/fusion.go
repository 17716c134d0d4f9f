package parsing

import (
	"math"

	"github.com/jonathan/autodialer/internal/types"
)

// Fusion thresholds
const (
	// AIPrimaryThreshold is the AI confidence at which a recognized, error-free
	// AI result wins outright
	AIPrimaryThreshold = 0.8
	// CombineMargin is the confidence gap below which the two results are
	// merged instead of one overriding the other
	CombineMargin = 0.2
)

// marginEpsilon absorbs float noise so a gap that is exactly CombineMargin in
// decimal terms (0.5 vs 0.3) is never treated as inside the margin
const marginEpsilon = 1e-9

// FusionDecision records which rule produced a fused result
type FusionDecision struct {
	Rule             int                    `json:"rule"`
	Method           types.ProcessingMethod `json:"method"`
	StructuredAction types.Action           `json:"structured_action"`
	AIAction         types.Action           `json:"ai_action,omitempty"`
	AIMethod         types.ProcessingMethod `json:"ai_method,omitempty"`
}

// Fuse merges the structured result s with the AI result a (nil when no AI
// result is available). The rules are applied in order and the first match
// wins:
//
//  1. no AI result: s, structured_only
//  2. AI confident, recognized and error-free: a, ai_primary
//  3. s strictly more confident: s with a's action as backup, structured_primary
//  4. confidences within CombineMargin: a's action over merged parameters
//     (AI wins collisions) with s's action as backup, combined
//  5. otherwise: a with s's action as backup, ai_with_backup
//
// Neither input is modified.
func Fuse(s types.ParseResult, a *types.ParseResult) (types.ParseResult, FusionDecision) {
	decision := FusionDecision{StructuredAction: s.Action}

	if a == nil {
		out := s.Clone()
		out.ProcessingMethod = types.MethodStructuredOnly
		decision.Rule, decision.Method = 1, out.ProcessingMethod
		return out, decision
	}

	decision.AIAction = a.Action
	decision.AIMethod = a.ProcessingMethod

	var out types.ParseResult
	switch {
	case a.Confidence >= AIPrimaryThreshold && a.Action != types.ActionUnknown && a.Error == "":
		out = a.Clone()
		out.ProcessingMethod = types.MethodAIPrimary
		decision.Rule = 2
	case s.Confidence > a.Confidence:
		out = s.Clone()
		out.BackupAction = a.Action
		out.ProcessingMethod = types.MethodStructuredPrimary
		decision.Rule = 3
	case math.Abs(a.Confidence-s.Confidence) < CombineMargin-marginEpsilon:
		out = a.Clone()
		out.Parameters = types.Merge(s.Parameters, a.Parameters)
		out.BackupAction = s.Action
		out.ProcessingMethod = types.MethodCombined
		decision.Rule = 4
	default:
		out = a.Clone()
		out.BackupAction = s.Action
		out.ProcessingMethod = types.MethodAIWithBackup
		decision.Rule = 5
	}

	decision.Method = out.ProcessingMethod
	return out, decision
}
