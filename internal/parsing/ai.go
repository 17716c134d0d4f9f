package parsing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/autodialer/internal/llm"
	"github.com/jonathan/autodialer/internal/metrics"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/prompts"
	"github.com/jonathan/autodialer/internal/schemas"
	"github.com/jonathan/autodialer/internal/types"
)

// DefaultAITimeout bounds a single language-model parse
const DefaultAITimeout = 15 * time.Second

// Fallback reasons, used as metric labels
const (
	FallbackServiceError  = "service_error"
	FallbackEmptyResponse = "empty_response"
	FallbackMalformedJSON = "malformed_json"
	FallbackSchema        = "schema"
	FallbackPrompt        = "prompt"
)

// AIParser asks a language model to interpret the command. It never returns
// an error: any failure degrades to the FallbackParser.
type AIParser struct {
	client    llm.Client
	validator *phone.Validator
	fallback  *FallbackParser
	timeout   time.Duration
}

// NewAIParser creates an AI parser. A non-positive timeout uses DefaultAITimeout.
func NewAIParser(client llm.Client, validator *phone.Validator, timeout time.Duration) *AIParser {
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	return &AIParser{
		client:    client,
		validator: validator,
		fallback:  NewFallbackParser(),
		timeout:   timeout,
	}
}

type aiResponse struct {
	Action      string         `json:"action"`
	Parameters  map[string]any `json:"parameters"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation"`
}

// Parse interprets input with the language model, or with the fallback
// parser if the model fails, times out or answers with unusable JSON
func (p *AIParser) Parse(ctx context.Context, input string) types.ParseResult {
	result, reason, err := p.parseWithModel(ctx, input)
	if err != nil {
		log.Printf("ai parser: falling back to keyword parsing (%s): %v", reason, err)
		metrics.RecordParseFallback(reason)
		return p.fallback.Parse(input)
	}
	return result
}

func (p *AIParser) parseWithModel(ctx context.Context, input string) (types.ParseResult, string, error) {
	prompt, err := prompts.Render(prompts.CommandsFile, prompts.KeyParseCommand, map[string]string{
		"Input": strings.TrimSpace(input),
	})
	if err != nil {
		return types.ParseResult{}, FallbackPrompt, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		if llm.IsEmptyResponse(err) {
			return types.ParseResult{}, FallbackEmptyResponse, err
		}
		return types.ParseResult{}, FallbackServiceError, err
	}

	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" {
		return types.ParseResult{}, FallbackEmptyResponse, &ParseError{Message: "empty response"}
	}

	if err := schemas.Validate(schemas.CommandParseSchema, cleaned); err != nil {
		var loadErr *schemas.SchemaLoadError
		if errors.As(err, &loadErr) {
			return types.ParseResult{}, FallbackMalformedJSON, &ParseError{Message: "response is not JSON", Cause: err}
		}
		return types.ParseResult{}, FallbackSchema, &ParseError{Message: "response does not match command schema", Cause: err}
	}

	var resp aiResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return types.ParseResult{}, FallbackMalformedJSON, &ParseError{Message: "failed to decode response", Cause: err}
	}

	explanation := strings.TrimSpace(resp.Explanation)
	if explanation == "" {
		explanation = "Parsed by language model"
	}

	result := types.ParseResult{
		Action:           types.ParseAction(strings.TrimSpace(resp.Action)),
		Parameters:       normalizeParameters(resp.Parameters),
		Confidence:       types.ClampConfidence(resp.Confidence),
		Explanation:      explanation,
		ProcessingMethod: types.MethodAI,
	}
	p.revalidatePhone(result.Parameters)
	return result, "", nil
}

// revalidatePhone canonicalizes a model-supplied phone number. An invalid
// number is kept and annotated so validation can report it.
func (p *AIParser) revalidatePhone(params types.Parameters) {
	raw := params.GetString(types.ParamPhoneNumber)
	if raw == "" {
		return
	}
	pn := p.validator.Validate(raw)
	if pn.Valid {
		params[types.ParamPhoneNumber] = pn.Normalized
		return
	}
	params[types.ParamPhoneNumberError] = InvalidPhoneMessage(raw, pn.Reason)
}

// InvalidPhoneMessage formats the phone_number_error parameter
func InvalidPhoneMessage(raw, reason string) string {
	return fmt.Sprintf("Invalid phone number: %s (%s)", raw, reason)
}

// normalizeParameters drops null and blank values and renders numeric phone
// numbers as digit strings
func normalizeParameters(in map[string]any) types.Parameters {
	out := types.Parameters{}
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) == "" {
				continue
			}
			out[k] = strings.TrimSpace(val)
		case float64:
			if k == types.ParamPhoneNumber {
				out[k] = strconv.FormatFloat(val, 'f', -1, 64)
				continue
			}
			out[k] = val
		default:
			out[k] = val
		}
	}
	return out
}
