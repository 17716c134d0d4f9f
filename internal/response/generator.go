// Package response turns command results into short user-facing text. The
// language model writes the reply when it is available; otherwise a fixed
// template per status and action is used.
package response

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/llm"
	"github.com/jonathan/autodialer/internal/prompts"
	"github.com/jonathan/autodialer/internal/types"
)

// DefaultTimeout bounds a single response generation
const DefaultTimeout = 10 * time.Second

// GenericFallback is used when no template matches the result
const GenericFallback = "I processed your request, but I'm not sure about the result. Please check the call logs for updates."

// Generator writes replies for command results
type Generator struct {
	client  llm.Client
	timeout time.Duration
}

// NewGenerator creates a Generator. client may be nil, in which case only
// templates are used.
func NewGenerator(client llm.Client, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{client: client, timeout: timeout}
}

// Generate returns a reply for res, produced for the given user input
func (g *Generator) Generate(ctx context.Context, input string, res commands.Result) string {
	if g == nil || g.client == nil {
		return Template(res)
	}
	text, err := g.generateWithModel(ctx, input, res)
	if err != nil {
		log.Printf("response: using template reply for %s: %v", res.Action, err)
		return Template(res)
	}
	return text
}

func (g *Generator) generateWithModel(ctx context.Context, input string, res commands.Result) (string, error) {
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	prompt, err := prompts.Render(prompts.CommandsFile, prompts.KeyGenerateResponse, map[string]string{
		"Command": strings.TrimSpace(input),
		"Result":  string(body),
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.client.GenerateContent(ctx, prompt, llm.TierStandard)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &llm.ServiceError{Message: "empty response", Empty: true}
	}
	return text, nil
}

// Template returns the fixed reply for res
func Template(res commands.Result) string {
	switch res.Status {
	case commands.StatusSuccess:
		return successTemplate(res)
	case commands.StatusError:
		msg := res.Error
		if msg == "" {
			msg = "Unknown error occurred"
		}
		reply := "Sorry, I couldn't complete that request: " + msg
		if res.Suggestion != "" {
			reply += ". " + res.Suggestion
		}
		return reply
	}
	return GenericFallback
}

func successTemplate(res commands.Result) string {
	number := res.PhoneNumber()
	if number == "" {
		number = "the number"
	}

	switch p := res.Payload.(type) {
	case commands.BulkCallPayload:
		return fmt.Sprintf("Started calling %d numbers. %d calls initiated successfully.",
			p.Statistics.Total, p.Statistics.Successful)
	case commands.LogsPayload:
		return fmt.Sprintf("Retrieved %d call log entries.", p.Count)
	case commands.StatisticsPayload:
		return fmt.Sprintf("Call statistics: %d total calls with %s%% success rate.",
			p.Statistics.TotalCalls, formatRate(p.Statistics.SuccessRate))
	}

	switch res.Action {
	case types.ActionCallSpecific:
		return fmt.Sprintf("Calling %s now. Check the call logs for status updates.", number)
	case types.ActionAddNumber:
		return fmt.Sprintf("Added %s to your contact list.", number)
	case types.ActionRemoveNumber:
		return fmt.Sprintf("Removed %s from your contact list.", number)
	}
	if res.Message != "" {
		return res.Message
	}
	return "Command executed successfully."
}

func formatRate(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// ErrorResponse returns the reply for a command that failed validation
func ErrorResponse(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "phone number"):
		return msg + ". Please provide a valid Indian phone number (e.g., +919876543210 or 18001234567)."
	case strings.Contains(lower, "not recognized"):
		return "I didn't understand that command. Try something like 'Call all numbers', 'Add +919876543210', 'Show call logs' or 'Remove +919876543210'."
	}
	return msg
}
