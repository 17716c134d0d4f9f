// Package pipeline runs a free-text command end to end: both parsers, fusion,
// phone-number enrichment, validation, execution and the user-facing reply.
// It also hosts the bulk number import and the system status report.
package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/llm"
	"github.com/jonathan/autodialer/internal/metrics"
	"github.com/jonathan/autodialer/internal/parsing"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/response"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

// NoInputMessage is the error for blank commands
const NoInputMessage = "No input provided"

// DefaultMaxNumbers caps a single import
const DefaultMaxNumbers = 1000

// Options holds the collaborators a Processor is built from
type Options struct {
	Store        store.Store
	Orchestrator *calling.Orchestrator // nil disables calling actions
	LLM          llm.Client            // nil runs on the structured parser and templates only
	Validator    *phone.Validator

	AITimeout       time.Duration
	ResponseTimeout time.Duration
	DefaultDelay    time.Duration
	MaxNumbers      int
	OnProgress      calling.ProgressFunc
}

// Processor turns raw commands into executed results
type Processor struct {
	store        store.Store
	orchestrator *calling.Orchestrator
	llm          llm.Client
	validator    *phone.Validator
	structured   *parsing.StructuredParser
	ai           *parsing.AIParser
	dispatcher   *commands.Dispatcher
	responder    *response.Generator
	maxNumbers   int
	now          func() time.Time
}

// New wires a Processor from opts
func New(opts Options) *Processor {
	validator := opts.Validator
	if validator == nil {
		validator = phone.NewValidator(true)
	}
	maxNumbers := opts.MaxNumbers
	if maxNumbers <= 0 {
		maxNumbers = DefaultMaxNumbers
	}

	var caller commands.Caller
	if opts.Orchestrator != nil {
		caller = opts.Orchestrator
	}
	dispatchOpts := []commands.Option{commands.WithProgress(opts.OnProgress)}
	if opts.DefaultDelay > 0 {
		dispatchOpts = append(dispatchOpts, commands.WithDefaultDelay(opts.DefaultDelay))
	}

	p := &Processor{
		store:        opts.Store,
		orchestrator: opts.Orchestrator,
		llm:          opts.LLM,
		validator:    validator,
		structured:   parsing.NewStructuredParser(),
		dispatcher:   commands.NewDispatcher(opts.Store, caller, validator, dispatchOpts...),
		responder:    response.NewGenerator(opts.LLM, opts.ResponseTimeout),
		maxNumbers:   maxNumbers,
		now:          time.Now,
	}
	if opts.LLM != nil {
		p.ai = parsing.NewAIParser(opts.LLM, validator, opts.AITimeout)
	}
	return p
}

// Validator returns the phone validator shared by every stage
func (p *Processor) Validator() *phone.Validator {
	return p.validator
}

// Orchestrator returns the call orchestrator, or nil when calling is disabled
func (p *Processor) Orchestrator() *calling.Orchestrator {
	return p.orchestrator
}

// Envelope is the outcome of processing one command
type Envelope struct {
	Status          commands.Status         `json:"status"`
	Action          types.Action            `json:"action"`
	Command         types.Command           `json:"parsed_command"`
	Fusion          *parsing.FusionDecision `json:"fusion,omitempty"`
	Parameters      types.Parameters        `json:"parameters,omitempty"`
	Error           string                  `json:"error,omitempty"`
	ExecutionResult *commands.Result        `json:"execution_result,omitempty"`
	Statistics      *types.BatchStatistics  `json:"statistics,omitempty"`
	Response        string                  `json:"response"`
}

// Parse runs both parsers concurrently, fuses their results and enriches the
// phone-number parameters. With no language model configured only the
// structured parser runs.
func (p *Processor) Parse(ctx context.Context, input string) (types.Command, parsing.FusionDecision) {
	var structured types.ParseResult
	var ai *types.ParseResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		structured = p.structured.Parse(input)
		return nil
	})
	if p.ai != nil {
		g.Go(func() error {
			r := p.ai.Parse(gctx, input)
			ai = &r
			return nil
		})
	}
	_ = g.Wait()

	fused, decision := parsing.Fuse(structured, ai)
	metrics.RecordFusionDecision(string(decision.Method))
	log.Printf("pipeline: fused %s via %s (rule %d, confidence %.2f)", fused.Action, decision.Method, decision.Rule, fused.Confidence)

	enriched := parsing.EnrichPhoneNumbers(fused, input, p.validator)
	return types.NewCommand(enriched, input, p.now()), decision
}

// Process parses, validates and executes input. It never returns an error:
// every failure is reported in the envelope.
func (p *Processor) Process(ctx context.Context, input string) Envelope {
	input = strings.TrimSpace(input)
	if input == "" {
		cmd := types.NewCommand(types.ParseResult{
			Action:           types.ActionUnknown,
			Confidence:       0,
			Error:            NoInputMessage,
			ProcessingMethod: types.MethodValidation,
		}, input, p.now())
		return Envelope{
			Status:   commands.StatusError,
			Action:   cmd.Action,
			Command:  cmd,
			Error:    NoInputMessage,
			Response: response.ErrorResponse(NoInputMessage),
		}
	}

	log.Printf("pipeline: processing command %q", input)
	cmd, decision := p.Parse(ctx, input)

	if err := parsing.ValidateCommand(cmd); err != nil {
		msg := err.Error()
		var ve *parsing.ValidationError
		if errors.As(err, &ve) {
			msg = ve.Message
		}
		log.Printf("pipeline: command %s failed validation: %s", cmd.Action, msg)
		metrics.RecordCommand(string(cmd.Action), string(commands.StatusError))
		return Envelope{
			Status:     commands.StatusError,
			Action:     cmd.Action,
			Command:    cmd,
			Fusion:     &decision,
			Parameters: cmd.Parameters,
			Error:      msg,
			Response:   response.ErrorResponse(msg),
		}
	}

	res := p.dispatcher.Execute(ctx, cmd)
	env := Envelope{
		Status:          res.Status,
		Action:          cmd.Action,
		Command:         cmd,
		Fusion:          &decision,
		Error:           res.Error,
		ExecutionResult: &res,
		Response:        p.responder.Generate(ctx, input, res),
	}
	if bulk, ok := res.Payload.(commands.BulkCallPayload); ok {
		stats := bulk.Statistics
		env.Statistics = &stats
	}
	log.Printf("pipeline: command %s finished with status %s", cmd.Action, res.Status)
	return env
}

// Execute dispatches an already built command, bypassing the parsers. The
// HTTP and CLI surfaces use it for their direct call and number endpoints.
func (p *Processor) Execute(ctx context.Context, action types.Action, params types.Parameters) commands.Result {
	cmd := types.NewCommand(types.ParseResult{
		Action:           action,
		Parameters:       params,
		Confidence:       1,
		ProcessingMethod: types.MethodValidation,
	}, "", p.now())
	return p.dispatcher.Execute(ctx, cmd)
}
