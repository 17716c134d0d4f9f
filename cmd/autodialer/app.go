package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/config"
	"github.com/jonathan/autodialer/internal/llm"
	"github.com/jonathan/autodialer/internal/observability"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/pipeline"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/telephony"
)

// app holds the collaborators shared by every subcommand
type app struct {
	cfg     *config.Config
	store   store.Store
	llm     llm.Client
	proc    *pipeline.Processor
	printer *observability.Printer
	out     io.Writer
}

// newApp loads configuration and wires the store, the telephony provider,
// the language model and the command pipeline. Missing Twilio or Gemini
// credentials disable those features instead of failing.
func newApp(ctx context.Context, cmd *cobra.Command, showProgress bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{
		cfg:     cfg,
		store:   st,
		printer: observability.NewPrinter(cmd.OutOrStdout()),
		out:     cmd.OutOrStdout(),
	}

	var provider telephony.Provider
	if cfg.TelephonyConfigured() {
		twilio, err := telephony.NewTwilioProvider(cfg.Twilio())
		if err != nil {
			log.Printf("autodialer: telephony disabled: %v", err)
		} else {
			provider = twilio
		}
	} else {
		log.Printf("autodialer: Twilio credentials not set, calling is disabled")
	}

	if cfg.AIConfigured() {
		client, err := llm.NewClient(ctx, llm.NewConfig(cfg.GeminiModel), cfg.GeminiAPIKey)
		if err != nil {
			log.Printf("autodialer: language model disabled: %v", err)
		} else {
			a.llm = client
		}
	}

	validator := phone.NewValidator(cfg.TestMode)
	var orch *calling.Orchestrator
	if provider != nil {
		orch = calling.NewOrchestrator(provider, st, validator, callingConfig(cfg))
	}

	opts := pipeline.Options{
		Store:           st,
		Orchestrator:    orch,
		LLM:             a.llm,
		Validator:       validator,
		AITimeout:       cfg.AITimeout.Std(),
		ResponseTimeout: cfg.AITimeout.Std(),
		DefaultDelay:    cfg.CallDelay.Std(),
		MaxNumbers:      cfg.MaxNumbers,
	}
	if showProgress && !jsonOutput {
		opts.OnProgress = a.printer.PrintProgress
	}
	a.proc = pipeline.New(opts)
	return a, nil
}

// callingConfig maps the application config onto the orchestrator's settings
func callingConfig(cfg *config.Config) calling.Config {
	c := calling.DefaultConfig()
	c.MaxRetries = cfg.MaxRetries
	c.BaseDelay = cfg.RetryBaseDelay.Std()
	c.MaxDelay = cfg.RetryMaxDelay.Std()
	c.ProviderTimeout = cfg.ProviderTimeout.Std()
	if cfg.DefaultMessage != "" {
		c.DefaultMessage = cfg.DefaultMessage
	}
	return c
}

// Close releases the store and the language model client
func (a *app) Close() {
	if a.llm != nil {
		if err := a.llm.Close(); err != nil {
			log.Printf("autodialer: failed to close language model client: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		log.Printf("autodialer: failed to close store: %v", err)
	}
}

// printJSON writes v as indented JSON
func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
