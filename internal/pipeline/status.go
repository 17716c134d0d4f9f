package pipeline

import (
	"context"
	"log"
	"strings"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/llm"
)

// Overall system states
const (
	FullyOperational     = "fully_operational"
	PartiallyOperational = "partially_operational"
	NotOperational       = "not_operational"
)

// Component states
const (
	ComponentOK           = "success"
	ComponentFailed       = "failed"
	ComponentNotAvailable = "not_available"
)

// SystemStatus is the health report of every collaborator
type SystemStatus struct {
	Overall      string                    `json:"overall_status"`
	Message      string                    `json:"message"`
	AI           string                    `json:"ai_processor"`
	AIError      string                    `json:"ai_error,omitempty"`
	Telephony    string                    `json:"call_manager"`
	Connection   *calling.ConnectionStatus `json:"call_details,omitempty"`
	Database     string                    `json:"database"`
	DatabaseErr  string                    `json:"database_error,omitempty"`
	PhoneNumbers int                       `json:"phone_numbers_count"`
	TestMode     bool                      `json:"test_mode"`
}

// SystemStatus probes the language model, the telephony provider and the
// store. The system is fully operational when the model and the provider
// both answer and partially operational when one of them does. Without a
// working store nothing can run.
func (p *Processor) SystemStatus(ctx context.Context) SystemStatus {
	st := SystemStatus{
		AI:        ComponentNotAvailable,
		Telephony: ComponentNotAvailable,
		Database:  ComponentOK,
		TestMode:  p.validator.TestMode(),
	}

	if p.llm != nil {
		if err := llm.Ping(ctx, p.llm); err != nil {
			log.Printf("pipeline: language model probe failed: %v", err)
			st.AI, st.AIError = ComponentFailed, err.Error()
		} else {
			st.AI = ComponentOK
		}
	}

	if p.orchestrator != nil && p.orchestrator.Available() {
		conn := p.orchestrator.TestConnection(ctx)
		st.Connection = &conn
		st.Telephony = ComponentFailed
		if conn.Connected {
			st.Telephony = ComponentOK
		}
	}

	count, err := p.store.CountNumbers(ctx)
	if err != nil {
		log.Printf("pipeline: store probe failed: %v", err)
		st.Database, st.DatabaseErr = ComponentFailed, "database unavailable"
	}
	st.PhoneNumbers = count

	up := 0
	for _, s := range []string{st.AI, st.Telephony} {
		if s == ComponentOK {
			up++
		}
	}
	switch {
	case st.Database != ComponentOK || up == 0:
		st.Overall = NotOperational
	case up == 2:
		st.Overall = FullyOperational
	default:
		st.Overall = PartiallyOperational
	}
	st.Message = "System is " + strings.ReplaceAll(st.Overall, "_", " ")
	return st
}
