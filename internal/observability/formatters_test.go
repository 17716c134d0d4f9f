package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/parsing"
	"github.com/jonathan/autodialer/internal/pipeline"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

func TestPrintCommand(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	cmd := types.Command{ParseResult: types.ParseResult{
		Action:           types.ActionCallSpecific,
		Confidence:       0.87,
		ProcessingMethod: types.MethodCombined,
		BackupAction:     types.ActionAddNumber,
		Parameters:       types.Parameters{types.ParamPhoneNumber: "+919876543210", types.ParamMessage: "hello"},
	}}
	p.PrintCommand(cmd, &parsing.FusionDecision{Rule: 4, StructuredAction: types.ActionAddNumber, AIAction: types.ActionCallSpecific})
	output := buf.String()

	assert.Contains(t, output, "PARSED COMMAND")
	assert.Contains(t, output, "call_specific")
	assert.Contains(t, output, "0.87")
	assert.Contains(t, output, "combined")
	assert.Contains(t, output, "Rule:       4 (structured: add_number, ai: call_specific)")
	assert.Contains(t, output, "+91 98765 43210")
	assert.Contains(t, output, "hello")
}

func TestPrintEnvelope(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintEnvelope(pipeline.Envelope{
		Status:     commands.StatusSuccess,
		Command:    types.Command{ParseResult: types.ParseResult{Action: types.ActionCallAll}},
		Statistics: &types.BatchStatistics{Total: 4, Successful: 3, Failed: 1, SuccessRate: 75},
		Response:   "Started calling 4 numbers.",
	})
	output := buf.String()

	assert.Contains(t, output, "BULK CALL RESULTS")
	assert.Contains(t, output, "75.00%")
	assert.True(t, strings.HasSuffix(output, "Started calling 4 numbers.\n"))
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProgress(calling.ProgressEvent{Status: calling.ProgressCalling, Index: 1, Total: 2, PhoneNumber: "+9118001234567"})
	p.PrintProgress(calling.ProgressEvent{Status: calling.ProgressFailed, Index: 2, Total: 2, PhoneNumber: "+919876543210", Error: "busy"})
	p.PrintProgress(calling.ProgressEvent{Status: calling.ProgressCompleted, Statistics: &types.BatchStatistics{Successful: 1, Failed: 1}})

	assert.Equal(t, "[1/2] calling +91 1800 123 4567...\n[2/2] ✗ +91 98765 43210: busy\ndone: 1 successful, 1 failed\n", buf.String())
}

func TestPrintCallLogs(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	logs := make([]types.CallAttempt, 12)
	for i := range logs {
		logs[i] = types.CallAttempt{PhoneNumber: "+919876543210", Status: types.CallStatusCompleted, Duration: 30, CreatedAt: time.Now()}
	}
	p.PrintCallLogs(logs)
	output := buf.String()

	assert.Contains(t, output, "CALL LOGS")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "30s")
	assert.Contains(t, output, "... and 2 more")
}

func TestPrintCallLogs_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCallLogs(nil)
	assert.Contains(t, buf.String(), "No call logs found")
}

func TestPrintStatistics(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintStatistics(store.CallStatistics{TotalCalls: 3, SuccessfulCalls: 2, SuccessRate: 66.67, AvgDuration: 12.5})
	output := buf.String()

	assert.Contains(t, output, "Total calls:   3")
	assert.Contains(t, output, "66.67%")
	assert.Contains(t, output, "12.5s")
}

func TestPrintImport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintImport(pipeline.ImportResult{
		Status:  "success",
		Message: "Import completed: 1 added, 0 already existed, 1 invalid",
		Added:   []string{"+919876543210"},
		Invalid: []string{"1234567"},
	})
	output := buf.String()

	assert.Contains(t, output, "Import completed")
	assert.Contains(t, output, "Added:")
	assert.Contains(t, output, "Invalid:")
	assert.NotContains(t, output, "Already stored")

	buf.Reset()
	p.PrintImport(pipeline.ImportResult{Status: "error", Error: "No text input provided"})
	assert.Contains(t, buf.String(), "IMPORT FAILED")
}

func TestPrintSystemStatus(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSystemStatus(pipeline.SystemStatus{
		Overall:    pipeline.PartiallyOperational,
		Message:    "System is partially operational",
		AI:         pipeline.ComponentNotAvailable,
		Telephony:  pipeline.ComponentFailed,
		Connection: &calling.ConnectionStatus{Error: "Authentication failed"},
		Database:   pipeline.ComponentOK,
	})
	output := buf.String()

	assert.Contains(t, output, "partially operational")
	assert.Contains(t, output, "Authentication failed")
}

func TestPrintNumbers(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintNumbers([]store.NumberRecord{{Number: "+9118001234567", AddedAt: time.Now()}})
	assert.Contains(t, buf.String(), "+91 1800 123 4567")

	buf.Reset()
	p.PrintNumbers(nil)
	assert.Contains(t, buf.String(), "No phone numbers stored")
}
