// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/parsing"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/pipeline"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 64
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for the CLI
type Printer struct {
	out     io.Writer
	display *phone.Validator
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, display: phone.NewValidator(false)}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func (p *Printer) number(n string) string {
	return p.display.FormatForDisplay(n)
}

// PrintCommand outputs how a command was parsed and which fusion rule decided it
func (p *Printer) PrintCommand(cmd types.Command, decision *parsing.FusionDecision) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Action:     %s\n", cmd.Action))
	sb.WriteString(fmt.Sprintf("Confidence: %.2f\n", cmd.Confidence))
	sb.WriteString(fmt.Sprintf("Method:     %s\n", cmd.ProcessingMethod))
	if cmd.BackupAction != "" {
		sb.WriteString(fmt.Sprintf("Backup:     %s\n", cmd.BackupAction))
	}
	if decision != nil {
		sb.WriteString(fmt.Sprintf("Rule:       %d (structured: %s", decision.Rule, decision.StructuredAction))
		if decision.AIAction != "" {
			sb.WriteString(fmt.Sprintf(", ai: %s", decision.AIAction))
		}
		sb.WriteString(")\n")
	}
	if n := cmd.Parameters.GetString(types.ParamPhoneNumber); n != "" {
		sb.WriteString(fmt.Sprintf("Number:     %s\n", p.number(n)))
	}
	if msg := cmd.Parameters.GetString(types.ParamMessage); msg != "" {
		sb.WriteString(fmt.Sprintf("Message:    %s\n", msg))
	}
	p.printBox("PARSED COMMAND", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEnvelope outputs the reply for a processed command
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEnvelope(env pipeline.Envelope) {
	p.PrintCommand(env.Command, env.Fusion)
	if env.Statistics != nil {
		p.PrintBatchStatistics(*env.Statistics)
	}
	if env.Status == "error" && env.Error != "" && env.Response == "" {
		fmt.Fprintf(p.out, "Error: %s\n", env.Error)
		return
	}
	fmt.Fprintln(p.out, env.Response)
}

// PrintBatchStatistics outputs bulk call totals
func (p *Printer) PrintBatchStatistics(stats types.BatchStatistics) {
	content := fmt.Sprintf("Total:      %d\nSuccessful: %d\nFailed:     %d\nRate:       %.2f%%",
		stats.Total, stats.Successful, stats.Failed, stats.SuccessRate)
	p.printBox("BULK CALL RESULTS", content)
}

// PrintProgress outputs one bulk call progress event on a single line
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(ev calling.ProgressEvent) {
	switch ev.Status {
	case calling.ProgressCalling:
		fmt.Fprintf(p.out, "[%d/%d] calling %s...\n", ev.Index, ev.Total, p.number(ev.PhoneNumber))
	case calling.ProgressSuccess:
		fmt.Fprintf(p.out, "[%d/%d] ✓ %s (%s)\n", ev.Index, ev.Total, p.number(ev.PhoneNumber), ev.CallID)
	case calling.ProgressFailed, calling.ProgressError:
		fmt.Fprintf(p.out, "[%d/%d] ✗ %s: %s\n", ev.Index, ev.Total, p.number(ev.PhoneNumber), ev.Error)
	case calling.ProgressCompleted:
		if ev.Statistics != nil {
			fmt.Fprintf(p.out, "done: %d successful, %d failed\n", ev.Statistics.Successful, ev.Statistics.Failed)
		}
	}
}

// PrintNumbers outputs the stored numbers
func (p *Printer) PrintNumbers(records []store.NumberRecord) {
	if len(records) == 0 {
		p.printBox("PHONE NUMBERS", "No phone numbers stored")
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total: %d\n\n", len(records)))
	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("%-20s %s\n", p.number(rec.Number), rec.AddedAt.Format("2006-01-02 15:04")))
	}
	p.printBox("PHONE NUMBERS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCallLogs outputs the most recent call attempts
func (p *Printer) PrintCallLogs(logs []types.CallAttempt) {
	if len(logs) == 0 {
		p.printBox("CALL LOGS", "No call logs found")
		return
	}
	var sb strings.Builder
	count := min(len(logs), maxItemsToShow)
	for i := 0; i < count; i++ {
		l := logs[i]
		sb.WriteString(fmt.Sprintf("%s  %-18s %-11s", l.CreatedAt.Format("01-02 15:04"), p.number(l.PhoneNumber), l.Status))
		if l.Duration > 0 {
			sb.WriteString(fmt.Sprintf(" %ds", l.Duration))
		}
		if l.ErrorMessage != "" {
			sb.WriteString(" " + l.ErrorMessage)
		}
		sb.WriteString("\n")
	}
	if len(logs) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(logs)-maxItemsToShow))
	}
	p.printBox("CALL LOGS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStatistics outputs aggregated call statistics
func (p *Printer) PrintStatistics(stats store.CallStatistics) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total calls:   %d\n", stats.TotalCalls))
	sb.WriteString(fmt.Sprintf("Successful:    %d (%.2f%%)\n", stats.SuccessfulCalls, stats.SuccessRate))
	sb.WriteString(fmt.Sprintf("Failed:        %d (%.2f%%)\n", stats.FailedCalls, stats.FailureRate))
	sb.WriteString(fmt.Sprintf("No answer:     %d (%.2f%%)\n", stats.NoAnswerCalls, stats.NoAnswerRate))
	sb.WriteString(fmt.Sprintf("Busy:          %d\n", stats.BusyCalls))
	sb.WriteString(fmt.Sprintf("Canceled:      %d\n", stats.CanceledCalls))
	sb.WriteString(fmt.Sprintf("Avg duration:  %.1fs\n", stats.AvgDuration))
	sb.WriteString(fmt.Sprintf("Total minutes: %.2f", stats.TotalDurationMinutes))
	p.printBox("CALL STATISTICS", sb.String())
}

// PrintImport outputs the outcome of a number import
func (p *Printer) PrintImport(res pipeline.ImportResult) {
	if !res.Succeeded() {
		p.printBox("IMPORT FAILED", res.Error)
		return
	}
	var sb strings.Builder
	sb.WriteString(res.Message + "\n")
	writeList := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString(fmt.Sprintf("\n%s:\n", label))
		count := min(len(items), maxItemsToShow)
		for _, n := range items[:count] {
			sb.WriteString(fmt.Sprintf("  • %s\n", n))
		}
		if len(items) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
		}
	}
	writeList("Added", res.Added)
	writeList("Already stored", res.Duplicates)
	writeList("Invalid", res.Invalid)
	writeList("Failed", res.Errors)
	p.printBox("IMPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSystemStatus outputs the health of every collaborator
func (p *Printer) PrintSystemStatus(st pipeline.SystemStatus) {
	var sb strings.Builder
	sb.WriteString(st.Message + "\n\n")
	sb.WriteString(fmt.Sprintf("Language model: %s", st.AI))
	if st.AIError != "" {
		sb.WriteString(" (" + st.AIError + ")")
	}
	sb.WriteString(fmt.Sprintf("\nTelephony:      %s", st.Telephony))
	if st.Connection != nil && st.Connection.Error != "" {
		sb.WriteString(" (" + st.Connection.Error + ")")
	}
	sb.WriteString(fmt.Sprintf("\nDatabase:       %s", st.Database))
	sb.WriteString(fmt.Sprintf("\nNumbers stored: %d", st.PhoneNumbers))
	sb.WriteString(fmt.Sprintf("\nTest mode:      %t", st.TestMode))
	p.printBox("SYSTEM STATUS", sb.String())
}
