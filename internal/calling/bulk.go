package calling

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonathan/autodialer/internal/metrics"
	"github.com/jonathan/autodialer/internal/telephony"
	"github.com/jonathan/autodialer/internal/types"
)

// DefaultDelayBetweenCalls paces bulk jobs when no delay is given
const DefaultDelayBetweenCalls = 2 * time.Second

// ProgressStatus labels a bulk progress event
type ProgressStatus string

// ProgressStatus constants
const (
	ProgressCalling   ProgressStatus = "calling"
	ProgressSuccess   ProgressStatus = "success"
	ProgressFailed    ProgressStatus = "failed"
	ProgressError     ProgressStatus = "error"
	ProgressCompleted ProgressStatus = "completed"
)

// ProgressEvent reports bulk job progress. Index is 1-based; the final
// completed event carries only Statistics.
type ProgressEvent struct {
	Status      ProgressStatus         `json:"status"`
	Index       int                    `json:"current_number,omitempty"`
	Total       int                    `json:"total_numbers,omitempty"`
	PhoneNumber string                 `json:"phone_number,omitempty"`
	CallID      string                 `json:"call_sid,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Statistics  *types.BatchStatistics `json:"statistics,omitempty"`
}

// ProgressFunc receives progress events synchronously from the batch loop
type ProgressFunc func(ProgressEvent)

// BulkCall dials numbers one at a time, sleeping delay between calls
func (o *Orchestrator) BulkCall(ctx context.Context, numbers []string, message string, delay time.Duration) types.BulkCallJob {
	return o.BulkCallWithProgress(ctx, numbers, message, delay, nil)
}

// BulkCallWithProgress is BulkCall with a progress callback. The returned job
// always has one result per input number, in input order. When ctx is
// canceled, numbers not yet dialed get failed results with code CANCELED.
func (o *Orchestrator) BulkCallWithProgress(ctx context.Context, numbers []string, message string, delay time.Duration, progress ProgressFunc) types.BulkCallJob {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "calling.Orchestrator.BulkCall",
		trace.WithAttributes(attribute.Int("numbers", len(numbers))),
	)
	defer span.End()

	if delay < 0 {
		delay = 0
	}
	emit := func(ev ProgressEvent) {
		if progress != nil {
			progress(ev)
		}
	}

	job := types.BulkCallJob{
		ID:                uuid.New().String(),
		PhoneNumbers:      append([]string(nil), numbers...),
		Message:           message,
		DelayBetweenCalls: delay,
		Results:           make([]types.CallResult, 0, len(numbers)),
		StartedAt:         o.now(),
	}
	total := len(numbers)
	log.Printf("calling: starting bulk job %s for %d numbers", job.ID, total)

	for i, number := range numbers {
		if ctx.Err() != nil {
			job.Results = append(job.Results, canceledResult(number))
			continue
		}

		emit(ProgressEvent{Status: ProgressCalling, Index: i + 1, Total: total, PhoneNumber: number})
		log.Printf("calling: processing call %d/%d: %s", i+1, total, number)

		result, panicked := o.safeCall(ctx, number, message)
		job.Results = append(job.Results, result)

		switch {
		case panicked:
			emit(ProgressEvent{Status: ProgressError, Index: i + 1, Total: total, PhoneNumber: number, Error: result.Error})
		case result.Succeeded():
			emit(ProgressEvent{Status: ProgressSuccess, Index: i + 1, Total: total, PhoneNumber: number, CallID: result.CallID})
		default:
			log.Printf("calling: call %d failed: %s - %s", i+1, number, result.Error)
			emit(ProgressEvent{Status: ProgressFailed, Index: i + 1, Total: total, PhoneNumber: number, Error: result.Error})
		}

		if i < total-1 && delay > 0 {
			if err := o.sleep(ctx, delay); err != nil {
				log.Printf("calling: bulk job %s interrupted: %v", job.ID, err)
			}
		}
	}

	job.FinishedAt = o.now()
	job.Statistics = types.NewBatchStatistics(job.Results)
	metrics.RecordBulkJob(total, job.FinishedAt.Sub(job.StartedAt))
	span.SetAttributes(
		attribute.Int("successful", job.Statistics.Successful),
		attribute.Int("failed", job.Statistics.Failed),
	)
	log.Printf("calling: bulk job %s completed. Success rate: %.2f%% (%d/%d)",
		job.ID, job.Statistics.SuccessRate, job.Statistics.Successful, job.Statistics.Total)

	stats := job.Statistics
	emit(ProgressEvent{Status: ProgressCompleted, Statistics: &stats})
	return job
}

// safeCall runs MakeCall, converting a panic into a failed result
func (o *Orchestrator) safeCall(ctx context.Context, number, message string) (result types.CallResult, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Unexpected error processing %s: %v", number, r)
			log.Printf("calling: %s", msg)
			o.logAttempt(ctx, types.CallAttempt{PhoneNumber: number, Status: types.CallStatusFailed, ErrorMessage: msg})
			result = types.CallResult{
				Status:      types.CallOutcomeFailed,
				PhoneNumber: number,
				Error:       msg,
				ErrorCode:   CodeUnexpected,
			}
			panicked = true
		}
	}()
	return o.MakeCall(ctx, number, message), false
}

func canceledResult(number string) types.CallResult {
	return types.CallResult{
		Status:      types.CallOutcomeFailed,
		PhoneNumber: number,
		Error:       "Call canceled before it was placed",
		ErrorCode:   telephony.CodeCanceled,
	}
}
