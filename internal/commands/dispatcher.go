package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/metrics"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

// ExampleCommands is suggested when a command cannot be executed
const ExampleCommands = "Try commands like 'call all numbers', 'add +919876543210', or 'show call logs'"

// Caller places calls; *calling.Orchestrator implements it
type Caller interface {
	MakeCall(ctx context.Context, number, message string) types.CallResult
	BulkCallWithProgress(ctx context.Context, numbers []string, message string, delay time.Duration, progress calling.ProgressFunc) types.BulkCallJob
	Available() bool
}

type handlerFunc func(ctx context.Context, params types.Parameters) Result

// Dispatcher maps actions to handlers
type Dispatcher struct {
	store        store.Store
	caller       Caller
	validator    *phone.Validator
	defaultDelay time.Duration
	progress     calling.ProgressFunc
	handlers     map[types.Action]handlerFunc
}

// Option customizes a Dispatcher
type Option func(*Dispatcher)

// WithDefaultDelay sets the pause between bulk calls when the command gives none
func WithDefaultDelay(d time.Duration) Option {
	return func(di *Dispatcher) { di.defaultDelay = d }
}

// WithProgress receives bulk call progress events for call_all
func WithProgress(fn calling.ProgressFunc) Option {
	return func(di *Dispatcher) { di.progress = fn }
}

// NewDispatcher builds a Dispatcher over the store and caller
func NewDispatcher(st store.Store, caller Caller, validator *phone.Validator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:        st,
		caller:       caller,
		validator:    validator,
		defaultDelay: calling.DefaultDelayBetweenCalls,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = map[types.Action]handlerFunc{
		types.ActionCallAll:       d.callAll,
		types.ActionCallSpecific:  d.callSpecific,
		types.ActionAddNumber:     d.addNumber,
		types.ActionRemoveNumber:  d.removeNumber,
		types.ActionViewLogs:      d.viewLogs,
		types.ActionGetStatistics: d.getStatistics,
	}
	return d
}

// Execute runs the handler for cmd.Action. It never panics and never
// returns a raw error: failures are reported in the Result.
func (d *Dispatcher) Execute(ctx context.Context, cmd types.Command) (res Result) {
	action := cmd.Action
	defer func() {
		if r := recover(); r != nil {
			log.Printf("commands: panic executing %s: %v", action, r)
			res = failure(action, "Execution failed", nil)
		}
		metrics.RecordCommand(string(action), string(res.Status))
	}()

	h, ok := d.handlers[action]
	if !ok {
		res = failure(action, fmt.Sprintf("Unknown action: %s", action), nil)
		res.Suggestion = ExampleCommands
		return res
	}

	params := cmd.Parameters
	if params == nil {
		params = types.Parameters{}
	}
	return h(ctx, params)
}

func (d *Dispatcher) callerUnavailable(action types.Action) (Result, bool) {
	if d.caller == nil || !d.caller.Available() {
		return failure(action, "Telephony provider not available. Check Twilio configuration.", nil), true
	}
	return Result{}, false
}

func (d *Dispatcher) callAll(ctx context.Context, params types.Parameters) Result {
	const action = types.ActionCallAll
	if res, unavailable := d.callerUnavailable(action); unavailable {
		return res
	}

	records, err := d.store.GetAllNumbers(ctx)
	if err != nil {
		log.Printf("commands: failed to list numbers: %v", err)
		return failure(action, "Failed to retrieve phone numbers", nil)
	}
	if len(records) == 0 {
		res := failure(action, "No phone numbers found in database. Please add numbers first.", nil)
		res.Suggestion = "Try adding numbers with commands like 'add +919876543210'"
		return res
	}

	numbers := make([]string, len(records))
	for i, rec := range records {
		numbers[i] = rec.Number
	}

	delay := d.defaultDelay
	if secs, ok := params.GetInt(types.ParamDelay); ok && secs >= 0 {
		delay = time.Duration(secs) * time.Second
	}

	job := d.caller.BulkCallWithProgress(ctx, numbers, params.GetString(types.ParamMessage), delay, d.progress)
	msg := fmt.Sprintf("Bulk calling completed: %d successful, %d failed", job.Statistics.Successful, job.Statistics.Failed)
	return success(action, msg, BulkCallPayload{
		JobID:        job.ID,
		TotalNumbers: len(numbers),
		Statistics:   job.Statistics,
		Results:      job.Results,
	})
}

func (d *Dispatcher) callSpecific(ctx context.Context, params types.Parameters) Result {
	const action = types.ActionCallSpecific
	if res, unavailable := d.callerUnavailable(action); unavailable {
		return res
	}

	number := params.GetString(types.ParamPhoneNumber)
	call := d.caller.MakeCall(ctx, number, params.GetString(types.ParamMessage))
	payload := CallPayload{
		PhoneNumber: number,
		CallID:      call.CallID,
		RetryCount:  call.RetryCount,
		ErrorCode:   call.ErrorCode,
	}
	if call.PhoneNumber != "" {
		payload.PhoneNumber = call.PhoneNumber
	}
	if !call.Succeeded() {
		errMsg := call.Error
		if errMsg == "" {
			errMsg = "Call failed"
		}
		return failure(action, errMsg, payload)
	}
	return success(action, "Call initiated successfully", payload)
}

// canonical re-normalizes number so handlers store one form per number
func (d *Dispatcher) canonical(number string) (string, error) {
	if d.validator == nil {
		return number, nil
	}
	return d.validator.Normalize(number)
}

func (d *Dispatcher) addNumber(ctx context.Context, params types.Parameters) Result {
	const action = types.ActionAddNumber
	number, err := d.canonical(params.GetString(types.ParamPhoneNumber))
	if err != nil {
		return failure(action, reasonOf(err), NumberPayload{PhoneNumber: params.GetString(types.ParamPhoneNumber)})
	}
	payload := NumberPayload{PhoneNumber: number}

	exists, err := d.store.NumberExists(ctx, number)
	if err != nil {
		log.Printf("commands: failed to check number %s: %v", number, err)
		return failure(action, "Failed to add number", payload)
	}
	if exists {
		return failure(action, "Phone number already exists in the database", payload)
	}

	if _, err := d.store.AddNumber(ctx, number); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return failure(action, "Phone number already exists in the database", payload)
		}
		log.Printf("commands: failed to add number %s: %v", number, err)
		return failure(action, "Failed to add number", payload)
	}
	log.Printf("commands: phone number added: %s", number)
	return success(action, "Phone number added successfully", payload)
}

func (d *Dispatcher) removeNumber(ctx context.Context, params types.Parameters) Result {
	const action = types.ActionRemoveNumber
	number, err := d.canonical(params.GetString(types.ParamPhoneNumber))
	if err != nil {
		return failure(action, reasonOf(err), NumberPayload{PhoneNumber: params.GetString(types.ParamPhoneNumber)})
	}
	payload := NumberPayload{PhoneNumber: number}

	if err := d.store.RemoveNumber(ctx, number); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure(action, "Phone number not found", payload)
		}
		log.Printf("commands: failed to remove number %s: %v", number, err)
		return failure(action, "Failed to remove number", payload)
	}
	log.Printf("commands: phone number removed: %s", number)
	return success(action, "Phone number removed successfully", payload)
}

func (d *Dispatcher) viewLogs(ctx context.Context, params types.Parameters) Result {
	const action = types.ActionViewLogs
	filters := LogFilters{
		Limit:       store.DefaultLogLimit,
		PhoneNumber: params.GetString(types.ParamPhoneNumber),
		Status:      params.GetString(types.ParamStatus),
	}
	if n, ok := params.GetInt(types.ParamLimit); ok && n > 0 {
		filters.Limit = n
	}
	if filters.Status != "" && !types.CallStatus(filters.Status).Valid() {
		return failure(action, fmt.Sprintf("Invalid status filter: %s", filters.Status), nil)
	}

	logs, err := d.store.GetCallLogs(ctx, store.LogFilter{
		PhoneNumber: filters.PhoneNumber,
		Status:      types.CallStatus(filters.Status),
		Limit:       filters.Limit,
	})
	if err != nil {
		log.Printf("commands: failed to get call logs: %v", err)
		return failure(action, "Failed to retrieve call logs", nil)
	}
	if logs == nil {
		logs = []types.CallAttempt{}
	}
	return success(action, fmt.Sprintf("Retrieved %d call logs", len(logs)), LogsPayload{
		Logs:    logs,
		Count:   len(logs),
		Filters: filters,
	})
}

func (d *Dispatcher) getStatistics(ctx context.Context, params types.Parameters) Result {
	const action = types.ActionGetStatistics
	filters := StatsFilters{PhoneNumber: params.GetString(types.ParamPhoneNumber)}
	if n, ok := params.GetInt(types.ParamDays); ok && n > 0 {
		filters.Days = n
	}

	stats, err := d.store.GetCallStatistics(ctx, store.StatsFilter{PhoneNumber: filters.PhoneNumber, Days: filters.Days})
	if err != nil {
		log.Printf("commands: failed to get call statistics: %v", err)
		return failure(action, "Failed to retrieve statistics", nil)
	}
	return success(action, "Retrieved call statistics", StatisticsPayload{Statistics: stats, Filters: filters})
}

func reasonOf(err error) string {
	var ve *phone.ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf("Invalid phone number: %s", ve.Reason)
	}
	return err.Error()
}
