package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/autodialer/internal/calling"
	"github.com/jonathan/autodialer/internal/commands"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/pipeline"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

// CommandRequest is the body of POST /commands
type CommandRequest struct {
	Command string `json:"command" validate:"max=2000"`
}

// NumberRequest is the body of POST /numbers
type NumberRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,max=32"`
}

// ImportRequest is the JSON body of POST /numbers/import
type ImportRequest struct {
	Text string `json:"text" validate:"max=200000"`
}

// ValidateRequest is the body of POST /numbers/validate
type ValidateRequest struct {
	PhoneNumbers []string `json:"phone_numbers" validate:"required_without=Text,max=1000,dive,max=64"`
	Text         string   `json:"text" validate:"max=200000"`
}

// CallRequest is the body of POST /calls
type CallRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,max=32"`
	Message     string `json:"message" validate:"max=4000"`
}

// BulkCallRequest is the body of POST /calls/bulk
type BulkCallRequest struct {
	Message string `json:"message" validate:"max=4000"`
	Delay   *int   `json:"delay" validate:"omitempty,min=0,max=3600"`
	Stream  bool   `json:"stream"`
}

// NumberView is a stored number as returned by the API
type NumberView struct {
	ID      int64     `json:"id"`
	Number  string    `json:"phone_number"`
	Display string    `json:"display"`
	Type    string    `json:"type"`
	AddedAt time.Time `json:"added_at"`
}

// ValidateResponse reports the validity of a list of candidates
type ValidateResponse struct {
	Valid      []types.PhoneNumber    `json:"valid"`
	Invalid    []types.PhoneNumber    `json:"invalid"`
	Duplicates []types.PhoneNumber    `json:"duplicates"`
	Statistics types.NumberStatistics `json:"statistics"`
}

// CallStatusResponse is the provider's current view of a call
type CallStatusResponse struct {
	CallID    string           `json:"call_id"`
	Status    types.CallStatus `json:"status"`
	RawStatus string           `json:"provider_status,omitempty"`
	Duration  int              `json:"duration"`
	StartTime string           `json:"start_time,omitempty"`
	EndTime   string           `json:"end_time,omitempty"`
}

// newRequestValidator reports failures by JSON field name
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var errEmptyBody = &ErrValidation{Field: "body", Message: "request body is required"}

// decodeJSON reads a JSON body into dst and validates it
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return &ErrValidation{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return s.validateStruct(dst)
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return &ErrValidation{Field: fe.Field(), Message: msg}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}

// queryInt reads an optional non-negative integer query parameter
func queryInt(r *http.Request, key string) (int, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false, &ErrValidation{Field: key, Message: "must be a non-negative integer"}
	}
	return n, true, nil
}

// resultStatus picks the HTTP status for a failed command result
func resultStatus(res commands.Result, failed int) int {
	if res.Succeeded() {
		return http.StatusOK
	}
	return failed
}

// requireCaller rejects calling endpoints when no telephony provider is configured
func (s *Server) requireCaller() (*calling.Orchestrator, error) {
	orch := s.proc.Orchestrator()
	if orch == nil || !orch.Available() {
		return nil, &ErrUnavailable{Component: "telephony provider"}
	}
	return orch, nil
}

// handleCommand runs a natural-language command through the full pipeline
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.errorFromErr(w, err)
		return
	}

	env := s.proc.Process(r.Context(), req.Command)
	status := http.StatusOK
	switch {
	case env.Status == commands.StatusSuccess:
	case env.ExecutionResult == nil:
		status = http.StatusBadRequest
	default:
		status = http.StatusUnprocessableEntity
	}
	s.jsonResponse(w, status, env)
}

// handleListNumbers returns every stored number
func (s *Server) handleListNumbers(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.GetAllNumbers(r.Context())
	if err != nil {
		s.errorFromErr(w, err)
		return
	}

	v := s.proc.Validator()
	views := make([]NumberView, len(records))
	for i, rec := range records {
		views[i] = NumberView{
			ID:      rec.ID,
			Number:  rec.Number,
			Display: v.FormatForDisplay(rec.Number),
			Type:    v.TypeOf(rec.Number),
			AddedAt: rec.AddedAt,
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"phone_numbers": views,
		"count":         len(views),
	})
}

// handleAddNumber stores one number in canonical form
func (s *Server) handleAddNumber(w http.ResponseWriter, r *http.Request) {
	var req NumberRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.errorFromErr(w, err)
		return
	}

	res := s.proc.Execute(r.Context(), types.ActionAddNumber, types.Parameters{types.ParamPhoneNumber: req.PhoneNumber})
	if res.Succeeded() {
		s.jsonResponse(w, http.StatusCreated, res)
		return
	}
	status := http.StatusInternalServerError
	if _, err := s.proc.Validator().Normalize(req.PhoneNumber); err != nil {
		status = http.StatusBadRequest
	} else if exists, err := s.store.NumberExists(r.Context(), res.PhoneNumber()); err == nil && exists {
		status = http.StatusConflict
	}
	s.jsonResponse(w, status, res)
}

// handleClearNumbers deletes every stored number. Requires ?confirm=true.
func (s *Server) handleClearNumbers(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		s.errorFromErr(w, &ErrValidation{Field: "confirm", Message: "set confirm=true to delete every number"})
		return
	}
	removed, err := s.store.ClearNumbers(r.Context())
	if err != nil {
		s.errorFromErr(w, err)
		return
	}
	log.Printf("server: cleared %d phone numbers", removed)
	s.jsonResponse(w, http.StatusOK, map[string]any{"status": "success", "removed": removed})
}

// handleRemoveNumber deletes one number
func (s *Server) handleRemoveNumber(w http.ResponseWriter, r *http.Request) {
	number, err := s.proc.Validator().Normalize(r.PathValue("number"))
	if err != nil {
		s.errorFromErr(w, err)
		return
	}
	if err := s.store.RemoveNumber(r.Context(), number); err != nil {
		s.errorFromErr(w, err)
		return
	}
	log.Printf("server: phone number removed: %s", number)
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":       "success",
		"message":      "Phone number removed successfully",
		"phone_number": number,
	})
}

// handleImportNumbers imports numbers from JSON text, a plain-text body or a CSV body
func (s *Server) handleImportNumbers(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var res pipeline.ImportResult
	switch mediaType {
	case "text/csv":
		res = s.proc.ImportCSV(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	case "text/plain":
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			s.errorFromErr(w, &ErrValidation{Field: "body", Message: err.Error()})
			return
		}
		res = s.proc.ImportNumbers(r.Context(), string(body))
	default:
		var req ImportRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			s.errorFromErr(w, err)
			return
		}
		res = s.proc.ImportNumbers(r.Context(), req.Text)
	}

	status := http.StatusOK
	if !res.Succeeded() {
		status = http.StatusBadRequest
	}
	s.jsonResponse(w, status, res)
}

// handleValidateNumbers validates candidates without storing them
func (s *Server) handleValidateNumbers(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.errorFromErr(w, err)
		return
	}

	candidates := append([]string{}, req.PhoneNumbers...)
	if req.Text != "" {
		candidates = append(candidates, phone.FindInText(req.Text)...)
	}

	v := s.proc.Validator()
	report := v.ValidateMany(candidates)
	resp := ValidateResponse{
		Valid:      report.Valid,
		Invalid:    report.Invalid,
		Duplicates: report.Duplicates,
		Statistics: v.Summarize(candidates),
	}
	if resp.Valid == nil {
		resp.Valid = []types.PhoneNumber{}
	}
	if resp.Invalid == nil {
		resp.Invalid = []types.PhoneNumber{}
	}
	if resp.Duplicates == nil {
		resp.Duplicates = []types.PhoneNumber{}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleCall dials one number
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.errorFromErr(w, err)
		return
	}
	if _, err := s.requireCaller(); err != nil {
		s.errorFromErr(w, err)
		return
	}
	number, err := s.proc.Validator().Normalize(req.PhoneNumber)
	if err != nil {
		s.errorFromErr(w, err)
		return
	}

	params := types.Parameters{types.ParamPhoneNumber: number}
	if req.Message != "" {
		params[types.ParamMessage] = req.Message
	}
	res := s.proc.Execute(r.Context(), types.ActionCallSpecific, params)
	s.jsonResponse(w, resultStatus(res, http.StatusBadGateway), res)
}

// handleBulkCall dials every stored number. With stream=true (or an
// Accept: text/event-stream header) progress is sent as server-sent events.
func (s *Server) handleBulkCall(w http.ResponseWriter, r *http.Request) {
	var req BulkCallRequest
	if err := s.decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		s.errorFromErr(w, err)
		return
	}
	orch, err := s.requireCaller()
	if err != nil {
		s.errorFromErr(w, err)
		return
	}

	stream := req.Stream || r.URL.Query().Get("stream") == "true" ||
		strings.Contains(r.Header.Get("Accept"), "text/event-stream")
	if !stream {
		params := types.Parameters{}
		if req.Message != "" {
			params[types.ParamMessage] = req.Message
		}
		if req.Delay != nil {
			params[types.ParamDelay] = *req.Delay
		}
		res := s.proc.Execute(r.Context(), types.ActionCallAll, params)
		s.jsonResponse(w, resultStatus(res, http.StatusUnprocessableEntity), res)
		return
	}

	records, err := s.store.GetAllNumbers(r.Context())
	if err != nil {
		s.errorFromErr(w, err)
		return
	}
	if len(records) == 0 {
		s.errorResponse(w, http.StatusUnprocessableEntity, "No phone numbers found in database. Please add numbers first.")
		return
	}
	numbers := make([]string, len(records))
	for i, rec := range records {
		numbers[i] = rec.Number
	}

	delay := s.cfg.CallDelay.Std()
	if req.Delay != nil {
		delay = time.Duration(*req.Delay) * time.Second
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	job := orch.BulkCallWithProgress(r.Context(), numbers, req.Message, delay, func(ev calling.ProgressEvent) {
		if err := sse.WriteProgress(ev); err != nil {
			log.Printf("server: failed to stream progress: %v", err)
		}
	})
	sse.WriteComplete(job)
}

// handleCallStatus refreshes one call from the provider
func (s *Server) handleCallStatus(w http.ResponseWriter, r *http.Request) {
	orch, err := s.requireCaller()
	if err != nil {
		s.errorFromErr(w, err)
		return
	}

	number := r.URL.Query().Get("phone_number")
	if number != "" {
		if number, err = s.proc.Validator().Normalize(number); err != nil {
			s.errorFromErr(w, err)
			return
		}
	}

	info, err := orch.RefreshStatus(r.Context(), r.PathValue("id"), number)
	if err != nil {
		s.errorFromErr(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, CallStatusResponse{
		CallID:    info.ID,
		Status:    info.Status,
		RawStatus: info.RawStatus,
		Duration:  info.Duration,
		StartTime: info.StartTime,
		EndTime:   info.EndTime,
	})
}

// handleCallLogs lists call attempts filtered by phone_number, status and limit
func (s *Server) handleCallLogs(w http.ResponseWriter, r *http.Request) {
	params := types.Parameters{}
	if number := r.URL.Query().Get("phone_number"); number != "" {
		normalized, err := s.proc.Validator().Normalize(number)
		if err != nil {
			s.errorFromErr(w, err)
			return
		}
		params[types.ParamPhoneNumber] = normalized
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if !types.CallStatus(status).Valid() {
			s.errorFromErr(w, &ErrValidation{Field: "status", Message: "unknown call status " + status})
			return
		}
		params[types.ParamStatus] = status
	}
	limit, ok, err := queryInt(r, "limit")
	if err != nil {
		s.errorFromErr(w, err)
		return
	}
	if ok {
		params[types.ParamLimit] = min(limit, store.MaxLogLimit)
	}

	res := s.proc.Execute(r.Context(), types.ActionViewLogs, params)
	s.jsonResponse(w, resultStatus(res, http.StatusInternalServerError), res)
}

// handleCallStatistics aggregates call attempts filtered by phone_number and days
func (s *Server) handleCallStatistics(w http.ResponseWriter, r *http.Request) {
	params := types.Parameters{}
	if number := r.URL.Query().Get("phone_number"); number != "" {
		normalized, err := s.proc.Validator().Normalize(number)
		if err != nil {
			s.errorFromErr(w, err)
			return
		}
		params[types.ParamPhoneNumber] = normalized
	}
	days, ok, err := queryInt(r, "days")
	if err != nil {
		s.errorFromErr(w, err)
		return
	}
	if ok {
		params[types.ParamDays] = days
	}

	res := s.proc.Execute(r.Context(), types.ActionGetStatistics, params)
	s.jsonResponse(w, resultStatus(res, http.StatusInternalServerError), res)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemStatus probes every collaborator
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	st := s.proc.SystemStatus(r.Context())
	status := http.StatusOK
	if st.Overall == pipeline.NotOperational {
		status = http.StatusServiceUnavailable
	}
	s.jsonResponse(w, status, st)
}
