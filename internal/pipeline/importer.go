package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/types"
)

// ImportResult reports what a bulk import did with each candidate
type ImportResult struct {
	Status     string                 `json:"status"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Added      []string               `json:"added"`
	Duplicates []string               `json:"duplicates"`
	Invalid    []string               `json:"invalid"`
	Errors     []string               `json:"errors"`
	Statistics types.NumberStatistics `json:"statistics"`
}

// Succeeded reports whether the import ran
func (r ImportResult) Succeeded() bool {
	return r.Status == "success"
}

func importFailure(msg string) ImportResult {
	return ImportResult{
		Status:     "error",
		Error:      msg,
		Added:      []string{},
		Duplicates: []string{},
		Invalid:    []string{},
		Errors:     []string{},
	}
}

// ImportNumbers extracts every phone number from a pasted blob and stores the
// valid ones. Numbers already stored are reported as duplicates.
func (p *Processor) ImportNumbers(ctx context.Context, text string) ImportResult {
	if strings.TrimSpace(text) == "" {
		return importFailure("No text input provided")
	}
	valid, invalid := p.validator.ExtractMany(text)
	return p.importCandidates(ctx, valid, invalid)
}

// ImportCSV reads phone numbers from CSV data. Every cell is a candidate and
// cells without digits, such as a header row, are ignored.
func (p *Processor) ImportCSV(ctx context.Context, r io.Reader) ImportResult {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var cells []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("pipeline: failed to read CSV import: %v", err)
			return importFailure(fmt.Sprintf("Failed to read CSV: %v", err))
		}
		for _, cell := range record {
			if cleaned := phone.Clean(cell); cleaned != "" && cleaned != "+" {
				cells = append(cells, cleaned)
			}
		}
	}
	if len(cells) == 0 {
		return importFailure("No phone numbers found in the file")
	}
	valid, invalid := p.validator.ExtractMany(strings.Join(cells, "\n"))
	return p.importCandidates(ctx, valid, invalid)
}

func (p *Processor) importCandidates(ctx context.Context, valid, invalid []string) ImportResult {
	total := len(valid) + len(invalid)
	if total == 0 {
		return importFailure("No phone numbers found in the text")
	}
	if total > p.maxNumbers {
		return importFailure(fmt.Sprintf("Too many numbers. Maximum allowed: %d", p.maxNumbers))
	}

	res := ImportResult{
		Status:     "success",
		Added:      []string{},
		Duplicates: []string{},
		Invalid:    append([]string{}, invalid...),
		Errors:     []string{},
		Statistics: p.validator.Summarize(append(append([]string{}, valid...), invalid...)),
	}
	for _, number := range valid {
		if _, err := p.store.AddNumber(ctx, number); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				res.Duplicates = append(res.Duplicates, number)
				continue
			}
			log.Printf("pipeline: failed to import %s: %v", number, err)
			res.Errors = append(res.Errors, number)
			continue
		}
		res.Added = append(res.Added, number)
	}

	res.Message = fmt.Sprintf("Import completed: %d added, %d already existed, %d invalid",
		len(res.Added), len(res.Duplicates), len(res.Invalid))
	if len(res.Errors) > 0 {
		res.Message += fmt.Sprintf(", %d failed", len(res.Errors))
	}
	log.Printf("pipeline: %s", res.Message)
	return res
}
