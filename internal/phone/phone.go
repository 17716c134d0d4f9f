// Package phone cleans, validates and normalizes Indian phone numbers and
// pulls candidate numbers out of free text.
package phone

import (
	"regexp"
	"strings"

	"github.com/jonathan/autodialer/internal/types"
)

// CountryPrefix is prepended to every canonical number
const CountryPrefix = "+91"

// Rejection reasons
const (
	ReasonEmpty        = "Phone number must be a non-empty string"
	ReasonNoDigits     = "Phone number contains no valid digits"
	ReasonInvalid      = "Invalid Indian phone number format"
	ReasonTestModeOnly = "In test mode, only toll-free numbers allowed (1800 XXX XXXX)"
)

// minInvalidDigits is how many digits a rejected token needs before it is
// reported back as a number the user probably meant
const minInvalidDigits = 7

var (
	// The "+91" alternative is listed first so a canonical number always
	// splits as "+91" + national part, which keeps normalization idempotent.
	mobilePattern   = regexp.MustCompile(`^(?:\+91|91|0)?([6-9]\d{9})$`)
	tollFreePattern = regexp.MustCompile(`^(?:\+91|91|0)?(1800\d{7})$`)
	landlinePattern = regexp.MustCompile(`^(?:\+91|91|0)?(\d{2,4}\d{6,8})$`)

	nonDialable    = regexp.MustCompile(`[^\d+]`)
	digitRun       = regexp.MustCompile(`\+?\d+`)
	listSeparators = regexp.MustCompile(`[\s,;]+`)
)

// maxJoinedRuns bounds how many space- or dash-separated digit groups are
// joined when looking for a number written as "+91 1800 123 4567"
const maxJoinedRuns = 5

// Validator applies the number acceptance policy. In test mode only
// toll-free numbers are accepted.
type Validator struct {
	testMode bool
}

// NewValidator creates a validator with the given test-mode policy
func NewValidator(testMode bool) *Validator {
	return &Validator{testMode: testMode}
}

// TestMode reports whether the test-mode policy is active
func (v *Validator) TestMode() bool {
	return v.testMode
}

// Clean strips everything except digits and '+'
func Clean(s string) string {
	return nonDialable.ReplaceAllString(strings.TrimSpace(s), "")
}

// classify matches a cleaned number against the known shapes. Landlines are
// only considered when allowLandline is set.
func classify(cleaned string, allowLandline bool) (national string, kind types.NumberType, ok bool) {
	if m := mobilePattern.FindStringSubmatch(cleaned); m != nil {
		return m[1], types.NumberTypeMobile, true
	}
	if m := tollFreePattern.FindStringSubmatch(cleaned); m != nil {
		return m[1], types.NumberTypeTollFree, true
	}
	if allowLandline {
		if m := landlinePattern.FindStringSubmatch(cleaned); m != nil {
			return m[1], types.NumberTypeLandline, true
		}
	}
	return "", "", false
}

// Validate checks a single raw number against the policy. The result always
// carries a reason when Valid is false.
func (v *Validator) Validate(raw string) types.PhoneNumber {
	pn := types.PhoneNumber{Raw: raw}
	if strings.TrimSpace(raw) == "" {
		pn.Reason = ReasonEmpty
		return pn
	}

	pn.Cleaned = Clean(raw)
	if strings.Trim(pn.Cleaned, "+") == "" {
		pn.Reason = ReasonNoDigits
		return pn
	}

	if v.testMode {
		m := tollFreePattern.FindStringSubmatch(pn.Cleaned)
		if m == nil {
			pn.Reason = ReasonTestModeOnly
			return pn
		}
		pn.Normalized = CountryPrefix + m[1]
		pn.Type = types.NumberTypeTollFree
		pn.Valid = true
		return pn
	}

	national, kind, ok := classify(pn.Cleaned, true)
	if !ok {
		pn.Reason = ReasonInvalid
		return pn
	}
	pn.Normalized = CountryPrefix + national
	pn.Type = kind
	pn.Valid = true
	return pn
}

// Normalize returns the canonical form of raw or a *ValidationError
func (v *Validator) Normalize(raw string) (string, error) {
	pn := v.Validate(raw)
	if !pn.Valid {
		return "", &ValidationError{Number: raw, Reason: pn.Reason}
	}
	return pn.Normalized, nil
}

// IsTestNumber reports whether raw is toll-free shaped, regardless of policy
func IsTestNumber(raw string) bool {
	return tollFreePattern.MatchString(Clean(raw))
}

// TypeOf returns the number type under the current policy, or "invalid"
func (v *Validator) TypeOf(raw string) string {
	pn := v.Validate(raw)
	if !pn.Valid {
		return "invalid"
	}
	return string(pn.Type)
}

// FindInText returns every mobile or toll-free shaped number mentioned in
// free text, canonicalized and deduplicated in order of appearance. It does
// not apply the test-mode policy: a command like "add 9876543210" still
// yields the number so validation can explain why it is refused.
func FindInText(text string) []string {
	locs := digitRun.FindAllStringIndex(text, -1)
	var found []string
	seen := make(map[string]bool)

	for i := 0; i < len(locs); {
		joined := ""
		bestNational, bestEnd := "", -1
		for j := i; j < len(locs) && j < i+maxJoinedRuns; j++ {
			if j > i && !singleSeparator(text[locs[j-1][1]:locs[j][0]]) {
				break
			}
			run := text[locs[j][0]:locs[j][1]]
			if j > i && strings.HasPrefix(run, "+") {
				break
			}
			joined += run
			if national, _, ok := classify(joined, false); ok {
				bestNational, bestEnd = national, j
			}
		}
		if bestEnd < 0 {
			i++
			continue
		}
		normalized := CountryPrefix + bestNational
		if !seen[normalized] {
			seen[normalized] = true
			found = append(found, normalized)
		}
		i = bestEnd + 1
	}
	return found
}

func singleSeparator(gap string) bool {
	return gap == " " || gap == "-"
}

// ExtractMany splits a pasted blob on whitespace, commas, semicolons and
// newlines and validates each token independently. valid holds canonical
// numbers, invalid holds rejected tokens that still look like phone numbers.
// Both lists are deduplicated with first-seen order preserved.
func (v *Validator) ExtractMany(text string) (valid []string, invalid []string) {
	seenValid := make(map[string]bool)
	seenInvalid := make(map[string]bool)

	for _, token := range listSeparators.Split(text, -1) {
		if token == "" {
			continue
		}
		pn := v.Validate(token)
		if pn.Valid {
			if !seenValid[pn.Normalized] {
				seenValid[pn.Normalized] = true
				valid = append(valid, pn.Normalized)
			}
			continue
		}
		if countDigits(token) >= minInvalidDigits && !seenInvalid[token] {
			seenInvalid[token] = true
			invalid = append(invalid, token)
		}
	}
	return valid, invalid
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// Report groups a list of candidates by outcome
type Report struct {
	Valid      []types.PhoneNumber `json:"valid"`
	Invalid    []types.PhoneNumber `json:"invalid"`
	Duplicates []types.PhoneNumber `json:"duplicates"`
}

// ValidateMany validates candidates and separates repeats of an already
// accepted number into Duplicates
func (v *Validator) ValidateMany(candidates []string) Report {
	var report Report
	seen := make(map[string]bool)
	for _, c := range candidates {
		pn := v.Validate(c)
		switch {
		case !pn.Valid:
			report.Invalid = append(report.Invalid, pn)
		case seen[pn.Normalized]:
			report.Duplicates = append(report.Duplicates, pn)
		default:
			seen[pn.Normalized] = true
			report.Valid = append(report.Valid, pn)
		}
	}
	return report
}

// Summarize counts candidates by validity and number type
func (v *Validator) Summarize(candidates []string) types.NumberStatistics {
	report := v.ValidateMany(candidates)
	stats := types.NumberStatistics{
		TotalInput:     len(candidates),
		ValidCount:     len(report.Valid),
		InvalidCount:   len(report.Invalid),
		DuplicateCount: len(report.Duplicates),
	}
	for _, pn := range report.Valid {
		switch pn.Type {
		case types.NumberTypeMobile:
			stats.MobileCount++
		case types.NumberTypeTollFree:
			stats.TollFreeCount++
		case types.NumberTypeLandline:
			stats.LandlineCount++
		}
	}
	return stats
}

// FormatForDisplay renders mobiles as "+91 98765 43210" and toll-free numbers
// as "+91 1800 123 4567". Invalid input is returned unchanged.
func (v *Validator) FormatForDisplay(raw string) string {
	pn := v.Validate(raw)
	if !pn.Valid {
		return raw
	}
	n := pn.Normalized
	switch {
	case pn.Type == types.NumberTypeMobile && len(n) == 13:
		return n[:3] + " " + n[3:8] + " " + n[8:]
	case pn.Type == types.NumberTypeTollFree && len(n) == 14:
		return n[:3] + " " + n[3:7] + " " + n[7:10] + " " + n[10:]
	}
	return n
}
