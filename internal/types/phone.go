// Package types provides type definitions for structured data used throughout the autodialer system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// NumberType classifies an accepted phone number
type NumberType string

// NumberType constants
const (
	NumberTypeMobile   NumberType = "mobile"
	NumberTypeTollFree NumberType = "toll_free"
	NumberTypeLandline NumberType = "landline"
)

// PhoneNumber is the outcome of validating one raw candidate
type PhoneNumber struct {
	Raw        string     `json:"raw"`
	Cleaned    string     `json:"cleaned"`
	Normalized string     `json:"normalized,omitempty"`
	Type       NumberType `json:"type,omitempty"`
	Valid      bool       `json:"valid"`
	Reason     string     `json:"reason,omitempty"`
}

// NumberStatistics counts candidates by validity and type
type NumberStatistics struct {
	TotalInput     int `json:"total_input"`
	ValidCount     int `json:"valid_count"`
	InvalidCount   int `json:"invalid_count"`
	DuplicateCount int `json:"duplicate_count"`
	MobileCount    int `json:"mobile_count"`
	TollFreeCount  int `json:"toll_free_count"`
	LandlineCount  int `json:"landline_count"`
}
