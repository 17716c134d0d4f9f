// Package server provides the HTTP REST API for the autodialer.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/autodialer/internal/config"
	"github.com/jonathan/autodialer/internal/parsing"
	"github.com/jonathan/autodialer/internal/phone"
	"github.com/jonathan/autodialer/internal/store"
	"github.com/jonathan/autodialer/internal/telephony"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUnavailable indicates a collaborator the request needs is not configured
type ErrUnavailable struct {
	Component string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s not available", e.Component)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	}

	var (
		validationErr *ErrValidation
		phoneErr      *phone.ValidationError
		commandErr    *parsing.ValidationError
		configErr     *config.ConfigurationError
		unavailable   *ErrUnavailable
		providerErr   *telephony.ProviderError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &phoneErr), errors.As(err, &commandErr):
		return http.StatusBadRequest
	case errors.As(err, &configErr), errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &providerErr):
		if providerErr.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		if providerErr.Code == 0 && providerErr.Status == 0 && providerErr.Cause == nil {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
