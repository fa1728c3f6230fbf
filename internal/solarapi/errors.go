package solarapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies a failed adapter operation. Categories are part of
// the response contract: the UI renders vendor-outage messaging and
// configuration-missing messaging differently based on them.
type Category string

const (
	// CategoryAuth means the vendor rejected the credentials under both auth modes
	CategoryAuth Category = "auth_error"
	// CategoryTimeout means the network call exceeded its deadline after exhausting retries
	CategoryTimeout Category = "timeout"
	// CategoryUpstream means the vendor returned a persistent non-2xx status
	CategoryUpstream Category = "upstream_error"
	// CategoryParse means the vendor response was not valid JSON
	CategoryParse Category = "parse_error"
	// CategoryNotConfigured means no credentials are on file for the tenant
	CategoryNotConfigured Category = "not_configured"
	// CategoryValidation means a required input field was missing or malformed
	CategoryValidation Category = "validation_error"
	// CategoryUnknown is the catch-all for unclassified failures
	CategoryUnknown Category = "unknown_error"
)

// Error is a classified adapter failure. HTTPStatus is the vendor-side
// status when one was observed, zero otherwise.
type Error struct {
	Category   Category
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Category)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Code returns the error tag recorded on the health row, e.g. "auth_error:401"
func (e *Error) Code() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s:%d", e.Category, e.HTTPStatus)
	}
	return string(e.Category)
}

// ResponseStatus maps the category to the HTTP status returned to the caller
func (e *Error) ResponseStatus() int {
	switch e.Category {
	case CategoryAuth:
		return http.StatusUnauthorized
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	case CategoryUpstream, CategoryParse:
		return http.StatusBadGateway
	case CategoryValidation, CategoryNotConfigured:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds a classified error
func NewError(category Category, httpStatus int, format string, args ...interface{}) *Error {
	return &Error{
		Category:   category,
		HTTPStatus: httpStatus,
		Message:    fmt.Sprintf(format, args...),
	}
}

// AsError extracts a classified error, wrapping anything else as unknown_error
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Category: CategoryUnknown, Message: err.Error()}
}
