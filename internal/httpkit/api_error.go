// Package httpkit provides the response-state middleware and request helpers
// shared by every route of the portfolio API.
//
// This file contains the error type written to clients. Bodies are flat
// {"error": ..., "message": ...} objects so the frontend can show the message
// directly.
package httpkit

import (
	"net/http"
)

// APIError represents a structured API error response.
type APIError struct {
	Title   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is implements errors.Is for comparing error types.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Title == t.Title
}

// With returns a copy of the error with a custom message.
func (e *APIError) With(message string) *APIError {
	if e == nil {
		return nil
	}
	dup := *e
	dup.Message = message
	return &dup
}

// WithCode returns a copy of the error with a custom title, message and machine-readable code.
func (e *APIError) WithCode(title, message, code string) *APIError {
	if e == nil {
		return nil
	}
	dup := *e
	dup.Title = title
	dup.Message = message
	dup.Code = code
	return &dup
}

// Predefined sentinel errors
var (
	ErrBadRequest         = &APIError{Title: "Bad request", Message: "Bad request", Status: http.StatusBadRequest}
	ErrForbidden          = &APIError{Title: "Forbidden", Message: "Forbidden", Status: http.StatusForbidden}
	ErrNotFound           = &APIError{Title: "Not found", Message: "The requested endpoint does not exist", Status: http.StatusNotFound}
	ErrMethodNotAllowed   = &APIError{Title: "Method not allowed", Message: "Method not allowed", Status: http.StatusMethodNotAllowed}
	ErrPayloadTooLarge    = &APIError{Title: "Payload too large", Message: "Request body too large", Status: http.StatusRequestEntityTooLarge}
	ErrRateLimited        = &APIError{Title: "Too many requests", Message: "Rate limit exceeded", Status: http.StatusTooManyRequests}
	ErrInternal           = &APIError{Title: "Internal server error", Message: "An unexpected error occurred", Status: http.StatusInternalServerError}
	ErrServiceUnavailable = &APIError{Title: "Service unavailable", Message: "Service is currently unavailable. Please try again later.", Status: http.StatusServiceUnavailable}
)
