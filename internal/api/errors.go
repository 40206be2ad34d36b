package api

import (
	"fmt"

	"github.com/nixlim/herd-top/internal/errors"
)

// TransportError means no HTTP response was received: DNS failure,
// connection reset, timeout, or a cancelled rate-limit wait.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FieldError is one entry of a validation error body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ResponseError is a non-2xx response from the backend.
type ResponseError struct {
	StatusCode  int
	Message     string
	FieldErrors []FieldError
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// IsTransport reports whether err means the request never got a response.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a
// ResponseError.
func StatusCode(err error) int {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// FieldErrors returns the validation errors carried by err, if any.
func FieldErrors(err error) []FieldError {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.FieldErrors
	}
	return nil
}
