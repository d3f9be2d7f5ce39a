package provider

import (
	"github.com/pkg/errors"
)

// Error is a failure reported by the data provider itself. Message is shown
// to the client verbatim.
type Error struct {
	Provider string
	Message  string
}

func (e *Error) Error() string {
	return e.Message
}

// ParseError is returned when a provider response body could not be decoded.
type ParseError struct {
	Provider string
	Body     string
	Cause    error
}

func (e *ParseError) Error() string {
	return "Failed to parse response: " + e.Body
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsProviderError reports whether err originates from a data provider,
// either as a reported failure or an undecodable response.
func IsProviderError(err error) bool {
	var pe *Error
	var parseErr *ParseError
	return errors.As(err, &pe) || errors.As(err, &parseErr)
}
