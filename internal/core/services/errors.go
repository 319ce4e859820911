// Package services contains core business logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fetch/send taxonomy. Media errors are logged and
// never abort sibling message processing; send errors surface to the caller.
var (
	// ErrMediaMetadata indicates the first media hop (metadata GET) failed
	ErrMediaMetadata = errors.New("media metadata fetch failed")

	// ErrMediaContent indicates the second media hop (content GET) failed
	ErrMediaContent = errors.New("media content fetch failed")
)

// InputError is a caller mistake (missing or contradictory arguments,
// invalid JSON). Surfaced immediately, never retried, no network call made.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

// NewInputError builds an InputError with a formatted reason
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is (or wraps) an InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// SendAPIError is an upstream send failure carrying the platform's
// structured error envelope when one was available.
type SendAPIError struct {
	Title   string // error_user_title, or a generic title
	Message string // error.message, or the transport error text
	Err     error
}

func (e *SendAPIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

func (e *SendAPIError) Unwrap() error {
	return e.Err
}
