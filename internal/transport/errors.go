package transport

import (
	"errors"
	"fmt"
)

// Error wraps a failure to talk to the provider, as opposed to the
// provider rejecting the message.
type Error struct {
	// Provider is the name of the transport that failed.
	Provider string
	// Op is the step that failed, such as "dial" or "data".
	Op string
	// Code is the provider's status code, when one was returned.
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s: %d %v", e.Provider, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, a *Error.
func IsTransportError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
