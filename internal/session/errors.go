package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/negosyoko/nena/internal/api"
)

var (
	// ErrInFlight rejects a call while the same operation is still running.
	ErrInFlight = errors.New("operation already in progress")

	// ErrDiscarded is returned when the controller was torn down or reset
	// while the call was in flight. The result was not applied.
	ErrDiscarded = errors.New("result discarded after session reset")

	// ErrClosed is returned by calls on a closed controller.
	ErrClosed = errors.New("session controller closed")

	// ErrPINLocked is matched by LockoutError.
	ErrPINLocked = errors.New("too many incorrect PIN attempts")

	// ErrUnexpectedStatus reports a 2xx auth envelope whose user_status does
	// not fit the operation.
	ErrUnexpectedStatus = errors.New("unexpected user status")

	// ErrMissingToken reports a successful login that carried no access token.
	ErrMissingToken = errors.New("login response carried no access token")
)

// ValidationError is a local input check failure. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// StateError reports an operation attempted in the wrong phase.
type StateError struct {
	Op    Op
	Phase Phase
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s is not allowed while %s", e.Op, e.Phase)
}

// LockoutError rejects PIN logins locally until RetryAfter has elapsed.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("%v, try again in %s", ErrPINLocked, e.RetryAfter.Round(time.Second))
}

func (e *LockoutError) Unwrap() error { return ErrPINLocked }

// Message turns any controller error into the one line shown to the user.
// Backend error bodies are surfaced verbatim.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		ve *ValidationError
		be *api.BackendError
		ne *api.NetworkError
		le *LockoutError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Reason
	case errors.As(err, &be):
		return be.Message()
	case errors.As(err, &le):
		return fmt.Sprintf("Too many incorrect PIN attempts. Try again in %s.", le.RetryAfter.Round(time.Second))
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	case errors.As(err, &ne):
		return "Unable to reach the server. Check your connection and try again."
	case errors.Is(err, api.ErrEmptyResponse):
		return "The server returned an empty response."
	case errors.Is(err, api.ErrMalformedResponse), errors.Is(err, ErrUnexpectedStatus), errors.Is(err, ErrMissingToken):
		return "The server returned an unexpected response."
	default:
		return err.Error()
	}
}
