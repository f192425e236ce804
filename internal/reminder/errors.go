package reminder

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyUsername         = errors.New("reminder: username is required")
	ErrAlreadyStarted        = errors.New("reminder: engine already started")
	ErrNotStarted            = errors.New("reminder: engine not started")
	ErrStopped               = errors.New("reminder: engine stopped")
	ErrPollInFlight          = errors.New("reminder: poll already in flight")
	ErrPromptPending         = errors.New("reminder: permission prompt already pending")
	ErrUnsupportedCapability = errors.New("reminder: notifications are not supported")
)

// NetworkError means the event source could not be reached at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx answer from the event source.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Message)
}

// PermissionError is returned by a sink that refuses to show a notification
// or to run the permission prompt.
type PermissionError struct {
	Reason string
	Err    error
}

func (e *PermissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification permission: %s: %v", e.Reason, e.Err)
	}
	return "notification permission: " + e.Reason
}

func (e *PermissionError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a fetch failure the hourly cadence is
// expected to recover from.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.StatusCode >= 500 || srvErr.StatusCode == 429
	}
	return false
}
