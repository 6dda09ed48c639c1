package connectors

import (
	"errors"
)

// RemoteError wraps errors from calls to a remote store and indicates if they're
// retryable.
type RemoteError struct {
	Err       error
	Retryable bool
}

func (e *RemoteError) Error() string {
	return e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps an error as retryable
func NewRetryableError(err error) *RemoteError {
	return &RemoteError{
		Err:       err,
		Retryable: true,
	}
}

// NewTerminalError wraps an error as non-retryable
func NewTerminalError(err error) *RemoteError {
	return &RemoteError{
		Err:       err,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable. Only errors explicitly marked
// retryable are retried.
func IsRetryable(err error) bool {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Retryable
	}
	return false
}
