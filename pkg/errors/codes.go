package errors

import "fmt"

// ErrorCode represents a unique identifier for specific error conditions in the watcher.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001
	ErrCodeConfigRead    ErrorCode = 1002

	// Port selection
	ErrCodeNoFreePort ErrorCode = 2001

	// Transport handshake
	ErrCodeBindFailed         ErrorCode = 3001
	ErrCodeAcceptFailed       ErrorCode = 3002
	ErrCodeHandshakeExhausted ErrorCode = 3003

	// Child process
	ErrCodeSpawnFailed ErrorCode = 4001
)

// WatcherError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type WatcherError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *WatcherError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *WatcherError) Unwrap() error {
	return e.Err
}

// New creates a new WatcherError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &WatcherError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// CodeOf returns the code of the first WatcherError in err's chain,
// or ErrCodeUnknown when there is none.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if we, ok := err.(*WatcherError); ok {
			return we.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCodeUnknown
}

// Personal.AI order the ending
