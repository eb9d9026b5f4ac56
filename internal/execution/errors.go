package execution

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeCanceled indicates the execution was canceled by a caller.
	ErrCodeCanceled ErrorCode = "QUERY_CANCELED"

	// ErrCodeTimeout indicates the execution ran past its timeout.
	ErrCodeTimeout ErrorCode = "QUERY_TIMEOUT"

	// ErrCodeFailed indicates the execution ended with an evaluation error.
	ErrCodeFailed ErrorCode = "EXECUTION_FAILED"

	// ErrCodeNoExecution indicates code asked for the current execution
	// outside of a Run scope. This is an integration bug.
	ErrCodeNoExecution ErrorCode = "NO_EXECUTION_BOUND"
)

// Sentinels matched by ExecutionError through errors.Is.
var (
	ErrCanceled    = errors.New("query canceled")
	ErrTimeout     = errors.New("query timed out")
	ErrFailed      = errors.New("execution failed")
	ErrNoExecution = errors.New("no execution bound to context")
)

// ExecutionError is returned by checkpoints once an execution has left
// RUNNING, and by Current when nothing is bound.
type ExecutionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ExecutionID identifies the execution (0 for ErrCodeNoExecution).
	ExecutionID int64

	// Timeout is the effective timeout of the execution.
	Timeout time.Duration

	// Elapsed is the time between start and the terminal transition.
	Elapsed time.Duration

	// Cause is the failure recorded by Fail, if any.
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s (execution=%d): %v", e.Code, e.Message, e.ExecutionID, e.Cause)
	case e.ExecutionID != 0:
		return fmt.Sprintf("%s: %s (execution=%d)", e.Code, e.Message, e.ExecutionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the recorded failure.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's code.
func (e *ExecutionError) Is(target error) bool {
	switch target {
	case ErrCanceled:
		return e.Code == ErrCodeCanceled
	case ErrTimeout:
		return e.Code == ErrCodeTimeout
	case ErrFailed:
		return e.Code == ErrCodeFailed
	case ErrNoExecution:
		return e.Code == ErrCodeNoExecution
	}
	return false
}

// IsCanceled reports whether err signals a user cancel.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsTimeout reports whether err signals a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNoExecution reports whether err signals a missing binding.
func IsNoExecution(err error) bool {
	return errors.Is(err, ErrNoExecution)
}

// CodeOf extracts the error code, or "" if err is not an ExecutionError.
func CodeOf(err error) ErrorCode {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func newNoExecutionError() *ExecutionError {
	return &ExecutionError{
		Code:    ErrCodeNoExecution,
		Message: "current execution requested outside of execution.Run",
	}
}
