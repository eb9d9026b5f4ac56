package statement

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/execution"
)

// Result is the outcome of one Execute call.
type Result struct {
	ExecutionID int64
	TraceID     string
	State       execution.State
	Elapsed     time.Duration

	// Value is the boxed result of a non-set expression.
	Value any

	// Tuples is the result of a set expression.
	Tuples *calc.TupleList
}

func newResult(e *execution.Execution, v any) *Result {
	r := &Result{
		ExecutionID: e.ID(),
		TraceID:     e.TraceID(),
		State:       e.State(),
		Elapsed:     e.Elapsed(),
	}
	if l, ok := v.(*calc.TupleList); ok {
		r.Tuples = l
	} else {
		r.Value = v
	}
	return r
}

// String renders the value the way explain output renders constants.
func (r *Result) String() string {
	if r.Tuples != nil {
		return r.Tuples.String()
	}
	return calc.FormatValue(r.Value)
}

var (
	// ErrUnknownParameter is returned when binding a name the statement
	// does not declare.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrParameterValue is returned when a value cannot be converted to the
	// parameter's type.
	ErrParameterValue = errors.New("invalid parameter value")
)

// ParameterError reports a failed parameter binding.
type ParameterError struct {
	Name string
	Err  error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %q: %v", e.Name, e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }
