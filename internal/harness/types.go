package harness

import (
	"fmt"
	"strings"
)

// Outcome is what running a scenario produced.
type Outcome struct {
	Scenario string

	// Plan is the explain output of the prepared statement. Empty when
	// preparation failed.
	Plan string

	// State is the terminal execution state, or empty when the statement
	// never ran.
	State string

	// Result is the rendered value or tuple list.
	Result string

	// ErrorCode is the compile error code, if preparation failed.
	ErrorCode string

	// Err is the preparation or execution error.
	Err error
}

// Snapshot renders the outcome in the golden file format.
func (o *Outcome) Snapshot() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", o.Scenario)
	if o.ErrorCode != "" {
		fmt.Fprintf(&b, "error: %s\n", o.ErrorCode)
		return []byte(b.String())
	}
	fmt.Fprintf(&b, "state: %s\n", o.State)
	if o.Err != nil {
		fmt.Fprintf(&b, "error: %s\n", o.Err)
		return []byte(b.String())
	}
	fmt.Fprintf(&b, "result: %s\n", o.Result)
	return []byte(b.String())
}

// Report is the outcome of checking a scenario's expect clause.
type Report struct {
	Pass   bool
	Errors []string
}

func newReport() *Report {
	return &Report{Pass: true}
}

func (r *Report) fail(format string, args ...any) {
	r.Pass = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
