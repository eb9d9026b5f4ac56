package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/cubist/internal/mdx"
)

// Compile error codes (E200-E299)
const (
	ErrIncompatibleType  = "E200" // expression type cannot be converted to the required type
	ErrMalformedConstant = "E201" // argument must be a constant of a given shape
	ErrParameterType     = "E202" // parameter default does not match the declared type
	ErrUnknownParameter  = "E203" // parameter reference to an undefined parameter
	ErrUnknownFunction   = "E204" // no function with that name and syntax
	ErrUnsupportedExp    = "E205" // expression kind has no compilation strategy
	ErrArityMismatch     = "E206" // wrong number of arguments or tuple arity
)

// CompileError aborts a compilation. No partial calc tree is returned with
// it.
type CompileError struct {
	Code    string
	Message string

	// Exp is the expression being compiled, if known.
	Exp mdx.Exp

	// Parameter is set for parameter errors.
	Parameter string

	// Expected and Actual describe type mismatches.
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Parameter != "" {
		msg += fmt.Sprintf(" (parameter %q)", e.Parameter)
	}
	if e.Expected != "" || e.Actual != "" {
		msg += fmt.Sprintf(": expected %s, got %s", e.Expected, e.Actual)
	}
	if e.Exp != nil {
		msg += " in " + e.Exp.String()
	}
	return msg
}

// IsCompileError reports whether err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// CodeOf returns the code of a CompileError, or "" for other errors.
func CodeOf(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func errorf(code string, e mdx.Exp, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Exp: e, Message: fmt.Sprintf(format, args...)}
}

func incompatible(e mdx.Exp, expected string) *CompileError {
	actual := "nil"
	if e != nil && e.Type() != nil {
		actual = e.Type().String()
	}
	return &CompileError{
		Code:     ErrIncompatibleType,
		Message:  "incompatible type",
		Exp:      e,
		Expected: expected,
		Actual:   actual,
	}
}
