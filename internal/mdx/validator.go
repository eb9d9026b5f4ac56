package mdx

import (
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// Parameter is a named, typed slot whose value is supplied at execution
// time. Default must be an expression of a type convertible to Type.
type Parameter struct {
	Name        string
	Type        types.Type
	Default     Exp
	Description string
}

// Validator is the name and type resolution service produced by the
// upstream validation step.
type Validator interface {
	// Cube is the cube the query is validated against.
	Cube() olap.Cube

	// LookupParameter finds a parameter defined by the statement.
	// Names compare case-insensitively.
	LookupParameter(name string) (*Parameter, bool)
}
