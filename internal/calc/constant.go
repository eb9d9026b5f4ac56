package calc

import (
	"fmt"
	"time"

	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// Constant is a calc whose value is fixed at compile time. It implements
// every scalar and catalog typed interface so the compiler can use it
// wherever its declared type fits.
type Constant struct {
	Base
	value any
}

// NewConstant creates a constant of type typ. A nil value is the null of
// that type.
func NewConstant(typ types.Type, value any) *Constant {
	return &Constant{Base: NewBase("Constant", typ, StyleValue), value: value}
}

// NullConstant returns the null of typ.
func NullConstant(typ types.Type) *Constant {
	return NewConstant(typ, nil)
}

// Value returns the constant's boxed value.
func (c *Constant) Value() any { return c.value }

// ExplainProps implements Explainer.
func (c *Constant) ExplainProps() []string {
	return []string{"value=" + FormatValue(c.value)}
}

// DependsOn is always false: a constant ignores the evaluation context.
func (*Constant) DependsOn(olap.Hierarchy) bool { return false }

func (c *Constant) Evaluate(Evaluator) (any, error) { return c.value, nil }

func (c *Constant) EvaluateDouble(Evaluator) (float64, error) { return ToDouble(c.value) }

func (c *Constant) EvaluateInteger(Evaluator) (int64, error) { return ToInteger(c.value) }

func (c *Constant) EvaluateString(Evaluator) (string, error) { return ToString(c.value) }

func (c *Constant) EvaluateBoolean(Evaluator) (bool, error) { return ToBoolean(c.value) }

func (c *Constant) EvaluateDateTime(Evaluator) (time.Time, error) { return ToDateTime(c.value) }

func (c *Constant) EvaluateMember(Evaluator) (olap.Member, error) {
	switch v := c.value.(type) {
	case nil:
		return nil, nil
	case olap.Member:
		return v, nil
	}
	return nil, fmt.Errorf("constant %v is not a member", c.value)
}

func (c *Constant) EvaluateTuple(Evaluator) (olap.Tuple, error) {
	switch v := c.value.(type) {
	case nil:
		return nil, nil
	case olap.Tuple:
		return v, nil
	case olap.Member:
		return olap.Tuple{v}, nil
	}
	return nil, fmt.Errorf("constant %v is not a tuple", c.value)
}

func (c *Constant) EvaluateLevel(Evaluator) (olap.Level, error) {
	if l, ok := c.value.(olap.Level); ok {
		return l, nil
	}
	return nil, fmt.Errorf("constant %v is not a level", c.value)
}

func (c *Constant) EvaluateHierarchy(Evaluator) (olap.Hierarchy, error) {
	if h, ok := c.value.(olap.Hierarchy); ok {
		return h, nil
	}
	return nil, fmt.Errorf("constant %v is not a hierarchy", c.value)
}

func (c *Constant) EvaluateDimension(Evaluator) (olap.Dimension, error) {
	if d, ok := c.value.(olap.Dimension); ok {
		return d, nil
	}
	return nil, fmt.Errorf("constant %v is not a dimension", c.value)
}
