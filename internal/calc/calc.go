package calc

import (
	"context"
	"time"

	"github.com/roach88/cubist/internal/execution"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// Calc is a compiled plan node.
type Calc interface {
	calcNode() // implemented by embedding Base

	// Evaluate returns the node's value boxed. Scalars are float64, int64,
	// string, bool or time.Time (nil for an empty cell); members are
	// olap.Member, tuples olap.Tuple, sets *TupleList or TupleCursor
	// depending on ResultStyle.
	Evaluate(ev Evaluator) (any, error)

	Type() types.Type
	ResultStyle() ResultStyle

	// DependsOn reports whether the result may change when the current
	// member of h changes. Answering true is always safe.
	DependsOn(h olap.Hierarchy) bool

	Name() string
	Children() []Calc
}

// DoubleCalc evaluates to a float64; DoubleNull stands for empty.
type DoubleCalc interface {
	Calc
	EvaluateDouble(ev Evaluator) (float64, error)
}

// IntegerCalc evaluates to an int64; IntegerNull stands for empty.
type IntegerCalc interface {
	Calc
	EvaluateInteger(ev Evaluator) (int64, error)
}

// StringCalc evaluates to a string; the empty string stands for empty.
type StringCalc interface {
	Calc
	EvaluateString(ev Evaluator) (string, error)
}

// BooleanCalc evaluates to a bool; empty is false.
type BooleanCalc interface {
	Calc
	EvaluateBoolean(ev Evaluator) (bool, error)
}

// DateTimeCalc evaluates to a time; the zero time stands for empty.
type DateTimeCalc interface {
	Calc
	EvaluateDateTime(ev Evaluator) (time.Time, error)
}

// MemberCalc evaluates to a member, possibly null.
type MemberCalc interface {
	Calc
	EvaluateMember(ev Evaluator) (olap.Member, error)
}

// TupleCalc evaluates to a tuple, possibly null.
type TupleCalc interface {
	Calc
	EvaluateTuple(ev Evaluator) (olap.Tuple, error)
}

// ListCalc evaluates to a materialized list. When ResultStyle is
// StyleMutableList the list belongs to the caller.
type ListCalc interface {
	Calc
	EvaluateList(ev Evaluator) (*TupleList, error)
}

// IterCalc evaluates to a single-pass cursor.
type IterCalc interface {
	Calc
	EvaluateIterable(ev Evaluator) (TupleCursor, error)
}

// LevelCalc evaluates to a level.
type LevelCalc interface {
	Calc
	EvaluateLevel(ev Evaluator) (olap.Level, error)
}

// HierarchyCalc evaluates to a hierarchy.
type HierarchyCalc interface {
	Calc
	EvaluateHierarchy(ev Evaluator) (olap.Hierarchy, error)
}

// DimensionCalc evaluates to a dimension.
type DimensionCalc interface {
	Calc
	EvaluateDimension(ev Evaluator) (olap.Dimension, error)
}

// Kind is the closed set of result categories.
type Kind int

const (
	KindValue Kind = iota
	KindDouble
	KindInteger
	KindString
	KindBoolean
	KindDateTime
	KindMember
	KindTuple
	KindList
	KindIterable
	KindLevel
	KindHierarchy
	KindDimension
)

var kindNames = [...]string{
	KindValue:     "value",
	KindDouble:    "double",
	KindInteger:   "integer",
	KindString:    "string",
	KindBoolean:   "boolean",
	KindDateTime:  "datetime",
	KindMember:    "member",
	KindTuple:     "tuple",
	KindList:      "list",
	KindIterable:  "iterable",
	KindLevel:     "level",
	KindHierarchy: "hierarchy",
	KindDimension: "dimension",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf returns the result category a calc's declared type and style
// place it in. The calc implements the matching typed interface.
func KindOf(c Calc) Kind {
	switch t := c.Type().(type) {
	case types.ScalarType:
		switch t.Kind {
		case types.CategoryNumeric:
			return KindDouble
		case types.CategoryInteger:
			return KindInteger
		case types.CategoryString, types.CategorySymbol:
			return KindString
		case types.CategoryBoolean:
			return KindBoolean
		case types.CategoryDateTime:
			return KindDateTime
		}
		return KindValue
	case types.MemberType:
		return KindMember
	case types.TupleType:
		return KindTuple
	case types.SetType:
		if c.ResultStyle() == StyleIterable {
			return KindIterable
		}
		return KindList
	case types.LevelType:
		return KindLevel
	case types.HierarchyType:
		return KindHierarchy
	case types.DimensionType:
		return KindDimension
	case types.CubeType:
		return KindValue
	}
	return KindValue
}

// Base carries the static description shared by every calc. Nodes embed
// it and add their evaluation methods.
type Base struct {
	name     string
	typ      types.Type
	style    ResultStyle
	children []Calc
}

// NewBase describes a node. Children are listed in evaluation order.
func NewBase(name string, typ types.Type, style ResultStyle, children ...Calc) Base {
	return Base{name: name, typ: typ, style: style, children: children}
}

func (Base) calcNode() {}

func (b Base) Name() string             { return b.name }
func (b Base) Type() types.Type         { return b.typ }
func (b Base) ResultStyle() ResultStyle { return b.style }
func (b Base) Children() []Calc         { return b.children }

// DependsOn is true if any child depends on h. Leaves that read the
// evaluator's context override it.
func (b Base) DependsOn(h olap.Hierarchy) bool {
	for _, c := range b.children {
		if c.DependsOn(h) {
			return true
		}
	}
	return false
}

// Evaluator supplies the dimensional context calcs are evaluated against.
//
// It is consumed, not owned, by this package: each evaluation receives the
// evaluator chosen by the orchestrator.
type Evaluator interface {
	// Context carries the execution the evaluation runs under.
	Context() context.Context

	Cube() olap.Cube
	SchemaReader() olap.SchemaReader

	// CurrentMember returns the context member of h.
	CurrentMember(h olap.Hierarchy) olap.Member

	// SetContext makes m the current member of its hierarchy and returns
	// the member it replaced.
	SetContext(m olap.Member) olap.Member

	// Savepoint marks the current context; Restore rolls every SetContext
	// made since back.
	Savepoint() int
	Restore(savepoint int)

	// EvaluateCurrent returns the cell at the current context, nil if empty.
	EvaluateCurrent() (any, error)
}

// Checkpoint is the cooperative cancellation point evaluation loops call.
// It fails with a cancel or timeout error once the execution bound to the
// evaluator's context has stopped, and with a no-execution error if the
// evaluation runs outside execution.Run.
func Checkpoint(ev Evaluator) error {
	return execution.CheckCancelOrTimeout(ev.Context())
}

// WithContext calls fn with members made current, restoring the previous
// context afterwards. Nil members are skipped.
func WithContext(ev Evaluator, fn func() error, members ...olap.Member) error {
	sp := ev.Savepoint()
	defer ev.Restore(sp)
	for _, m := range members {
		if m != nil {
			ev.SetContext(m)
		}
	}
	return fn()
}
