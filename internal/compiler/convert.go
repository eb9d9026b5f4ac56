package compiler

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// compileScalarAs compiles e to a scalar calc of category to, inserting
// the implicit conversions allowed by types.CanConvert.
func (c *Compiler) compileScalarAs(e mdx.Exp, to types.Category) (calc.Calc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	if _, ok := types.CanConvert(e.Type(), to); !ok {
		return nil, incompatible(e, to.String())
	}

	var x calc.Calc
	switch e.Type().Category() {
	case types.CategoryMember, types.CategoryHierarchy, types.CategoryDimension:
		m, err := c.CompileMember(e)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("implicit conversion", "exp", e.String(), "to", "current measure")
		x = newMemberValue(m)
	case types.CategoryTuple:
		t, err := c.CompileTuple(e)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("implicit conversion", "exp", e.String(), "to", "current measure")
		x = newTupleValue(t)
	default:
		var err error
		x, err = c.WithResultStyles(calc.StylesValue).Compile(e)
		if err != nil {
			return nil, err
		}
	}
	return coerce(x, to, e)
}

// coerce wraps x so that it evaluates to category to. Constants are
// converted at compile time.
func coerce(x calc.Calc, to types.Category, e mdx.Exp) (calc.Calc, error) {
	from := x.Type().Category()
	if from == to || to == types.CategoryValue {
		return x, nil
	}
	target := types.ScalarType{Kind: to}
	if k, ok := x.(*calc.Constant); ok {
		v, err := convertValue(k.Value(), to)
		if err != nil {
			return nil, errorf(ErrMalformedConstant, e, "%v", err)
		}
		return calc.NewConstant(target, v), nil
	}
	return &coerceCalc{
		Base:  calc.NewBase(coerceNames[to], target, calc.StyleValue, x),
		inner: x,
		to:    to,
	}, nil
}

var coerceNames = map[types.Category]string{
	types.CategoryNumeric:  "DoubleOf",
	types.CategoryInteger:  "IntegerOf",
	types.CategoryString:   "StringOf",
	types.CategoryBoolean:  "BooleanOf",
	types.CategoryDateTime: "DateTimeOf",
	types.CategorySymbol:   "SymbolOf",
}

func convertValue(v any, to types.Category) (any, error) {
	if calc.IsNull(v) {
		return nil, nil
	}
	switch to {
	case types.CategoryNumeric:
		return calc.ToDouble(v)
	case types.CategoryInteger:
		return calc.ToInteger(v)
	case types.CategoryString, types.CategorySymbol:
		return calc.ToString(v)
	case types.CategoryBoolean:
		return calc.ToBoolean(v)
	case types.CategoryDateTime:
		return calc.ToDateTime(v)
	}
	return nil, fmt.Errorf("cannot convert %v to %s", v, to)
}

// coerceCalc converts the boxed result of inner at evaluation time.
type coerceCalc struct {
	calc.Base
	inner calc.Calc
	to    types.Category
}

func (c *coerceCalc) Evaluate(ev calc.Evaluator) (any, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	return convertValue(v, c.to)
}

func (c *coerceCalc) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return 0, err
	}
	return calc.ToDouble(v)
}

func (c *coerceCalc) EvaluateInteger(ev calc.Evaluator) (int64, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return 0, err
	}
	return calc.ToInteger(v)
}

func (c *coerceCalc) EvaluateString(ev calc.Evaluator) (string, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return "", err
	}
	return calc.ToString(v)
}

func (c *coerceCalc) EvaluateBoolean(ev calc.Evaluator) (bool, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return false, err
	}
	return calc.ToBoolean(v)
}

func (c *coerceCalc) EvaluateDateTime(ev calc.Evaluator) (time.Time, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return time.Time{}, err
	}
	return calc.ToDateTime(v)
}

// ErrNullValue is returned when a node compiled for VALUE_NOT_NULL
// evaluates to an empty cell.
var ErrNullValue = errors.New("null value where a non-null value is required")

// requireNotNull makes x satisfy StyleValueNotNull. A null constant fails
// to compile; a non-null constant already satisfies it; anything else is
// checked at evaluation time.
func requireNotNull(x calc.Calc, e mdx.Exp) (calc.Calc, error) {
	if x.ResultStyle() == calc.StyleValueNotNull {
		return x, nil
	}
	if k, ok := x.(*calc.Constant); ok {
		if calc.IsNull(k.Value()) {
			return nil, errorf(ErrIncompatibleType, e, "null where a non-null %s is required", x.Type())
		}
		return x, nil
	}
	return &notNullCalc{
		Base:  calc.NewBase("NotNull", x.Type(), calc.StyleValueNotNull, x),
		inner: x,
	}, nil
}

// wantsNotNull reports whether the caller refuses nullable scalars.
func wantsNotNull(styles []calc.ResultStyle) bool {
	return !calc.Accepts(styles, calc.StyleValue) && calc.Accepts(styles, calc.StyleValueNotNull)
}

type notNullCalc struct {
	calc.Base
	inner calc.Calc
}

func (c *notNullCalc) Evaluate(ev calc.Evaluator) (any, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	if calc.IsNull(v) {
		return nil, fmt.Errorf("%w: %s", ErrNullValue, c.inner.Name())
	}
	return v, nil
}

func (c *notNullCalc) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	v, err := c.Evaluate(ev)
	if err != nil {
		return 0, err
	}
	return calc.ToDouble(v)
}

func (c *notNullCalc) EvaluateInteger(ev calc.Evaluator) (int64, error) {
	v, err := c.Evaluate(ev)
	if err != nil {
		return 0, err
	}
	return calc.ToInteger(v)
}

func (c *notNullCalc) EvaluateString(ev calc.Evaluator) (string, error) {
	v, err := c.Evaluate(ev)
	if err != nil {
		return "", err
	}
	return calc.ToString(v)
}

func (c *notNullCalc) EvaluateBoolean(ev calc.Evaluator) (bool, error) {
	v, err := c.Evaluate(ev)
	if err != nil {
		return false, err
	}
	return calc.ToBoolean(v)
}

func (c *notNullCalc) EvaluateDateTime(ev calc.Evaluator) (time.Time, error) {
	v, err := c.Evaluate(ev)
	if err != nil {
		return time.Time{}, err
	}
	return calc.ToDateTime(v)
}

// memberValue evaluates the cell at the current context with one member
// overridden: a member used where a scalar is expected.
type memberValue struct {
	calc.Base
	member calc.MemberCalc
}

func newMemberValue(m calc.MemberCalc) *memberValue {
	return &memberValue{Base: calc.NewBase("MemberValue", types.Value, calc.StyleValue, m), member: m}
}

func (c *memberValue) Evaluate(ev calc.Evaluator) (any, error) {
	m, err := c.member.EvaluateMember(ev)
	if err != nil {
		return nil, err
	}
	if olap.IsNullMember(m) {
		return nil, nil
	}
	return evaluateAt(ev, m)
}

// DependsOn: the cell depends on every hierarchy except the member's own,
// where only the member expression matters.
func (c *memberValue) DependsOn(h olap.Hierarchy) bool {
	if c.member.Type().UsesHierarchy(h, true) {
		return c.member.DependsOn(h)
	}
	return true
}

// tupleValue is memberValue for a tuple.
type tupleValue struct {
	calc.Base
	tuple calc.TupleCalc
}

func newTupleValue(t calc.TupleCalc) *tupleValue {
	return &tupleValue{Base: calc.NewBase("TupleValue", types.Value, calc.StyleValue, t), tuple: t}
}

func (c *tupleValue) Evaluate(ev calc.Evaluator) (any, error) {
	t, err := c.tuple.EvaluateTuple(ev)
	if err != nil {
		return nil, err
	}
	if t.IsNull() {
		return nil, nil
	}
	return evaluateAt(ev, t...)
}

// evaluateAt returns the cell at the current context overridden by members.
func evaluateAt(ev calc.Evaluator, members ...olap.Member) (any, error) {
	var v any
	err := calc.WithContext(ev, func() error {
		var err error
		v, err = ev.EvaluateCurrent()
		return err
	}, members...)
	return v, err
}

func (c *tupleValue) DependsOn(h olap.Hierarchy) bool {
	if c.tuple.Type().UsesHierarchy(h, true) {
		return c.tuple.DependsOn(h)
	}
	return true
}

// currentMember reads the evaluator's current member of a hierarchy.
type currentMember struct {
	calc.Base
	hierarchy calc.HierarchyCalc
}

func newCurrentMember(h calc.HierarchyCalc) *currentMember {
	t, _ := types.ToMemberType(h.Type())
	return &currentMember{Base: calc.NewBase("CurrentMember", t, calc.StyleValue, h), hierarchy: h}
}

func (c *currentMember) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateMember(ev) }

func (c *currentMember) EvaluateMember(ev calc.Evaluator) (olap.Member, error) {
	h, err := c.hierarchy.EvaluateHierarchy(ev)
	if err != nil {
		return nil, err
	}
	return ev.CurrentMember(h), nil
}

func (c *currentMember) DependsOn(h olap.Hierarchy) bool {
	own := c.hierarchy.Type().Hierarchy()
	if own == nil {
		return true
	}
	return olap.SameHierarchy(own, h) || c.hierarchy.DependsOn(h)
}

// memberToTuple wraps a member as a 1-tuple.
type memberToTuple struct {
	calc.Base
	member calc.MemberCalc
}

func newMemberToTuple(m calc.MemberCalc) *memberToTuple {
	return &memberToTuple{Base: calc.NewBase("MemberToTuple", types.TupleOf(m.Type()), calc.StyleValue, m), member: m}
}

func (c *memberToTuple) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateTuple(ev) }

func (c *memberToTuple) EvaluateTuple(ev calc.Evaluator) (olap.Tuple, error) {
	m, err := c.member.EvaluateMember(ev)
	if err != nil || m == nil {
		return nil, err
	}
	return olap.Tuple{m}, nil
}

// hierarchyOf converts a dimension, level or member to its hierarchy.
type hierarchyOf struct {
	calc.Base
	inner calc.Calc
	from  calc.Kind
}

func newHierarchyOf(x calc.Calc, e mdx.Exp) (calc.HierarchyCalc, error) {
	t := types.ForHierarchy(e.Type().Hierarchy())
	if k, ok := x.(*calc.Constant); ok {
		h, err := hierarchyFrom(k.Value())
		if err != nil {
			return nil, errorf(ErrIncompatibleType, e, "%v", err)
		}
		return calc.NewConstant(types.ForHierarchy(h), h), nil
	}
	switch kind := calc.KindOf(x); kind {
	case calc.KindDimension, calc.KindLevel, calc.KindMember:
		return &hierarchyOf{Base: calc.NewBase("HierarchyOf", t, calc.StyleValue, x), inner: x, from: kind}, nil
	}
	return nil, incompatible(e, "HIERARCHY")
}

func (c *hierarchyOf) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateHierarchy(ev) }

func (c *hierarchyOf) EvaluateHierarchy(ev calc.Evaluator) (olap.Hierarchy, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	return hierarchyFrom(v)
}

func hierarchyFrom(v any) (olap.Hierarchy, error) {
	switch v := v.(type) {
	case olap.Hierarchy:
		return v, nil
	case olap.Dimension:
		hs := v.Hierarchies()
		if len(hs) != 1 {
			return nil, fmt.Errorf("dimension %s has %d hierarchies", v.UniqueName(), len(hs))
		}
		return hs[0], nil
	case olap.Level:
		return v.Hierarchy(), nil
	case olap.Member:
		if v == nil {
			return nil, fmt.Errorf("null member has no hierarchy")
		}
		return v.Hierarchy(), nil
	}
	return nil, fmt.Errorf("%T has no hierarchy", v)
}

// dimensionOf converts a hierarchy, level or member to its dimension.
type dimensionOf struct {
	calc.Base
	inner calc.Calc
}

func newDimensionOf(x calc.Calc, e mdx.Exp) (calc.DimensionCalc, error) {
	t := types.ForDimension(e.Type().Dimension())
	if k, ok := x.(*calc.Constant); ok {
		d, err := dimensionFrom(k.Value())
		if err != nil {
			return nil, errorf(ErrIncompatibleType, e, "%v", err)
		}
		return calc.NewConstant(types.ForDimension(d), d), nil
	}
	switch calc.KindOf(x) {
	case calc.KindHierarchy, calc.KindLevel, calc.KindMember:
		return &dimensionOf{Base: calc.NewBase("DimensionOf", t, calc.StyleValue, x), inner: x}, nil
	}
	return nil, incompatible(e, "DIMENSION")
}

func (c *dimensionOf) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateDimension(ev) }

func (c *dimensionOf) EvaluateDimension(ev calc.Evaluator) (olap.Dimension, error) {
	v, err := c.inner.Evaluate(ev)
	if err != nil {
		return nil, err
	}
	return dimensionFrom(v)
}

func dimensionFrom(v any) (olap.Dimension, error) {
	if d, ok := v.(olap.Dimension); ok {
		return d, nil
	}
	h, err := hierarchyFrom(v)
	if err != nil {
		return nil, err
	}
	return h.Dimension(), nil
}

// noNulls marks set calcs that never produce a null tuple, so the compiler
// does not wrap them in a null filter.
type noNulls struct{}

func (noNulls) nullFree() {}

func isNullFree(x calc.Calc) bool {
	_, ok := x.(interface{ nullFree() })
	return ok
}

// iterToList materializes a cursor.
type iterToList struct {
	calc.Base
	noNulls
	iter calc.IterCalc
}

func newIterToList(it calc.IterCalc) *iterToList {
	return &iterToList{Base: calc.NewBase("IterToList", it.Type(), calc.StyleMutableList, it), iter: it}
}

func (c *iterToList) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateList(ev) }

func (c *iterToList) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	cur, err := c.iter.EvaluateIterable(ev)
	if err != nil {
		return nil, err
	}
	return calc.Drain(ev, cur)
}

// listToIter iterates over a list.
type listToIter struct {
	calc.Base
	noNulls
	list calc.ListCalc
}

func newListToIter(l calc.ListCalc) *listToIter {
	return &listToIter{Base: calc.NewBase("ListToIter", l.Type(), calc.StyleIterable, l), list: l}
}

func (c *listToIter) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateIterable(ev) }

func (c *listToIter) EvaluateIterable(ev calc.Evaluator) (calc.TupleCursor, error) {
	l, err := c.list.EvaluateList(ev)
	if err != nil {
		return nil, err
	}
	return l.Cursor(), nil
}

// copyList hands the caller a list it may mutate.
type copyList struct {
	calc.Base
	noNulls
	list calc.ListCalc
}

func newCopyList(l calc.ListCalc) *copyList {
	return &copyList{Base: calc.NewBase("CopyList", l.Type(), calc.StyleMutableList, l), list: l}
}

func (c *copyList) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateList(ev) }

func (c *copyList) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	l, err := c.list.EvaluateList(ev)
	if err != nil {
		return nil, err
	}
	return l.Copy(), nil
}

// nullFilterList drops null tuples from a list.
type nullFilterList struct {
	calc.Base
	noNulls
	list calc.ListCalc
}

func newNullFilterList(l calc.ListCalc) *nullFilterList {
	return &nullFilterList{Base: calc.NewBase("NullFilter", l.Type(), l.ResultStyle(), l), list: l}
}

func (c *nullFilterList) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateList(ev) }

func (c *nullFilterList) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	l, err := c.list.EvaluateList(ev)
	if err != nil {
		return nil, err
	}
	return calc.WithoutNulls(l), nil
}

// nullFilterIter drops null tuples from a cursor.
type nullFilterIter struct {
	calc.Base
	noNulls
	iter calc.IterCalc
}

func newNullFilterIter(it calc.IterCalc) *nullFilterIter {
	return &nullFilterIter{Base: calc.NewBase("NullFilter", it.Type(), calc.StyleIterable, it), iter: it}
}

func (c *nullFilterIter) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateIterable(ev) }

func (c *nullFilterIter) EvaluateIterable(ev calc.Evaluator) (calc.TupleCursor, error) {
	cur, err := c.iter.EvaluateIterable(ev)
	if err != nil {
		return nil, err
	}
	return calc.SkipNulls(cur), nil
}
