package compiler

import (
	"log/slog"
	"time"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

// Compiler turns validated expressions into calc trees.
//
// A Compiler is cheap to derive: WithResultStyles returns a compiler that
// shares the validator, function table and parameter slots and only differs
// in the result styles it asks nested nodes for.
//
// Thread-safety: a Compiler is used by one goroutine at a time. The slot
// registry it shares with derived compilers is locked.
type Compiler struct {
	validator mdx.Validator
	functions *Table
	logger    *slog.Logger
	styles    []calc.ResultStyle
	slots     *slotRegistry
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for compile-time diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// WithFunctions replaces the builtin function table.
func WithFunctions(t *Table) Option {
	return func(c *Compiler) { c.functions = t }
}

// New creates a compiler resolving names through v.
func New(v mdx.Validator, opts ...Option) *Compiler {
	c := &Compiler{
		validator: v,
		functions: Builtins(),
		logger:    slog.Default(),
		styles:    calc.StylesAny,
		slots:     newSlotRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validator returns the validator the compiler resolves names with.
func (c *Compiler) Validator() mdx.Validator { return c.validator }

// AcceptableResultStyles returns the styles, most preferred first, the
// caller of the current compilation accepts.
func (c *Compiler) AcceptableResultStyles() []calc.ResultStyle { return c.styles }

// WithResultStyles derives a compiler asking for styles. The derived
// compiler shares this compiler's parameter slots.
func (c *Compiler) WithResultStyles(styles []calc.ResultStyle) *Compiler {
	if len(styles) == 0 {
		styles = calc.StylesAny
	}
	d := *c
	d.styles = styles
	return &d
}

// Compile compiles e with the compiler's acceptable result styles.
func (c *Compiler) Compile(e mdx.Exp) (calc.Calc, error) {
	switch e := e.(type) {
	case *mdx.Literal:
		return c.compileLiteral(e)
	case *mdx.MemberExpr:
		return calc.NewConstant(e.Type(), e.Member), nil
	case *mdx.LevelExpr:
		return calc.NewConstant(e.Type(), e.Level), nil
	case *mdx.HierarchyExpr:
		return calc.NewConstant(e.Type(), e.Hierarchy), nil
	case *mdx.DimensionExpr:
		return calc.NewConstant(e.Type(), e.Dimension), nil
	case *mdx.ParameterExpr:
		slot, err := c.RegisterParameter(e.Parameter)
		if err != nil {
			return nil, err
		}
		return newParameterCalc(slot), nil
	case *mdx.Call:
		return c.compileCall(e)
	case nil:
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	return nil, errorf(ErrUnsupportedExp, e, "unsupported expression %T", e)
}

func (c *Compiler) compileLiteral(l *mdx.Literal) (calc.Calc, error) {
	switch l.Value.(type) {
	case nil, float64, int64, string, bool, time.Time:
		return calc.NewConstant(l.Type(), l.Value), nil
	}
	return nil, errorf(ErrUnsupportedExp, l, "unsupported literal %T", l.Value)
}

func (c *Compiler) compileCall(call *mdx.Call) (calc.Calc, error) {
	def, ok := c.functions.Lookup(call.Name, call.Syntax)
	if !ok {
		return nil, errorf(ErrUnknownFunction, call, "no %s function %q", call.Syntax, call.Name)
	}
	if call.ResultType == nil {
		t, err := def.Resolve(c.validator, call.Args)
		if err != nil {
			return nil, err
		}
		call = &mdx.Call{Name: call.Name, Syntax: call.Syntax, Args: call.Args, ResultType: t}
	}
	return def.Compile(c, call)
}

// CompileAs compiles e to a calc of type t, converting implicitly where
// allowed. An incompatible combination fails with ErrIncompatibleType.
// Scalars requested as StylesValueNotNull never evaluate to null: a null
// constant fails to compile and other nodes fail with ErrNullValue.
func (c *Compiler) CompileAs(e mdx.Exp, t types.Type, styles []calc.ResultStyle) (calc.Calc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	switch t.Category() {
	case types.CategoryNumeric, types.CategoryInteger, types.CategoryString,
		types.CategoryBoolean, types.CategoryDateTime, types.CategorySymbol:
		x, err := c.compileScalarAs(e, t.Category())
		if err != nil || !wantsNotNull(styles) {
			return x, err
		}
		return requireNotNull(x, e)
	case types.CategoryValue:
		x, err := c.CompileScalar(e, false)
		if err != nil || !wantsNotNull(styles) {
			return x, err
		}
		return requireNotNull(x, e)
	case types.CategoryMember:
		return c.CompileMember(e)
	case types.CategoryTuple:
		return c.CompileTuple(e)
	case types.CategorySet:
		if len(styles) > 0 && styles[0] == calc.StyleIterable {
			return c.CompileIter(e)
		}
		return c.CompileList(e, len(styles) > 0 && styles[0] == calc.StyleMutableList)
	case types.CategoryLevel:
		return c.CompileLevel(e)
	case types.CategoryHierarchy:
		return c.CompileHierarchy(e)
	case types.CategoryDimension:
		return c.CompileDimension(e)
	}
	return nil, incompatible(e, t.String())
}

// CompileScalar compiles e to a scalar. Members, tuples, hierarchies and
// dimensions are evaluated against the current measure. With specific set,
// an expression of a fixed scalar kind is compiled through its typed path.
func (c *Compiler) CompileScalar(e mdx.Exp, specific bool) (calc.Calc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	cat := e.Type().Category()
	if specific {
		switch cat {
		case types.CategoryNumeric, types.CategoryInteger, types.CategoryString,
			types.CategoryBoolean, types.CategoryDateTime:
			return c.compileScalarAs(e, cat)
		}
	}
	return c.compileScalarAs(e, types.CategoryValue)
}

// CompileDouble compiles e to a DoubleCalc.
func (c *Compiler) CompileDouble(e mdx.Exp) (calc.DoubleCalc, error) {
	x, err := c.compileScalarAs(e, types.CategoryNumeric)
	if err != nil {
		return nil, err
	}
	return x.(calc.DoubleCalc), nil
}

// CompileInteger compiles e to an IntegerCalc.
func (c *Compiler) CompileInteger(e mdx.Exp) (calc.IntegerCalc, error) {
	x, err := c.compileScalarAs(e, types.CategoryInteger)
	if err != nil {
		return nil, err
	}
	return x.(calc.IntegerCalc), nil
}

// CompileString compiles e to a StringCalc.
func (c *Compiler) CompileString(e mdx.Exp) (calc.StringCalc, error) {
	x, err := c.compileScalarAs(e, types.CategoryString)
	if err != nil {
		return nil, err
	}
	return x.(calc.StringCalc), nil
}

// CompileBoolean compiles e to a BooleanCalc.
func (c *Compiler) CompileBoolean(e mdx.Exp) (calc.BooleanCalc, error) {
	x, err := c.compileScalarAs(e, types.CategoryBoolean)
	if err != nil {
		return nil, err
	}
	return x.(calc.BooleanCalc), nil
}

// CompileDateTime compiles e to a DateTimeCalc.
func (c *Compiler) CompileDateTime(e mdx.Exp) (calc.DateTimeCalc, error) {
	x, err := c.compileScalarAs(e, types.CategoryDateTime)
	if err != nil {
		return nil, err
	}
	return x.(calc.DateTimeCalc), nil
}

// CompileMember compiles e to a MemberCalc. Hierarchies and dimensions
// become their current member.
func (c *Compiler) CompileMember(e mdx.Exp) (calc.MemberCalc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	switch e.Type().Category() {
	case types.CategoryMember:
		x, err := c.WithResultStyles(calc.StylesValue).Compile(e)
		if err != nil {
			return nil, err
		}
		if m, ok := x.(calc.MemberCalc); ok && calc.KindOf(x) == calc.KindMember {
			return m, nil
		}
		return nil, incompatible(e, "MEMBER")
	case types.CategoryNull:
		return calc.NullConstant(types.UnknownMember), nil
	case types.CategoryHierarchy, types.CategoryDimension:
		h, err := c.CompileHierarchy(e)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("implicit conversion", "exp", e.String(), "to", "CurrentMember")
		return newCurrentMember(h), nil
	}
	return nil, incompatible(e, "MEMBER")
}

// CompileTuple compiles e to a TupleCalc. A member becomes a 1-tuple.
func (c *Compiler) CompileTuple(e mdx.Exp) (calc.TupleCalc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	switch e.Type().Category() {
	case types.CategoryTuple:
		x, err := c.WithResultStyles(calc.StylesValue).Compile(e)
		if err != nil {
			return nil, err
		}
		if t, ok := x.(calc.TupleCalc); ok && calc.KindOf(x) == calc.KindTuple {
			return t, nil
		}
		return nil, incompatible(e, "TUPLE")
	case types.CategoryNull:
		return calc.NullConstant(types.TupleOf()), nil
	case types.CategoryMember, types.CategoryHierarchy, types.CategoryDimension:
		m, err := c.CompileMember(e)
		if err != nil {
			return nil, err
		}
		if k, ok := m.(*calc.Constant); ok {
			if v := k.Value(); v != nil {
				return calc.NewConstant(types.TupleOf(m.Type()), olap.Tuple{v.(olap.Member)}), nil
			}
		}
		return newMemberToTuple(m), nil
	}
	return nil, incompatible(e, "TUPLE")
}

// CompileLevel compiles e to a LevelCalc.
func (c *Compiler) CompileLevel(e mdx.Exp) (calc.LevelCalc, error) {
	if e == nil || e.Type().Category() != types.CategoryLevel {
		return nil, incompatible(e, "LEVEL")
	}
	x, err := c.Compile(e)
	if err != nil {
		return nil, err
	}
	l, ok := x.(calc.LevelCalc)
	if !ok {
		return nil, incompatible(e, "LEVEL")
	}
	return l, nil
}

// CompileHierarchy compiles e to a HierarchyCalc. Dimensions, levels and
// members convert to the hierarchy they belong to.
func (c *Compiler) CompileHierarchy(e mdx.Exp) (calc.HierarchyCalc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	if _, ok := types.CanConvert(e.Type(), types.CategoryHierarchy); !ok {
		return nil, incompatible(e, "HIERARCHY")
	}
	x, err := c.WithResultStyles(calc.StylesValue).Compile(e)
	if err != nil {
		return nil, err
	}
	if e.Type().Category() == types.CategoryHierarchy {
		if h, ok := x.(calc.HierarchyCalc); ok {
			return h, nil
		}
	}
	return newHierarchyOf(x, e)
}

// CompileDimension compiles e to a DimensionCalc. Hierarchies, levels and
// members convert to their dimension.
func (c *Compiler) CompileDimension(e mdx.Exp) (calc.DimensionCalc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	if _, ok := types.CanConvert(e.Type(), types.CategoryDimension); !ok {
		return nil, incompatible(e, "DIMENSION")
	}
	x, err := c.WithResultStyles(calc.StylesValue).Compile(e)
	if err != nil {
		return nil, err
	}
	if e.Type().Category() == types.CategoryDimension {
		if d, ok := x.(calc.DimensionCalc); ok {
			return d, nil
		}
	}
	return newDimensionOf(x, e)
}

// CompileList compiles e to a ListCalc whose lists never contain a null
// tuple. With mutable set the returned list belongs to the caller.
// Members and tuples become one-element sets; levels become their members.
func (c *Compiler) CompileList(e mdx.Exp, mutable bool) (calc.ListCalc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	styles := calc.StylesListMutableList
	if mutable {
		styles = calc.StylesMutableList
	}
	x, err := c.compileSet(e, styles)
	if err != nil {
		return nil, err
	}

	var list calc.ListCalc
	switch calc.KindOf(x) {
	case calc.KindIterable:
		list = newIterToList(x.(calc.IterCalc))
	case calc.KindList:
		list = x.(calc.ListCalc)
		if !isNullFree(x) {
			list = newNullFilterList(list)
		}
	default:
		return nil, incompatible(e, "SET")
	}
	if mutable && list.ResultStyle() != calc.StyleMutableList {
		list = newCopyList(list)
	}
	return list, nil
}

// CompileIter compiles e to an IterCalc whose cursors never yield a null
// tuple.
func (c *Compiler) CompileIter(e mdx.Exp) (calc.IterCalc, error) {
	if e == nil {
		return nil, errorf(ErrUnsupportedExp, nil, "nil expression")
	}
	x, err := c.compileSet(e, calc.StylesIterableAny)
	if err != nil {
		return nil, err
	}
	switch calc.KindOf(x) {
	case calc.KindIterable:
		it := x.(calc.IterCalc)
		if !isNullFree(x) {
			it = newNullFilterIter(it)
		}
		return it, nil
	case calc.KindList:
		list := x.(calc.ListCalc)
		if !isNullFree(x) {
			list = newNullFilterList(list)
		}
		return newListToIter(list), nil
	}
	return nil, incompatible(e, "SET")
}

// compileSet compiles a set-valued expression, or a member, tuple or level
// used where a set is required.
func (c *Compiler) compileSet(e mdx.Exp, styles []calc.ResultStyle) (calc.Calc, error) {
	switch e.Type().Category() {
	case types.CategorySet:
		return c.WithResultStyles(styles).Compile(e)
	case types.CategoryMember, types.CategoryTuple:
		return c.compileSetConstruction(types.SetOf(e.Type()), []mdx.Exp{e})
	case types.CategoryLevel:
		call, err := c.implicitMembers(e)
		if err != nil {
			return nil, err
		}
		return c.WithResultStyles(styles).Compile(call)
	}
	return nil, incompatible(e, "SET")
}

// implicitMembers rewrites a level expression as <level>.Members.
func (c *Compiler) implicitMembers(e mdx.Exp) (*mdx.Call, error) {
	c.logger.Debug("implicit conversion", "exp", e.String(), "to", "Members")
	return c.functions.Resolve(c.validator, "Members", mdx.SyntaxProperty, e)
}
