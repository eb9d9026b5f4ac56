package compiler

import (
	"strconv"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/types"
)

func setDefs() []*FunDef {
	return []*FunDef{
		{
			Name:        "{}",
			Syntax:      mdx.SyntaxBraces,
			Description: "Builds a set from members, tuples, levels and sets.",
			Resolve:     resolveBraces,
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				st, ok := call.ResultType.(types.SetType)
				if !ok {
					return nil, incompatible(call, "SET")
				}
				return c.compileSetConstruction(st, call.Args)
			},
		},
		{
			Name:        "Members",
			Syntax:      mdx.SyntaxProperty,
			Description: "Returns the members of a level, hierarchy or dimension.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("Members", args, 1, 1); err != nil {
					return nil, err
				}
				t := args[0].Type()
				switch t.Category() {
				case types.CategoryLevel, types.CategoryHierarchy, types.CategoryDimension:
					mt, _ := types.ToMemberType(t)
					return types.SetOf(mt), nil
				}
				return nil, incompatible(args[0], "LEVEL or HIERARCHY")
			},
			Compile: compileMembers,
		},
		{
			Name:        "Filter",
			Syntax:      mdx.SyntaxFunction,
			Description: "Returns the tuples of a set for which a condition holds.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("Filter", args, 2, 2); err != nil {
					return nil, err
				}
				if err := expect(args[0], types.CategorySet); err != nil {
					return nil, err
				}
				if err := expect(args[1], types.CategoryBoolean); err != nil {
					return nil, err
				}
				return types.SetOf(setElement(args[0])), nil
			},
			Compile: compileFilter,
		},
		{
			Name:        "CrossJoin",
			Syntax:      mdx.SyntaxFunction,
			Description: "Returns the cartesian product of two sets.",
			Resolve:     resolveCrossJoin,
			Compile:     compileCrossJoin,
		},
		{
			Name:        "Count",
			Syntax:      mdx.SyntaxFunction,
			Description: "Returns the number of tuples in a set.",
			Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
				if err := checkArity("Count", args, 1, 1); err != nil {
					return nil, err
				}
				if err := expect(args[0], types.CategorySet); err != nil {
					return nil, err
				}
				return types.Integer, nil
			},
			Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
				list, err := c.CompileList(call.Args[0], false)
				if err != nil {
					return nil, err
				}
				return &countCalc{Base: calc.NewBase("Count", types.Integer, calc.StyleValue, list), list: list}, nil
			},
		},
		aggregateDef("Sum", "Returns the sum of a numeric expression over a set."),
		aggregateDef("Avg", "Returns the average of a numeric expression over the non-empty cells of a set."),
	}
}

func resolveBraces(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
	var elem types.Type
	arity := -1
	for _, a := range args {
		t := setElement(a)
		switch t.Category() {
		case types.CategoryMember, types.CategoryTuple, types.CategoryNull:
		default:
			return nil, incompatible(a, "MEMBER, TUPLE or SET")
		}
		if t.Category() != types.CategoryNull {
			n := types.Arity(t)
			if arity >= 0 && n != arity {
				return nil, &CompileError{
					Code:     ErrArityMismatch,
					Message:  "set elements have different arity",
					Exp:      a,
					Expected: strconv.Itoa(arity),
					Actual:   strconv.Itoa(n),
				}
			}
			arity = n
		}
		if elem == nil {
			elem = t
			continue
		}
		common := types.CommonType(false, elem, t)
		if common == nil {
			return nil, incompatible(a, elem.String())
		}
		elem = common
	}
	if elem == nil || elem.Category() == types.CategoryNull {
		elem = types.UnknownMember
	}
	return types.SetOf(elem), nil
}

// setStep appends the contribution of one element of a set construction.
type setStep interface {
	node() calc.Calc
	appendTo(ev calc.Evaluator, buf *calc.TupleList) error
}

type listStep struct{ list calc.ListCalc }

func (s listStep) node() calc.Calc { return s.list }

func (s listStep) appendTo(ev calc.Evaluator, buf *calc.TupleList) error {
	l, err := s.list.EvaluateList(ev)
	if err != nil {
		return err
	}
	buf.AppendAll(l)
	return nil
}

type memberStep struct{ member calc.MemberCalc }

func (s memberStep) node() calc.Calc { return s.member }

func (s memberStep) appendTo(ev calc.Evaluator, buf *calc.TupleList) error {
	m, err := s.member.EvaluateMember(ev)
	if err != nil {
		return err
	}
	if !olap.IsNullMember(m) {
		buf.AppendMember(m)
	}
	return nil
}

type tupleStep struct{ tuple calc.TupleCalc }

func (s tupleStep) node() calc.Calc { return s.tuple }

func (s tupleStep) appendTo(ev calc.Evaluator, buf *calc.TupleList) error {
	t, err := s.tuple.EvaluateTuple(ev)
	if err != nil {
		return err
	}
	if !t.IsNull() {
		buf.Append(t)
	}
	return nil
}

// compileSetConstruction compiles the elements of {e1, e2, ...}. Each
// element picks one of four strategies: a set is spliced, a level is
// rewritten to its members and spliced, a member becomes a 1-tuple and
// anything else is evaluated as a tuple. Null members and tuples are
// skipped.
func (c *Compiler) compileSetConstruction(t types.SetType, args []mdx.Exp) (calc.Calc, error) {
	arity := types.Arity(t)
	steps := make([]setStep, 0, len(args))
	for _, a := range args {
		switch a.Type().Category() {
		case types.CategorySet:
			l, err := c.CompileList(a, false)
			if err != nil {
				return nil, err
			}
			steps = append(steps, listStep{list: l})
		case types.CategoryLevel:
			call, err := c.implicitMembers(a)
			if err != nil {
				return nil, err
			}
			l, err := c.CompileList(call, false)
			if err != nil {
				return nil, err
			}
			steps = append(steps, listStep{list: l})
		case types.CategoryMember, types.CategoryNull, types.CategoryHierarchy, types.CategoryDimension:
			if arity == 1 {
				m, err := c.CompileMember(a)
				if err != nil {
					return nil, err
				}
				steps = append(steps, memberStep{member: m})
				continue
			}
			fallthrough
		default:
			tc, err := c.CompileTuple(a)
			if err != nil {
				return nil, err
			}
			steps = append(steps, tupleStep{tuple: tc})
		}
	}
	children := make([]calc.Calc, len(steps))
	for i, s := range steps {
		children[i] = s.node()
	}
	return &setConstruction{
		Base:  calc.NewBase("SetConstruction", t, calc.StyleMutableList, children...),
		steps: steps,
		buf:   calc.NewTupleList(arity, len(steps)),
	}, nil
}

// setConstruction evaluates its elements into a private buffer and
// returns a copy of it.
//
// Thread-safety: buf is shared by every evaluation of this node, so a
// compiled tree must not be evaluated by two goroutines at once.
type setConstruction struct {
	calc.Base
	noNulls
	steps []setStep
	buf   *calc.TupleList
}

func (s *setConstruction) Evaluate(ev calc.Evaluator) (any, error) { return s.EvaluateList(ev) }

func (s *setConstruction) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	s.buf.Reset()
	for _, st := range s.steps {
		if err := calc.Checkpoint(ev); err != nil {
			return nil, err
		}
		if err := st.appendTo(ev, s.buf); err != nil {
			return nil, err
		}
	}
	return s.buf.Copy(), nil
}

func compileMembers(c *Compiler, call *mdx.Call) (calc.Calc, error) {
	arg := call.Args[0]
	if arg.Type().Category() == types.CategoryLevel {
		l, err := c.CompileLevel(arg)
		if err != nil {
			return nil, err
		}
		return &membersCalc{Base: calc.NewBase("Members", call.ResultType, calc.StyleList, l), level: l}, nil
	}
	h, err := c.CompileHierarchy(arg)
	if err != nil {
		return nil, err
	}
	return &membersCalc{Base: calc.NewBase("Members", call.ResultType, calc.StyleList, h), hierarchy: h}, nil
}

// membersCalc reads member lists from the schema reader. The lists it
// returns are frozen.
type membersCalc struct {
	calc.Base
	noNulls
	level     calc.LevelCalc
	hierarchy calc.HierarchyCalc
}

func (m *membersCalc) Evaluate(ev calc.Evaluator) (any, error) { return m.EvaluateList(ev) }

func (m *membersCalc) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	members, err := m.members(ev)
	if err != nil {
		return nil, err
	}
	out := calc.NewTupleList(1, len(members))
	for _, mem := range members {
		if err := calc.Checkpoint(ev); err != nil {
			return nil, err
		}
		if !olap.IsNullMember(mem) {
			out.AppendMember(mem)
		}
	}
	return out.Freeze(), nil
}

func (m *membersCalc) members(ev calc.Evaluator) ([]olap.Member, error) {
	if m.level != nil {
		l, err := m.level.EvaluateLevel(ev)
		if err != nil {
			return nil, err
		}
		return ev.SchemaReader().LevelMembers(l)
	}
	h, err := m.hierarchy.EvaluateHierarchy(ev)
	if err != nil {
		return nil, err
	}
	return ev.SchemaReader().HierarchyMembers(h)
}

// setStyles are the styles Filter and CrossJoin can produce.
var setStyles = []calc.ResultStyle{calc.StyleIterable, calc.StyleMutableList}

func negotiateSetStyle(c *Compiler) calc.ResultStyle {
	style, ok := calc.Negotiate(c.AcceptableResultStyles(), setStyles)
	if !ok || style == calc.StyleList {
		return calc.StyleMutableList
	}
	return style
}

// evaluateIn evaluates fn with the members of t made current.
func evaluateIn[T any](ev calc.Evaluator, t olap.Tuple, fn func() (T, error)) (T, error) {
	sp := ev.Savepoint()
	defer ev.Restore(sp)
	for _, m := range t {
		ev.SetContext(m)
	}
	return fn()
}

func compileFilter(c *Compiler, call *mdx.Call) (calc.Calc, error) {
	cond, err := c.CompileBoolean(call.Args[1])
	if err != nil {
		return nil, err
	}
	if negotiateSetStyle(c) == calc.StyleIterable {
		it, err := c.CompileIter(call.Args[0])
		if err != nil {
			return nil, err
		}
		return &filterIter{Base: calc.NewBase("Filter", call.ResultType, calc.StyleIterable, it, cond), set: it, cond: cond}, nil
	}
	list, err := c.CompileList(call.Args[0], false)
	if err != nil {
		return nil, err
	}
	return &filterList{Base: calc.NewBase("Filter", call.ResultType, calc.StyleMutableList, list, cond), set: list, cond: cond}, nil
}

// setDependsOn is the dependency rule for calcs that evaluate an
// expression once per tuple of a set: the set's members override the
// context for their own hierarchies.
func setDependsOn(set calc.Calc, expr calc.Calc, h olap.Hierarchy) bool {
	if set.DependsOn(h) {
		return true
	}
	return expr.DependsOn(h) && !set.Type().UsesHierarchy(h, true)
}

type filterList struct {
	calc.Base
	noNulls
	set  calc.ListCalc
	cond calc.BooleanCalc
}

func (f *filterList) DependsOn(h olap.Hierarchy) bool { return setDependsOn(f.set, f.cond, h) }

func (f *filterList) Evaluate(ev calc.Evaluator) (any, error) { return f.EvaluateList(ev) }

func (f *filterList) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	in, err := f.set.EvaluateList(ev)
	if err != nil {
		return nil, err
	}
	out := calc.NewTupleList(in.Arity(), 0)
	for _, t := range in.All() {
		if err := calc.Checkpoint(ev); err != nil {
			return nil, err
		}
		ok, err := evaluateIn(ev, t, func() (bool, error) { return f.cond.EvaluateBoolean(ev) })
		if err != nil {
			return nil, err
		}
		if ok {
			out.Append(t)
		}
	}
	return out, nil
}

type filterIter struct {
	calc.Base
	noNulls
	set  calc.IterCalc
	cond calc.BooleanCalc
}

func (f *filterIter) DependsOn(h olap.Hierarchy) bool { return setDependsOn(f.set, f.cond, h) }

func (f *filterIter) Evaluate(ev calc.Evaluator) (any, error) { return f.EvaluateIterable(ev) }

func (f *filterIter) EvaluateIterable(ev calc.Evaluator) (calc.TupleCursor, error) {
	in, err := f.set.EvaluateIterable(ev)
	if err != nil {
		return nil, err
	}
	return calc.NewFuncCursor(in.Arity(), func() (olap.Tuple, bool, error) {
		for in.Next() {
			if err := calc.Checkpoint(ev); err != nil {
				return nil, false, err
			}
			t := in.Tuple()
			ok, err := evaluateIn(ev, t, func() (bool, error) { return f.cond.EvaluateBoolean(ev) })
			if err != nil {
				return nil, false, err
			}
			if ok {
				return t, true, nil
			}
		}
		return nil, false, in.Err()
	}), nil
}

func resolveCrossJoin(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
	if err := checkArity("CrossJoin", args, 2, 2); err != nil {
		return nil, err
	}
	var elems []types.Type
	for _, a := range args {
		if err := expect(a, types.CategorySet); err != nil {
			return nil, err
		}
		elems = append(elems, types.ElementTypes(setElement(a))...)
	}
	for i := range elems {
		for j := i + 1; j < len(elems); j++ {
			hi, hj := elems[i].Hierarchy(), elems[j].Hierarchy()
			if hi != nil && olap.SameHierarchy(hi, hj) {
				return nil, errorf(ErrIncompatibleType, nil, "hierarchy %s appears more than once in CrossJoin", hi.UniqueName())
			}
		}
	}
	return types.SetOf(types.TupleOf(elems...)), nil
}

func compileCrossJoin(c *Compiler, call *mdx.Call) (calc.Calc, error) {
	right, err := c.CompileList(call.Args[1], false)
	if err != nil {
		return nil, err
	}
	arity := types.Arity(call.ResultType)
	if negotiateSetStyle(c) == calc.StyleIterable {
		left, err := c.CompileIter(call.Args[0])
		if err != nil {
			return nil, err
		}
		return &crossJoinIter{
			Base:  calc.NewBase("CrossJoin", call.ResultType, calc.StyleIterable, left, right),
			left:  left,
			right: right,
			arity: arity,
		}, nil
	}
	left, err := c.CompileList(call.Args[0], false)
	if err != nil {
		return nil, err
	}
	return &crossJoinList{
		Base:  calc.NewBase("CrossJoin", call.ResultType, calc.StyleMutableList, left, right),
		left:  left,
		right: right,
		arity: arity,
	}, nil
}

func concat(a, b olap.Tuple) olap.Tuple {
	out := make(olap.Tuple, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

type crossJoinList struct {
	calc.Base
	noNulls
	left, right calc.ListCalc
	arity       int
}

func (x *crossJoinList) Evaluate(ev calc.Evaluator) (any, error) { return x.EvaluateList(ev) }

func (x *crossJoinList) EvaluateList(ev calc.Evaluator) (*calc.TupleList, error) {
	l, err := x.left.EvaluateList(ev)
	if err != nil {
		return nil, err
	}
	r, err := x.right.EvaluateList(ev)
	if err != nil {
		return nil, err
	}
	out := calc.NewTupleList(x.arity, l.Len()*r.Len())
	for _, a := range l.All() {
		for _, b := range r.All() {
			if err := calc.Checkpoint(ev); err != nil {
				return nil, err
			}
			out.Append(concat(a, b))
		}
	}
	return out, nil
}

type crossJoinIter struct {
	calc.Base
	noNulls
	left  calc.IterCalc
	right calc.ListCalc
	arity int
}

func (x *crossJoinIter) Evaluate(ev calc.Evaluator) (any, error) { return x.EvaluateIterable(ev) }

// EvaluateIterable walks the left cursor lazily; the right side is
// materialized once per evaluation.
func (x *crossJoinIter) EvaluateIterable(ev calc.Evaluator) (calc.TupleCursor, error) {
	left, err := x.left.EvaluateIterable(ev)
	if err != nil {
		return nil, err
	}
	right, err := x.right.EvaluateList(ev)
	if err != nil {
		return nil, err
	}
	var (
		cur olap.Tuple
		i   = right.Len()
	)
	return calc.NewFuncCursor(x.arity, func() (olap.Tuple, bool, error) {
		for i >= right.Len() {
			if !left.Next() {
				return nil, false, left.Err()
			}
			cur, i = left.Tuple(), 0
		}
		if err := calc.Checkpoint(ev); err != nil {
			return nil, false, err
		}
		t := concat(cur, right.At(i))
		i++
		return t, true, nil
	}), nil
}

type countCalc struct {
	calc.Base
	list calc.ListCalc
}

func (c *countCalc) Evaluate(ev calc.Evaluator) (any, error) { return c.EvaluateInteger(ev) }

func (c *countCalc) EvaluateInteger(ev calc.Evaluator) (int64, error) {
	l, err := c.list.EvaluateList(ev)
	if err != nil {
		return 0, err
	}
	return int64(l.Len()), nil
}

func aggregateDef(name, description string) *FunDef {
	return &FunDef{
		Name:        name,
		Syntax:      mdx.SyntaxFunction,
		Description: description,
		Resolve: func(_ mdx.Validator, args []mdx.Exp) (types.Type, error) {
			if err := checkArity(name, args, 1, 2); err != nil {
				return nil, err
			}
			if err := expect(args[0], types.CategorySet); err != nil {
				return nil, err
			}
			if len(args) == 2 {
				if err := expect(args[1], types.CategoryNumeric); err != nil {
					return nil, err
				}
			}
			return types.Numeric, nil
		},
		Compile: func(c *Compiler, call *mdx.Call) (calc.Calc, error) {
			set, err := c.CompileIter(call.Args[0])
			if err != nil {
				return nil, err
			}
			var value calc.DoubleCalc
			if len(call.Args) == 2 {
				if value, err = c.CompileDouble(call.Args[1]); err != nil {
					return nil, err
				}
			} else {
				x, err := coerce(newCurrentValue(), types.CategoryNumeric, call)
				if err != nil {
					return nil, err
				}
				value = x.(calc.DoubleCalc)
			}
			return &aggregateCalc{
				Base:    calc.NewBase(name, types.Numeric, calc.StyleValue, set, value),
				set:     set,
				value:   value,
				average: name == "Avg",
			}, nil
		},
	}
}

// aggregateCalc sums, or averages, a numeric expression over a set.
// Empty cells are ignored; the result is empty when every cell is.
type aggregateCalc struct {
	calc.Base
	set     calc.IterCalc
	value   calc.DoubleCalc
	average bool
}

func (a *aggregateCalc) DependsOn(h olap.Hierarchy) bool { return setDependsOn(a.set, a.value, h) }

func (a *aggregateCalc) Evaluate(ev calc.Evaluator) (any, error) {
	f, err := a.EvaluateDouble(ev)
	if err != nil {
		return nil, err
	}
	return calc.BoxDouble(f), nil
}

func (a *aggregateCalc) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	cur, err := a.set.EvaluateIterable(ev)
	if err != nil {
		return 0, err
	}
	var (
		sum float64
		n   int
	)
	for cur.Next() {
		if err := calc.Checkpoint(ev); err != nil {
			return 0, err
		}
		v, err := evaluateIn(ev, cur.Tuple(), func() (float64, error) { return a.value.EvaluateDouble(ev) })
		if err != nil {
			return 0, err
		}
		if v != calc.DoubleNull {
			sum += v
			n++
		}
	}
	if err := cur.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return calc.DoubleNull, nil
	}
	if a.average {
		return sum / float64(n), nil
	}
	return sum, nil
}

// currentValue is the cell at the evaluator's current context.
type currentValue struct {
	calc.Base
}

func newCurrentValue() *currentValue {
	return &currentValue{Base: calc.NewBase("CurrentValue", types.Value, calc.StyleValue)}
}

func (*currentValue) DependsOn(olap.Hierarchy) bool { return true }

func (*currentValue) Evaluate(ev calc.Evaluator) (any, error) { return ev.EvaluateCurrent() }
