package compiler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/compiler"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/memcube"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/testutil"
	"github.com/roach88/cubist/internal/types"
)

type fixture struct {
	t    *testing.T
	cube *memcube.Cube
	v    *memcube.Validator
	c    *compiler.Compiler
	tbl  *compiler.Table
}

func newFixture(t *testing.T, params ...*mdx.Parameter) *fixture {
	t.Helper()
	cube := testutil.SalesCube(t)
	v, err := memcube.NewValidator(cube, params...)
	require.NoError(t, err)
	tbl := compiler.Builtins().Clone()
	return &fixture{t: t, cube: cube, v: v, c: compiler.New(v, compiler.WithFunctions(tbl)), tbl: tbl}
}

func (f *fixture) member(name string) mdx.Exp {
	return &mdx.MemberExpr{Member: f.cube.MustMember(name)}
}

func (f *fixture) null(hierarchy string) mdx.Exp {
	return &mdx.MemberExpr{Member: f.cube.MustHierarchy(hierarchy).NullMember()}
}

func (f *fixture) level(name string) mdx.Exp {
	return &mdx.LevelExpr{Level: f.cube.MustLevel(name)}
}

func (f *fixture) hierarchy(name string) mdx.Exp {
	return &mdx.HierarchyExpr{Hierarchy: f.cube.MustHierarchy(name)}
}

func (f *fixture) call(name string, syntax mdx.Syntax, args ...mdx.Exp) *mdx.Call {
	f.t.Helper()
	call, err := f.tbl.Resolve(f.v, name, syntax, args...)
	require.NoError(f.t, err)
	return call
}

func (f *fixture) set(args ...mdx.Exp) *mdx.Call {
	return f.call("{}", mdx.SyntaxBraces, args...)
}

func (f *fixture) tuple(args ...mdx.Exp) *mdx.Call {
	return f.call("()", mdx.SyntaxParentheses, args...)
}

// eval evaluates x once under a fresh execution, with members made current.
func (f *fixture) eval(x calc.Calc, members ...string) any {
	f.t.Helper()
	var got any
	testutil.Evaluate(f.t, f.cube, func(ev *memcube.Evaluator) error {
		for _, m := range members {
			ev.SetContext(f.cube.MustMember(m))
		}
		var err error
		got, err = x.Evaluate(ev)
		return err
	})
	return got
}

func (f *fixture) list(x calc.ListCalc) *calc.TupleList {
	f.t.Helper()
	var got *calc.TupleList
	testutil.Evaluate(f.t, f.cube, func(ev *memcube.Evaluator) error {
		var err error
		got, err = x.EvaluateList(ev)
		return err
	})
	return got
}

func TestConstantsIgnoreContext(t *testing.T) {
	f := newFixture(t)

	num, err := f.c.CompileDouble(mdx.IntegerLiteral(7))
	require.NoError(t, err)
	str, err := f.c.CompileString(mdx.StringLiteral("seven"))
	require.NoError(t, err)
	mem, err := f.c.CompileMember(f.member("[Product].[Veg]"))
	require.NoError(t, err)

	for _, x := range []calc.Calc{num, str, mem} {
		for _, h := range f.cube.Hierarchies() {
			assert.False(t, x.DependsOn(h), "%s depends on %s", x.Name(), h.UniqueName())
		}
	}

	contexts := [][]string{
		nil,
		{"[Time].[2023].[Q1]"},
		{"[Time].[2024]", "[Product].[Fruit].[Pear]", "[Measures].[Units]"},
	}
	for _, ctx := range contexts {
		assert.Equal(t, 7.0, f.eval(num, ctx...))
		assert.Equal(t, "seven", f.eval(str, ctx...))
		assert.Equal(t, "[Product].[Veg]", f.eval(mem, ctx...).(olap.Member).UniqueName())
	}
}

func TestCompileList_DropsNullTuples(t *testing.T) {
	f := newFixture(t)
	e := f.set(
		f.tuple(f.member("[Time].[2023]"), f.member("[Product].[Fruit]")),
		f.tuple(f.null("[Time]"), f.member("[Product].[Veg]")),
		f.tuple(f.member("[Time].[2024]"), f.member("[Product].[Veg]")),
	)
	want := "{([Time].[2023], [Product].[Fruit]), ([Time].[2024], [Product].[Veg])}"

	list, err := f.c.CompileList(e, false)
	require.NoError(t, err)
	assert.Equal(t, want, f.list(list).String())

	it, err := f.c.CompileIter(e)
	require.NoError(t, err)
	testutil.Evaluate(t, f.cube, func(ev *memcube.Evaluator) error {
		cur, err := it.EvaluateIterable(ev)
		require.NoError(t, err)
		got, err := calc.Drain(ev, cur)
		require.NoError(t, err)
		assert.Equal(t, want, got.String())
		return nil
	})
}

func TestCompileList_DropsNullMembers(t *testing.T) {
	f := newFixture(t)
	e := f.set(f.member("[Product].[Fruit].[Apple]"), f.null("[Product]"), mdx.NullLiteral(), f.member("[Product].[Veg]"))

	list, err := f.c.CompileList(e, false)
	require.NoError(t, err)
	assert.Equal(t, "{([Product].[Fruit].[Apple]), ([Product].[Veg])}", f.list(list).String())
}

func TestCompileList_FiltersNullsFromParameters(t *testing.T) {
	f := newFixture(t)
	product := f.cube.MustHierarchy("[Product]")
	p := &mdx.Parameter{
		Name:    "Picked",
		Type:    types.SetOf(types.ForHierarchyMember(product)),
		Default: f.set(f.member("[Product].[Veg]")),
	}

	x, err := f.c.CompileList(&mdx.ParameterExpr{Parameter: p}, false)
	require.NoError(t, err)
	assert.Equal(t, "{([Product].[Veg])}", f.list(x).String())

	slot, err := f.c.RegisterParameter(p)
	require.NoError(t, err)
	apple := f.cube.MustMember("[Product].[Fruit].[Apple]")
	pear := f.cube.MustMember("[Product].[Fruit].[Pear]")
	null := f.cube.MustHierarchy("[Product]").NullMember()
	slot.SetValue(calc.TupleListOf(1, olap.Tuple{apple}, olap.Tuple{null}, olap.Tuple{pear}))

	assert.Equal(t, "{([Product].[Fruit].[Apple]), ([Product].[Fruit].[Pear])}", f.list(x).String())
}

func TestCompileList_ReturnsFreshLists(t *testing.T) {
	f := newFixture(t)
	list, err := f.c.CompileList(f.set(f.member("[Time].[2023]"), f.member("[Time].[2024]")), false)
	require.NoError(t, err)
	assert.Equal(t, calc.StyleMutableList, list.ResultStyle())

	first := f.list(list)
	second := f.list(list)
	assert.NotSame(t, first, second)

	first.AppendMember(f.cube.MustMember("[Time].[2023].[Q1]"))
	first.AppendMember(f.cube.MustMember("[Time].[2023].[Q2]"))
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, 2, f.list(list).Len())
}

func TestCompileList_MutableCopiesSharedLists(t *testing.T) {
	f := newFixture(t)
	members := f.call("Members", mdx.SyntaxProperty, f.level("[Product].[Item]"))

	shared, err := f.c.CompileList(members, false)
	require.NoError(t, err)
	assert.Equal(t, calc.StyleList, shared.ResultStyle())
	assert.True(t, f.list(shared).Frozen())

	owned, err := f.c.CompileList(members, true)
	require.NoError(t, err)
	assert.Equal(t, calc.StyleMutableList, owned.ResultStyle())

	l := f.list(owned)
	assert.False(t, l.Frozen())
	l.AppendMember(f.cube.MustMember("[Product].[Veg]"))
	assert.Equal(t, 3, f.list(owned).Len())
}

type probeKey struct{}

// probe scripts the members a Probe call returns for one evaluator. When
// reached is set, the call at index blockAt signals it and waits for
// release.
type probe struct {
	members []olap.Member
	blockAt int
	reached chan struct{}
	release chan struct{}
}

type probeCalc struct {
	calc.Base
	index int
}

func (p *probeCalc) Evaluate(ev calc.Evaluator) (any, error) { return p.EvaluateMember(ev) }

func (p *probeCalc) EvaluateMember(ev calc.Evaluator) (olap.Member, error) {
	pr := ev.Context().Value(probeKey{}).(*probe)
	if p.index == pr.blockAt && pr.reached != nil {
		close(pr.reached)
		<-pr.release
	}
	return pr.members[p.index], nil
}

func probeDef(h olap.Hierarchy) *compiler.FunDef {
	return &compiler.FunDef{
		Name:   "Probe",
		Syntax: mdx.SyntaxFunction,
		Resolve: func(mdx.Validator, []mdx.Exp) (types.Type, error) {
			return types.ForHierarchyMember(h), nil
		},
		Compile: func(_ *compiler.Compiler, call *mdx.Call) (calc.Calc, error) {
			i := call.Args[0].(*mdx.Literal).Value.(int64)
			return &probeCalc{Base: calc.NewBase("Probe", call.ResultType, calc.StyleValue), index: int(i)}, nil
		},
	}
}

// Two evaluations of one set construction interleave on its shared buffer:
// the second resets the buffer under the first, which then returns the
// second's tuples followed by its own last element.
func TestSetConstruction_ConcurrentEvaluationsShareBuffer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tbl.Register(probeDef(f.cube.MustHierarchy("[Time]"))))

	e := f.set(
		f.call("Probe", mdx.SyntaxFunction, mdx.IntegerLiteral(0)),
		f.call("Probe", mdx.SyntaxFunction, mdx.IntegerLiteral(1)),
	)
	x, err := f.c.CompileList(e, false)
	require.NoError(t, err)

	m := f.cube.MustMember
	a := &probe{
		members: []olap.Member{m("[Time].[2023].[Q1]"), m("[Time].[2023].[Q2]")},
		blockAt: 1,
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	b := &probe{members: []olap.Member{m("[Time].[2024].[Q1]"), m("[Time].[2024].[Q2]")}, blockAt: -1}

	type result struct {
		list *calc.TupleList
		err  error
	}
	err = testutil.RunBound(t, func(ctx context.Context) error {
		evA := memcube.NewEvaluator(context.WithValue(ctx, probeKey{}, a), f.cube)
		evB := memcube.NewEvaluator(context.WithValue(ctx, probeKey{}, b), f.cube)

		done := make(chan result, 1)
		go func() {
			l, err := x.EvaluateList(evA)
			done <- result{l, err}
		}()

		<-a.reached
		lb, err := x.EvaluateList(evB)
		if err != nil {
			return err
		}
		close(a.release)
		ra := <-done
		if ra.err != nil {
			return ra.err
		}

		assert.Equal(t, "{([Time].[2024].[Q1]), ([Time].[2024].[Q2])}", lb.String())
		assert.Equal(t, "{([Time].[2024].[Q1]), ([Time].[2024].[Q2]), ([Time].[2023].[Q2])}", ra.list.String())
		return nil
	})
	require.NoError(t, err)
}

func TestCompile_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		compile func() error
		code    string
	}{
		{
			name: "level as number",
			compile: func() error {
				_, err := f.c.CompileDouble(f.level("[Time].[Year]"))
				return err
			},
			code: compiler.ErrIncompatibleType,
		},
		{
			name: "string as set",
			compile: func() error {
				_, err := f.c.CompileList(mdx.StringLiteral("x"), false)
				return err
			},
			code: compiler.ErrIncompatibleType,
		},
		{
			name: "unknown function",
			compile: func() error {
				_, err := f.c.Compile(&mdx.Call{Name: "Nope", Syntax: mdx.SyntaxFunction, ResultType: types.Numeric})
				return err
			},
			code: compiler.ErrUnknownFunction,
		},
		{
			name: "unresolvable function",
			compile: func() error {
				_, err := compiler.Resolve(f.v, "Nope", mdx.SyntaxFunction)
				return err
			},
			code: compiler.ErrUnknownFunction,
		},
		{
			name: "nil expression",
			compile: func() error {
				_, err := f.c.Compile(nil)
				return err
			},
			code: compiler.ErrUnsupportedExp,
		},
		{
			name: "mixed arity set",
			compile: func() error {
				_, err := f.tbl.Resolve(f.v, "{}", mdx.SyntaxBraces,
					f.member("[Time].[2023]"),
					f.tuple(f.member("[Time].[2024]"), f.member("[Product].[Veg]")))
				return err
			},
			code: compiler.ErrArityMismatch,
		},
		{
			name: "tuple repeats a hierarchy",
			compile: func() error {
				_, err := f.tbl.Resolve(f.v, "()", mdx.SyntaxParentheses, f.member("[Time].[2023]"), f.member("[Time].[2024]"))
				return err
			},
			code: compiler.ErrIncompatibleType,
		},
		{
			name: "filter arity",
			compile: func() error {
				_, err := f.tbl.Resolve(f.v, "Filter", mdx.SyntaxFunction, f.set(f.member("[Time].[2023]")))
				return err
			},
			code: compiler.ErrArityMismatch,
		},
		{
			name: "unknown parameter",
			compile: func() error {
				_, err := f.c.Compile(f.call("ParamRef", mdx.SyntaxFunction, mdx.StringLiteral("Missing")))
				return err
			},
			code: compiler.ErrUnknownParameter,
		},
		{
			name: "parameter name not constant",
			compile: func() error {
				_, err := f.tbl.Resolve(f.v, "Parameter", mdx.SyntaxFunction,
					f.call("Name", mdx.SyntaxProperty, f.member("[Time].[2023]")),
					mdx.SymbolLiteral("NUMERIC"),
					mdx.NumericLiteral(1))
				return err
			},
			code: compiler.ErrMalformedConstant,
		},
		{
			name: "parameter type not a symbol",
			compile: func() error {
				_, err := f.tbl.Resolve(f.v, "Parameter", mdx.SyntaxFunction,
					mdx.StringLiteral("P"), mdx.NumericLiteral(3), mdx.NumericLiteral(1))
				return err
			},
			code: compiler.ErrMalformedConstant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.compile()
			require.Error(t, err)
			assert.True(t, compiler.IsCompileError(err))
			assert.Equal(t, tt.code, compiler.CodeOf(err), err.Error())
		})
	}
}

func TestCompileError_Message(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.CompileDouble(f.level("[Time].[Year]"))
	require.Error(t, err)
	assert.Equal(t, "[E200] incompatible type: expected NUMERIC, got LEVEL<[Time].[Year]> in [Time].[Year]", err.Error())
}

func TestRegisterParameter(t *testing.T) {
	f := newFixture(t)
	p := &mdx.Parameter{Name: "Threshold", Type: types.Numeric, Default: mdx.IntegerLiteral(10)}

	s1, err := f.c.RegisterParameter(p)
	require.NoError(t, err)
	s2, err := f.c.RegisterParameter(p)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	s3, err := f.c.RegisterParameter(&mdx.Parameter{Name: "THRESHOLD", Type: types.Numeric})
	require.NoError(t, err)
	assert.Same(t, s1, s3, "names fold case")

	derived := f.c.WithResultStyles(calc.StylesIterable)
	s4, err := derived.RegisterParameter(p)
	require.NoError(t, err)
	assert.Same(t, s1, s4, "derived compilers share slots")

	_, err = f.c.RegisterParameter(&mdx.Parameter{Name: "threshold", Type: types.String})
	require.Error(t, err)
	assert.Equal(t, compiler.ErrParameterType, compiler.CodeOf(err))

	assert.Len(t, f.c.Slots(), 1)
	got, ok := f.c.LookupSlot("tHrEsHoLd")
	require.True(t, ok)
	assert.Same(t, s1, got)
}

func TestRegisterParameter_DefaultTypeMismatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.RegisterParameter(&mdx.Parameter{Name: "Region", Type: types.Numeric, Default: mdx.StringLiteral("north")})
	require.Error(t, err)

	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, compiler.ErrParameterType, ce.Code)
	assert.Equal(t, "Region", ce.Parameter)
	assert.Equal(t, "NUMERIC", ce.Expected)
	assert.Equal(t, "STRING", ce.Actual)
}

func TestParameterFunction_DefaultTypeMismatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.tbl.Resolve(f.v, "Parameter", mdx.SyntaxFunction,
		mdx.StringLiteral("Region"), mdx.SymbolLiteral("NUMERIC"), f.level("[Time].[Year]"))
	require.Error(t, err)

	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, compiler.ErrParameterType, ce.Code)
	assert.Equal(t, "Region", ce.Parameter)
}

func TestParameter_SlotValueAndDefault(t *testing.T) {
	f := newFixture(t)
	call := f.call("Parameter", mdx.SyntaxFunction,
		mdx.StringLiteral("Threshold"), mdx.SymbolLiteral("numeric"), mdx.IntegerLiteral(10), mdx.StringLiteral("cut-off"))
	assert.Equal(t, types.Numeric, call.Type())

	p, ok := f.v.LookupParameter("threshold")
	require.True(t, ok, "Parameter defines the parameter in the validator")
	assert.Equal(t, "cut-off", p.Description)

	x, err := f.c.CompileDouble(call)
	require.NoError(t, err)
	assert.Equal(t, 10.0, f.eval(x))

	ref, err := f.c.CompileDouble(f.call("ParamRef", mdx.SyntaxFunction, mdx.StringLiteral("THRESHOLD")))
	require.NoError(t, err)

	slot, ok := f.c.LookupSlot("Threshold")
	require.True(t, ok)
	slot.SetValue(2.5)
	assert.Equal(t, 2.5, f.eval(x))
	assert.Equal(t, 2.5, f.eval(ref))

	slot.Unset()
	assert.Equal(t, 10.0, f.eval(ref))
	assert.Equal(t, []string{"parameter=Threshold"}, ref.(calc.Explainer).ExplainProps())
}

func TestParameter_SetValueIsCopiedOut(t *testing.T) {
	picked := &mdx.Parameter{
		Name: "Picked",
		Type: types.SetOf(types.ForHierarchyMember(testutil.SalesCube(t).MustHierarchy("[Product]"))),
	}
	f := newFixture(t, picked)
	x, err := f.c.Compile(&mdx.ParameterExpr{Parameter: picked})
	require.NoError(t, err)
	assert.Equal(t, calc.StyleMutableList, x.ResultStyle())

	bound := calc.NewTupleList(1, 1)
	bound.AppendMember(f.cube.MustMember("[Product].[Fruit].[Apple]"))
	slot, ok := f.c.LookupSlot("Picked")
	require.True(t, ok)
	slot.SetValue(bound)

	got, ok := f.eval(x).(*calc.TupleList)
	require.True(t, ok)
	assert.NotSame(t, bound, got)
	got.AppendMember(f.cube.MustMember("[Product].[Fruit].[Pear]"))
	assert.Equal(t, 1, bound.Len(), "callers may mutate the boxed result")
	assert.Equal(t, 1, f.list(x.(calc.ListCalc)).Len())
}

func TestCompileMember_HierarchyIsCurrentMember(t *testing.T) {
	f := newFixture(t)
	time := f.cube.MustHierarchy("[Time]")

	x, err := f.c.CompileMember(f.hierarchy("[Time]"))
	require.NoError(t, err)
	assert.True(t, x.DependsOn(time))
	assert.False(t, x.DependsOn(f.cube.MustHierarchy("[Product]")))

	assert.Equal(t, "[Time].[All]", f.eval(x).(olap.Member).UniqueName())
	assert.Equal(t, "[Time].[2024].[Q1]", f.eval(x, "[Time].[2024].[Q1]").(olap.Member).UniqueName())
}

func TestCompileScalar_MemberReadsCurrentMeasure(t *testing.T) {
	f := newFixture(t)

	x, err := f.c.CompileScalar(f.member("[Time].[2023]"), false)
	require.NoError(t, err)
	assert.Equal(t, 32.0, f.eval(x))
	assert.Equal(t, 22.0, f.eval(x, "[Product].[Fruit].[Apple]", "[Time].[2024]"), "own hierarchy is overridden")
	assert.False(t, x.DependsOn(f.cube.MustHierarchy("[Time]")))
	assert.True(t, x.DependsOn(f.cube.MustHierarchy("[Product]")))

	d, err := f.c.CompileScalar(f.tuple(f.member("[Time].[2024]"), f.member("[Measures].[Units]")), true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, f.eval(d))
}

func TestCompileAs_ValueNotNull(t *testing.T) {
	f := newFixture(t)

	_, err := f.c.CompileAs(mdx.NullLiteral(), types.Numeric, calc.StylesValueNotNull)
	require.Error(t, err)
	assert.Equal(t, compiler.ErrIncompatibleType, compiler.CodeOf(err))

	k, err := f.c.CompileAs(mdx.IntegerLiteral(4), types.Numeric, calc.StylesValueNotNull)
	require.NoError(t, err)
	assert.Equal(t, 4.0, f.eval(k), "non-null constants satisfy the style as they are")

	cell, err := f.c.CompileAs(f.member("[Time].[2023]"), types.Numeric, calc.StylesValueNotNull)
	require.NoError(t, err)
	assert.Equal(t, calc.StyleValueNotNull, cell.ResultStyle())
	assert.Equal(t, calc.KindDouble, calc.KindOf(cell))
	assert.Equal(t, 32.0, f.eval(cell))

	empty, err := f.c.CompileAs(f.member("[Time].[2024].[Q2]"), types.Numeric, calc.StylesValueNotNull)
	require.NoError(t, err)
	var evalErr error
	testutil.Evaluate(t, f.cube, func(ev *memcube.Evaluator) error {
		_, evalErr = empty.(calc.DoubleCalc).EvaluateDouble(ev)
		return nil
	})
	assert.ErrorIs(t, evalErr, compiler.ErrNullValue)

	nullable, err := f.c.CompileAs(f.member("[Time].[2024].[Q2]"), types.Numeric, calc.StylesValue)
	require.NoError(t, err)
	assert.Nil(t, f.eval(nullable), "plain VALUE keeps empty cells")
}

func TestCompileAs_Conversions(t *testing.T) {
	f := newFixture(t)

	x, err := f.c.CompileAs(mdx.IntegerLiteral(3), types.String, nil)
	require.NoError(t, err)
	assert.Equal(t, "3", f.eval(x))

	x, err = f.c.CompileAs(f.member("[Time].[2023]"), types.TupleOf(types.UnknownMember), nil)
	require.NoError(t, err)
	assert.Equal(t, calc.KindTuple, calc.KindOf(x))

	x, err = f.c.CompileAs(f.level("[Time].[Quarter]"), types.SetOf(types.UnknownMember), calc.StylesIterable)
	require.NoError(t, err)
	assert.Equal(t, calc.KindIterable, calc.KindOf(x))

	x, err = f.c.CompileAs(f.member("[Product].[Veg].[Carrot]"), types.ForDimension(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "[Product]", f.eval(x).(olap.Dimension).UniqueName())

	x, err = f.c.CompileAs(f.level("[Time].[Year]"), types.ForHierarchy(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "[Time]", f.eval(x).(olap.Hierarchy).UniqueName())
}
