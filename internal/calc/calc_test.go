package calc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cubist/internal/calc"
	"github.com/roach88/cubist/internal/execution"
	"github.com/roach88/cubist/internal/memcube"
	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/testutil"
	"github.com/roach88/cubist/internal/types"
)

func TestResultStyle_Negotiate(t *testing.T) {
	tests := []struct {
		name      string
		preferred []calc.ResultStyle
		offered   []calc.ResultStyle
		want      calc.ResultStyle
		ok        bool
	}{
		{"any takes first offer", calc.StylesAny, []calc.ResultStyle{calc.StyleIterable, calc.StyleList}, calc.StyleIterable, true},
		{"first preference wins", calc.StylesIterableListAny, []calc.ResultStyle{calc.StyleList, calc.StyleIterable}, calc.StyleIterable, true},
		{"falls through preferences", calc.StylesIterableListAny, []calc.ResultStyle{calc.StyleMutableList}, calc.StyleMutableList, true},
		{"no match", calc.StylesIterable, []calc.ResultStyle{calc.StyleList}, calc.StyleAny, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := calc.Negotiate(tt.preferred, tt.offered)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResultStyle_Accepts(t *testing.T) {
	assert.True(t, calc.Accepts(calc.StylesAny, calc.StyleIterable))
	assert.True(t, calc.Accepts(calc.StylesList, calc.StyleMutableList))
	assert.False(t, calc.Accepts(calc.StylesMutableList, calc.StyleList))
	assert.False(t, calc.Accepts(calc.StylesIterable, calc.StyleList))
	assert.Equal(t, "[ITERABLE, ANY]", calc.FormatStyles(calc.StylesIterableAny))
	assert.Equal(t, "VALUE_NOT_NULL", calc.StyleValueNotNull.String())
}

func TestTupleList_FrozenRejectsWrites(t *testing.T) {
	c := testutil.SalesCube(t)
	apple := c.MustMember("[Product].[Fruit].[Apple]")

	l := calc.NewTupleList(1, 0)
	l.AppendMember(apple)
	l.Freeze()

	assert.True(t, l.Frozen())
	assert.Panics(t, func() { l.AppendMember(apple) })
	assert.Panics(t, l.Reset)

	cp := l.Copy()
	assert.False(t, cp.Frozen())
	cp.AppendMember(apple)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 2, cp.Len())
}

func TestTupleList_AppendCopiesTuple(t *testing.T) {
	c := testutil.SalesCube(t)
	tup := olap.Tuple{c.MustMember("[Time].[2023]"), c.MustMember("[Product].[Veg]")}

	l := calc.NewTupleList(2, 0)
	l.Append(tup)
	tup[0] = c.MustMember("[Time].[2024]")

	assert.Equal(t, "([Time].[2023], [Product].[Veg])", l.At(0).String())
	assert.Panics(t, func() { l.AppendMember(c.MustMember("[Time].[2023]")) }, "arity mismatch")
}

func TestTupleList_WithoutNulls(t *testing.T) {
	c := testutil.SalesCube(t)
	a := c.MustMember("[Product].[Fruit].[Apple]")
	pear := c.MustMember("[Product].[Fruit].[Pear]")
	null := c.MustHierarchy("[Product]").NullMember()

	clean := calc.TupleListOf(1, olap.Tuple{a}, olap.Tuple{pear})
	assert.Same(t, clean, calc.WithoutNulls(clean))

	dirty := calc.TupleListOf(1, olap.Tuple{a}, olap.Tuple{null}, olap.Tuple{pear}, olap.Tuple{nil})
	got := calc.WithoutNulls(dirty)
	assert.Equal(t, "{([Product].[Fruit].[Apple]), ([Product].[Fruit].[Pear])}", got.String())
	assert.Equal(t, 4, dirty.Len(), "input untouched")
}

func TestCursor_SkipNullsAndDrain(t *testing.T) {
	c := testutil.SalesCube(t)
	a := c.MustMember("[Product].[Fruit].[Apple]")
	null := c.MustHierarchy("[Product]").NullMember()
	l := calc.TupleListOf(1, olap.Tuple{null}, olap.Tuple{a}, olap.Tuple{null})

	cur := calc.SkipNulls(l.Cursor())
	require.True(t, cur.Next())
	assert.Equal(t, "([Product].[Fruit].[Apple])", cur.Tuple().String())
	assert.False(t, cur.Next())
	assert.False(t, cur.Next(), "cursors are single pass")
	assert.NoError(t, cur.Err())

	testutil.Evaluate(t, c, func(ev *memcube.Evaluator) error {
		got, err := calc.Drain(ev, l.Cursor())
		require.NoError(t, err)
		assert.Equal(t, 1, got.Len())
		return nil
	})
}

func TestDrain_StopsWhenCanceled(t *testing.T) {
	c := testutil.SalesCube(t)
	a := c.MustMember("[Product].[Fruit].[Apple]")
	l := calc.TupleListOf(1, olap.Tuple{a})

	testutil.Evaluate(t, c, func(ev *memcube.Evaluator) error {
		execution.MustCurrent(ev.Context()).Cancel()
		_, err := calc.Drain(ev, l.Cursor())
		assert.True(t, execution.IsCanceled(err))
		return nil
	})
}

func TestFuncCursor_Error(t *testing.T) {
	boom := assert.AnError
	n := 0
	cur := calc.NewFuncCursor(1, func() (olap.Tuple, bool, error) {
		n++
		if n > 1 {
			return nil, false, boom
		}
		return olap.Tuple{nil}, true, nil
	})
	assert.True(t, cur.Next())
	assert.False(t, cur.Next())
	assert.Same(t, boom, cur.Err())
}

func TestConstant(t *testing.T) {
	c := testutil.SalesCube(t)
	year := c.MustMember("[Time].[2024]")

	num := calc.NewConstant(types.Numeric, 2.5)
	assert.Equal(t, calc.KindDouble, calc.KindOf(num))
	assert.False(t, num.DependsOn(c.MustHierarchy("[Time]")))

	testutil.Evaluate(t, c, func(ev *memcube.Evaluator) error {
		f, err := num.EvaluateDouble(ev)
		require.NoError(t, err)
		assert.Equal(t, 2.5, f)

		s, err := num.EvaluateString(ev)
		require.NoError(t, err)
		assert.Equal(t, "2.5", s)

		null := calc.NullConstant(types.Numeric)
		f, err = null.EvaluateDouble(ev)
		require.NoError(t, err)
		assert.Equal(t, calc.DoubleNull, f)
		i, err := null.EvaluateInteger(ev)
		require.NoError(t, err)
		assert.Equal(t, int64(calc.IntegerNull), i)

		m, err := calc.NewConstant(types.ForMember(year), year).EvaluateMember(ev)
		require.NoError(t, err)
		assert.Same(t, year, m)

		tup, err := calc.NewConstant(types.ForMember(year), year).EvaluateTuple(ev)
		require.NoError(t, err)
		assert.Equal(t, olap.Tuple{year}, tup)

		_, err = calc.NewConstant(types.String, "x").EvaluateMember(ev)
		assert.Error(t, err)
		return nil
	})
}

func TestConversions(t *testing.T) {
	f, err := calc.ToDouble(int64(calc.IntegerNull))
	require.NoError(t, err)
	assert.Equal(t, calc.DoubleNull, f)

	i, err := calc.ToInteger(7.9)
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	b, err := calc.ToBoolean(0.0)
	require.NoError(t, err)
	assert.False(t, b)
	b, err = calc.ToBoolean(calc.DoubleNull)
	require.NoError(t, err)
	assert.False(t, b)

	s, err := calc.ToString(true)
	require.NoError(t, err)
	assert.Equal(t, "true", s)

	d, err := calc.ToDateTime("2024-03-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = calc.ToDouble("abc")
	assert.Error(t, err)

	assert.True(t, calc.IsNull(nil))
	assert.True(t, calc.IsNull(calc.DoubleNull))
	assert.True(t, calc.IsNull(olap.Tuple{nil}))
	assert.False(t, calc.IsNull(0.0))
	assert.Equal(t, "#null", calc.FormatValue(nil))
	assert.Equal(t, `"x"`, calc.FormatValue("x"))
}

type pair struct {
	calc.Base
	left, right calc.DoubleCalc
}

func (p *pair) Evaluate(ev calc.Evaluator) (any, error) { return p.EvaluateDouble(ev) }

func (p *pair) EvaluateDouble(ev calc.Evaluator) (float64, error) {
	l, err := p.left.EvaluateDouble(ev)
	if err != nil {
		return 0, err
	}
	r, err := p.right.EvaluateDouble(ev)
	if err != nil {
		return 0, err
	}
	return l + r, nil
}

func TestExplain(t *testing.T) {
	left := calc.NewConstant(types.Numeric, 1.0)
	right := calc.NewConstant(types.Integer, int64(2))
	root := &pair{
		Base:  calc.NewBase("Plus", types.Numeric, calc.StyleValue, left, right),
		left:  left,
		right: right,
	}

	want := "Plus(type=NUMERIC, resultStyle=VALUE)\n" +
		"    Constant(type=NUMERIC, resultStyle=VALUE, value=1)\n" +
		"    Constant(type=INTEGER, resultStyle=VALUE, value=2)\n"
	assert.Equal(t, want, calc.ExplainString(root))
	assert.False(t, root.DependsOn(nil), "no child depends on anything")
	assert.Equal(t, calc.KindDouble, calc.KindOf(root))
}
