package mdx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cubist/internal/compiler"
	"github.com/roach88/cubist/internal/mdx"
	"github.com/roach88/cubist/internal/memcube"
	"github.com/roach88/cubist/internal/testutil"
	"github.com/roach88/cubist/internal/types"
)

func build(t *testing.T, src string, params ...*mdx.Parameter) (mdx.Exp, error) {
	t.Helper()
	v, err := memcube.NewValidator(testutil.SalesCube(t), params...)
	require.NoError(t, err)
	var n mdx.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &n))
	return n.Build(v, v, compiler.Resolve)
}

func TestNode_Shorthand(t *testing.T) {
	var n mdx.Node
	require.NoError(t, yaml.Unmarshal([]byte(`"[Time].[2023]"`), &n))
	assert.Equal(t, "[Time].[2023]", n.Ref)

	var list []*mdx.Node
	require.NoError(t, yaml.Unmarshal([]byte(`[1, 2.5, "x", true, null, "2023"]`), &list))
	require.Len(t, list, 6)
	assert.Equal(t, int64(1), *list[0].Integer)
	assert.Equal(t, 2.5, *list[1].Number)
	assert.Equal(t, "x", *list[2].Text)
	assert.True(t, *list[3].Bool)
	assert.Nil(t, list[4])
	assert.Equal(t, "2023", *list[5].Text)
}

func TestNode_BuildCall(t *testing.T) {
	e, err := build(t, `
call: Sum
args:
  - call: "{}"
    args: ["[Time].[2023]", "[Time].[2024]"]
  - "[Measures].[Units]"
`)
	require.NoError(t, err)
	assert.Equal(t, "Sum({[Time].[2023], [Time].[2024]}, [Measures].[Units])", e.String())
	assert.Equal(t, types.CategoryNumeric, e.Type().Category())
}

func TestNode_BuildOperators(t *testing.T) {
	e, err := build(t, `
call: Filter
args:
  - call: Members
    syntax: property
    args: ["[Product].[Item]"]
  - call: ">"
    syntax: infix
    args:
      - call: CurrentMember
        syntax: property
        args: ["[Product]"]
      - 10
`)
	require.NoError(t, err)
	assert.Equal(t, "Filter([Product].[Item].Members, ([Product].CurrentMember > 10))", e.String())
	assert.True(t, types.IsSet(e.Type()))
}

func TestNode_NullArgument(t *testing.T) {
	e, err := build(t, `{call: "{}", args: ["[Time].[2023]", null]}`)
	require.NoError(t, err)
	assert.Equal(t, "{[Time].[2023], NULL}", e.String())
}

func TestNode_BuildParameter(t *testing.T) {
	limit := &mdx.Parameter{Name: "Limit", Type: types.Numeric, Default: mdx.NumericLiteral(10)}
	e, err := build(t, `{param: limit}`, limit)
	require.NoError(t, err)
	assert.Equal(t, `ParamRef("Limit")`, e.String())
}

func TestNode_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown member", `"[Time].[1999]"`, "not found"},
		{"two kinds", `{ref: "[Time]", integer: 1}`, "exactly one kind"},
		{"no kind", `{syntax: infix}`, "exactly one kind"},
		{"bad syntax", `{call: Sum, syntax: sideways, args: [1]}`, "unknown syntax"},
		{"unknown parameter", `{param: Nope}`, "unknown parameter"},
		{"nested error", `{call: Count, args: ["[Nope]"]}`, "Count args[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWalk(t *testing.T) {
	e, err := build(t, `{call: "+", syntax: infix, args: [1, {call: "-", syntax: prefix, args: [2]}]}`)
	require.NoError(t, err)

	var seen []string
	mdx.Walk(e, func(x mdx.Exp) bool {
		seen = append(seen, x.String())
		return true
	})
	assert.Equal(t, []string{"(1 + -2)", "1", "-2", "2"}, seen)
}

func TestParseSyntax(t *testing.T) {
	s, ok := mdx.ParseSyntax("Infix")
	require.True(t, ok)
	assert.Equal(t, mdx.SyntaxInfix, s)
	assert.Equal(t, "infix", s.String())

	_, ok = mdx.ParseSyntax("postfix")
	assert.False(t, ok)
}
