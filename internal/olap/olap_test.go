package olap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cubist/internal/olap"
	"github.com/roach88/cubist/internal/testutil"
)

func TestFoldName(t *testing.T) {
	assert.Equal(t, olap.FoldName("[Time].[Q1]"), olap.FoldName("[time].[q1]"))
	assert.True(t, olap.NamesEqual("[Time].[ANNÉE]", "[time].[année]"), "case and normalization both fold")
	assert.True(t, olap.NamesEqual("[Time].[Année]", "[Time].[Anne\u0301e]"), "combining accents compose")
	assert.False(t, olap.NamesEqual("[Time].[Q1]", "[Time].[Q2]"))
}

func TestSameMember(t *testing.T) {
	cube := testutil.SalesCube(t)
	apple := cube.MustMember("[Product].[Fruit].[Apple]")
	null := cube.MustHierarchy("[Product]").NullMember()

	assert.True(t, olap.SameMember(apple, cube.MustMember("[product].[fruit].[apple]")))
	assert.False(t, olap.SameMember(apple, cube.MustMember("[Product].[Fruit].[Pear]")))
	assert.False(t, olap.SameMember(null, null), "null members are never the same")
	assert.True(t, olap.IsNullMember(nil))
	assert.True(t, olap.IsNullMember(null))
}

func TestSameHierarchy(t *testing.T) {
	cube := testutil.SalesCube(t)
	product := cube.MustHierarchy("[Product]")

	assert.True(t, olap.SameHierarchy(product, cube.MustMember("[Product].[Veg]").Hierarchy()))
	assert.False(t, olap.SameHierarchy(product, cube.MustHierarchy("[Time]")))
	assert.False(t, olap.SameHierarchy(product, nil))
	assert.True(t, olap.SameLevel(cube.MustLevel("[Time].[Year]"), cube.MustMember("[Time].[2024]").Level()))
}

func TestTuple(t *testing.T) {
	cube := testutil.SalesCube(t)
	q1 := cube.MustMember("[Time].[2023].[Q1]")
	apple := cube.MustMember("[Product].[Fruit].[Apple]")
	tuple := olap.Tuple{q1, apple}

	assert.Equal(t, "([Time].[2023].[Q1], [Product].[Fruit].[Apple])", tuple.String())
	assert.Equal(t, []string{"[Time].[2023].[Q1]", "[Product].[Fruit].[Apple]"}, tuple.UniqueNames())
	assert.Equal(t, 2, tuple.Arity())
	assert.False(t, tuple.IsNull())

	clone := tuple.Clone()
	assert.True(t, clone.Equal(tuple))
	clone[1] = cube.MustMember("[Product].[Fruit].[Pear]")
	assert.Equal(t, "[Product].[Fruit].[Apple]", tuple[1].UniqueName(), "clones do not share storage")
	assert.False(t, clone.Equal(tuple))

	withNull := olap.Tuple{q1, cube.MustHierarchy("[Product]").NullMember()}
	assert.True(t, withNull.IsNull())
	assert.Equal(t, "([Time].[2023].[Q1], #null)", withNull.String())
	assert.True(t, olap.Tuple(nil).IsNull())
	assert.Nil(t, olap.Tuple(nil).Clone())
}
