package memcube

import (
	"fmt"
	"strings"

	"github.com/roach88/cubist/internal/olap"
)

// MeasuresName is the name of the measures dimension.
const MeasuresName = "Measures"

// Cube is an in-memory cube. It is immutable once built and safe for
// concurrent readers.
type Cube struct {
	name        string
	dimensions  []*Dimension
	hierarchies []*Hierarchy

	members     map[string]*Member
	levels      map[string]*Level
	byHierarchy map[string]*Hierarchy
	byDimension map[string]*Dimension

	cells map[string]float64
}

// Dimension is a cube dimension with exactly one hierarchy.
type Dimension struct {
	name      string
	hierarchy *Hierarchy
	measures  bool
}

// Hierarchy is the member tree of a dimension.
type Hierarchy struct {
	dimension *Dimension
	ordinal   int
	levels    []*Level
	roots     []*Member
	all       *Member
	dflt      *Member
	null      *Member
}

// Level is one depth of a hierarchy.
type Level struct {
	name      string
	hierarchy *Hierarchy
	depth     int
	members   []*Member
}

// Member is a node of a hierarchy's member tree.
type Member struct {
	name       string
	uniqueName string
	level      *Level
	hierarchy  *Hierarchy
	parent     *Member
	children   []*Member
	isNull     bool
	isAll      bool
}

func (c *Cube) Name() string { return c.name }

func (c *Cube) Dimensions() []olap.Dimension {
	out := make([]olap.Dimension, len(c.dimensions))
	for i, d := range c.dimensions {
		out[i] = d
	}
	return out
}

func (c *Cube) Hierarchies() []olap.Hierarchy {
	out := make([]olap.Hierarchy, len(c.hierarchies))
	for i, h := range c.hierarchies {
		out[i] = h
	}
	return out
}

// LookupMember finds a member by unique name.
func (c *Cube) LookupMember(uniqueName string) (*Member, bool) {
	m, ok := c.members[olap.FoldName(uniqueName)]
	return m, ok
}

// LookupLevel finds a level by unique name.
func (c *Cube) LookupLevel(uniqueName string) (*Level, bool) {
	l, ok := c.levels[olap.FoldName(uniqueName)]
	return l, ok
}

// LookupHierarchy finds a hierarchy by unique name.
func (c *Cube) LookupHierarchy(uniqueName string) (*Hierarchy, bool) {
	h, ok := c.byHierarchy[olap.FoldName(uniqueName)]
	return h, ok
}

// LookupDimension finds a dimension by unique name.
func (c *Cube) LookupDimension(uniqueName string) (*Dimension, bool) {
	d, ok := c.byDimension[olap.FoldName(uniqueName)]
	return d, ok
}

// MustMember is LookupMember for tests and fixtures; it panics when the
// member does not exist.
func (c *Cube) MustMember(uniqueName string) *Member {
	m, ok := c.LookupMember(uniqueName)
	if !ok {
		panic("memcube: no member " + uniqueName)
	}
	return m
}

// MustLevel is LookupLevel that panics on a missing level.
func (c *Cube) MustLevel(uniqueName string) *Level {
	l, ok := c.LookupLevel(uniqueName)
	if !ok {
		panic("memcube: no level " + uniqueName)
	}
	return l
}

// MustHierarchy is LookupHierarchy that panics on a missing hierarchy.
func (c *Cube) MustHierarchy(uniqueName string) *Hierarchy {
	h, ok := c.LookupHierarchy(uniqueName)
	if !ok {
		panic("memcube: no hierarchy " + uniqueName)
	}
	return h
}

// LevelMembers implements olap.SchemaReader.
func (c *Cube) LevelMembers(level olap.Level) ([]olap.Member, error) {
	l, ok := c.levels[olap.FoldName(level.UniqueName())]
	if !ok {
		return nil, fmt.Errorf("level %s is not in cube %s", level.UniqueName(), c.name)
	}
	return asMembers(l.members), nil
}

// HierarchyMembers implements olap.SchemaReader. Members are returned in
// pre-order: each parent before its children.
func (c *Cube) HierarchyMembers(hierarchy olap.Hierarchy) ([]olap.Member, error) {
	h, ok := c.byHierarchy[olap.FoldName(hierarchy.UniqueName())]
	if !ok {
		return nil, fmt.Errorf("hierarchy %s is not in cube %s", hierarchy.UniqueName(), c.name)
	}
	var out []olap.Member
	var walk func(ms []*Member)
	walk = func(ms []*Member) {
		for _, m := range ms {
			out = append(out, m)
			walk(m.children)
		}
	}
	if h.all != nil {
		walk([]*Member{h.all})
	} else {
		walk(h.roots)
	}
	return out, nil
}

// MemberChildren implements olap.SchemaReader.
func (c *Cube) MemberChildren(member olap.Member) ([]olap.Member, error) {
	if olap.IsNullMember(member) {
		return nil, nil
	}
	m, ok := c.members[olap.FoldName(member.UniqueName())]
	if !ok {
		return nil, fmt.Errorf("member %s is not in cube %s", member.UniqueName(), c.name)
	}
	return asMembers(m.children), nil
}

func asMembers(ms []*Member) []olap.Member {
	out := make([]olap.Member, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}

func (d *Dimension) Name() string       { return d.name }
func (d *Dimension) UniqueName() string { return bracket(d.name) }
func (d *Dimension) IsMeasures() bool   { return d.measures }

func (d *Dimension) Hierarchies() []olap.Hierarchy {
	return []olap.Hierarchy{d.hierarchy}
}

// Hierarchy returns the dimension's only hierarchy.
func (d *Dimension) Hierarchy() *Hierarchy { return d.hierarchy }

func (h *Hierarchy) Name() string              { return h.dimension.name }
func (h *Hierarchy) UniqueName() string        { return bracket(h.dimension.name) }
func (h *Hierarchy) Dimension() olap.Dimension { return h.dimension }
func (h *Hierarchy) DefaultMember() olap.Member {
	return h.dflt
}
func (h *Hierarchy) NullMember() olap.Member { return h.null }

func (h *Hierarchy) Levels() []olap.Level {
	out := make([]olap.Level, len(h.levels))
	for i, l := range h.levels {
		out[i] = l
	}
	return out
}

func (l *Level) Name() string              { return l.name }
func (l *Level) UniqueName() string        { return l.hierarchy.UniqueName() + "." + bracket(l.name) }
func (l *Level) Hierarchy() olap.Hierarchy { return l.hierarchy }
func (l *Level) Depth() int                { return l.depth }

func (m *Member) Name() string              { return m.name }
func (m *Member) UniqueName() string        { return m.uniqueName }
func (m *Member) Hierarchy() olap.Hierarchy { return m.hierarchy }
func (m *Member) IsNull() bool              { return m.isNull }
func (m *Member) IsAll() bool               { return m.isAll }
func (m *Member) IsMeasure() bool           { return m.hierarchy.dimension.measures && !m.isNull }

// Level returns nil for the null member.
func (m *Member) Level() olap.Level {
	if m.level == nil {
		return nil
	}
	return m.level
}

// Parent returns nil for root members.
func (m *Member) Parent() olap.Member {
	if m.parent == nil {
		return nil
	}
	return m.parent
}

// IsLeaf reports whether the member has no children.
func (m *Member) IsLeaf() bool { return len(m.children) == 0 }

func (m *Member) String() string { return m.uniqueName }

func bracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
