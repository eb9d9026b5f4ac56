package memcube

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cubist/internal/olap"
)

// ErrInvalidDefinition wraps every error returned by Build.
var ErrInvalidDefinition = errors.New("invalid cube definition")

// Build validates def and constructs the cube.
func Build(def Definition) (*Cube, error) {
	if def.Name == "" {
		return nil, invalid("cube has no name")
	}
	if len(def.Measures) == 0 {
		return nil, invalid("cube %s has no measures", def.Name)
	}

	c := &Cube{
		name:        def.Name,
		members:     make(map[string]*Member),
		levels:      make(map[string]*Level),
		byHierarchy: make(map[string]*Hierarchy),
		byDimension: make(map[string]*Dimension),
		cells:       make(map[string]float64),
	}

	for _, dd := range def.Dimensions {
		if olap.NamesEqual(dd.Name, MeasuresName) {
			return nil, invalid("dimension name %s is reserved", MeasuresName)
		}
		if err := c.addDimension(dd); err != nil {
			return nil, err
		}
	}

	measures := make([]MemberDef, len(def.Measures))
	for i, name := range def.Measures {
		measures[i] = MemberDef{Name: name}
	}
	if err := c.addDimension(DimensionDef{
		Name:    MeasuresName,
		Levels:  []string{"MeasuresLevel"},
		Members: measures,
	}); err != nil {
		return nil, err
	}
	c.dimensions[len(c.dimensions)-1].measures = true

	for i, cell := range def.Cells {
		key, err := c.cellKey(cell.At)
		if err != nil {
			return nil, invalid("cell %d: %v", i, err)
		}
		if _, dup := c.cells[key]; dup {
			return nil, invalid("cell %d: duplicate coordinate %s", i, strings.Join(cell.At, ", "))
		}
		c.cells[key] = cell.Value
	}
	return c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}

func (c *Cube) addDimension(dd DimensionDef) error {
	if dd.Name == "" {
		return invalid("dimension has no name")
	}
	key := olap.FoldName(bracket(dd.Name))
	if _, dup := c.byDimension[key]; dup {
		return invalid("duplicate dimension %s", dd.Name)
	}
	if len(dd.Levels) == 0 {
		return invalid("dimension %s has no levels", dd.Name)
	}
	if len(dd.Members) == 0 {
		return invalid("dimension %s has no members", dd.Name)
	}

	d := &Dimension{name: dd.Name}
	h := &Hierarchy{dimension: d, ordinal: len(c.hierarchies)}
	d.hierarchy = h

	names := dd.Levels
	if dd.All {
		names = append([]string{"(All)"}, names...)
	}
	for i, name := range names {
		l := &Level{name: name, hierarchy: h, depth: i}
		h.levels = append(h.levels, l)
		c.levels[olap.FoldName(l.UniqueName())] = l
	}

	h.null = &Member{
		name:       "#null",
		uniqueName: h.UniqueName() + ".[#null]",
		hierarchy:  h,
		isNull:     true,
	}

	depth := 0
	var parent *Member
	if dd.All {
		h.all = &Member{
			name:       "All",
			uniqueName: h.UniqueName() + ".[All]",
			level:      h.levels[0],
			hierarchy:  h,
			isAll:      true,
		}
		h.levels[0].members = append(h.levels[0].members, h.all)
		c.members[olap.FoldName(h.all.uniqueName)] = h.all
		depth, parent = 1, h.all
	}

	roots, err := c.addMembers(h, parent, h.UniqueName(), dd.Members, depth)
	if err != nil {
		return err
	}
	h.roots = roots
	if h.all != nil {
		h.all.children = roots
	}

	switch {
	case dd.Default != "":
		m, ok := c.members[olap.FoldName(dd.Default)]
		if !ok || m.hierarchy != h {
			return invalid("default member %s is not in dimension %s", dd.Default, dd.Name)
		}
		h.dflt = m
	case h.all != nil:
		h.dflt = h.all
	default:
		h.dflt = roots[0]
	}

	c.dimensions = append(c.dimensions, d)
	c.hierarchies = append(c.hierarchies, h)
	c.byDimension[key] = d
	c.byHierarchy[olap.FoldName(h.UniqueName())] = h
	return nil
}

func (c *Cube) addMembers(h *Hierarchy, parent *Member, prefix string, defs []MemberDef, depth int) ([]*Member, error) {
	if depth >= len(h.levels) {
		return nil, invalid("member %s is deeper than the levels of %s", prefix, h.UniqueName())
	}
	level := h.levels[depth]
	out := make([]*Member, 0, len(defs))
	for _, md := range defs {
		if md.Name == "" {
			return nil, invalid("unnamed member under %s", prefix)
		}
		m := &Member{
			name:       md.Name,
			uniqueName: prefix + "." + bracket(md.Name),
			level:      level,
			hierarchy:  h,
			parent:     parent,
		}
		key := olap.FoldName(m.uniqueName)
		if _, dup := c.members[key]; dup {
			return nil, invalid("duplicate member %s", m.uniqueName)
		}
		c.members[key] = m
		level.members = append(level.members, m)

		if len(md.Children) > 0 {
			children, err := c.addMembers(h, m, m.uniqueName, md.Children, depth+1)
			if err != nil {
				return nil, err
			}
			m.children = children
		}
		out = append(out, m)
	}
	return out, nil
}

// cellKey resolves a coordinate to its storage key: one leaf member per
// hierarchy, in hierarchy order.
func (c *Cube) cellKey(at []string) (string, error) {
	coord := make([]*Member, len(c.hierarchies))
	for _, name := range at {
		m, ok := c.members[olap.FoldName(name)]
		if !ok {
			return "", fmt.Errorf("unknown member %s", name)
		}
		if !m.IsLeaf() {
			return "", fmt.Errorf("member %s is not a leaf", name)
		}
		if coord[m.hierarchy.ordinal] != nil {
			return "", fmt.Errorf("two members of %s", m.hierarchy.UniqueName())
		}
		coord[m.hierarchy.ordinal] = m
	}
	for i, m := range coord {
		if m == nil {
			return "", fmt.Errorf("no member of %s", c.hierarchies[i].UniqueName())
		}
	}
	return keyOf(coord), nil
}

func keyOf(coord []*Member) string {
	var b strings.Builder
	for i, m := range coord {
		if i > 0 {
			b.WriteByte('\x00')
		}
		b.WriteString(olap.FoldName(m.uniqueName))
	}
	return b.String()
}
