package olap

// Dimension is a named axis of a cube.
type Dimension interface {
	Name() string
	UniqueName() string
	Hierarchies() []Hierarchy
	IsMeasures() bool
}

// Hierarchy is one navigation tree of a dimension.
//
// NullMember returns the member that stands for "no member" in this
// hierarchy. It reports IsNull() == true.
type Hierarchy interface {
	Name() string
	UniqueName() string
	Dimension() Dimension
	Levels() []Level
	DefaultMember() Member
	NullMember() Member
}

// Level is a depth within a hierarchy.
type Level interface {
	Name() string
	UniqueName() string
	Hierarchy() Hierarchy
	Depth() int
}

// Member is a position in a hierarchy.
type Member interface {
	Name() string
	UniqueName() string
	Level() Level
	Hierarchy() Hierarchy
	Parent() Member
	IsNull() bool
	IsAll() bool
	IsMeasure() bool
}

// Cube is the dimensional space a query is evaluated against.
type Cube interface {
	Name() string
	Dimensions() []Dimension
	Hierarchies() []Hierarchy
}

// SchemaReader gives access to member lists.
//
// Implementations may go to a relational source; they are expected to
// register any native statement they open with the current execution.
type SchemaReader interface {
	LevelMembers(level Level) ([]Member, error)
	HierarchyMembers(hierarchy Hierarchy) ([]Member, error)
	MemberChildren(member Member) ([]Member, error)
}

// IsNullMember reports whether m is absent or the null member of its hierarchy.
func IsNullMember(m Member) bool {
	return m == nil || m.IsNull()
}

// SameMember reports whether a and b denote the same member.
// Two null members are never the same.
func SameMember(a, b Member) bool {
	if IsNullMember(a) || IsNullMember(b) {
		return false
	}
	return a == b || NamesEqual(a.UniqueName(), b.UniqueName())
}

// SameHierarchy reports whether a and b denote the same hierarchy.
func SameHierarchy(a, b Hierarchy) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || NamesEqual(a.UniqueName(), b.UniqueName())
}

// SameDimension reports whether a and b denote the same dimension.
func SameDimension(a, b Dimension) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || NamesEqual(a.UniqueName(), b.UniqueName())
}

// SameLevel reports whether a and b denote the same level.
func SameLevel(a, b Level) bool {
	if a == nil || b == nil {
		return false
	}
	return a == b || NamesEqual(a.UniqueName(), b.UniqueName())
}
