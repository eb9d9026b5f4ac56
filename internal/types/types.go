// Package types describes the static shape of query expressions.
//
// Type is a sealed interface: only the types in this package implement it,
// so the compiler can switch over them exhaustively. Types are pure data and
// are only consulted at compile time.
package types

import (
	"strings"

	"github.com/roach88/cubist/internal/olap"
)

// Category classifies a Type.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNumeric
	CategoryInteger
	CategoryString
	CategoryBoolean
	CategoryDateTime
	CategorySymbol
	// CategoryValue is a scalar whose kind is only known at run time.
	CategoryValue
	CategoryNull
	CategoryMember
	CategoryTuple
	CategorySet
	CategoryDimension
	CategoryHierarchy
	CategoryLevel
	CategoryCube
)

var categoryNames = map[Category]string{
	CategoryUnknown:   "UNKNOWN",
	CategoryNumeric:   "NUMERIC",
	CategoryInteger:   "INTEGER",
	CategoryString:    "STRING",
	CategoryBoolean:   "BOOLEAN",
	CategoryDateTime:  "DATETIME",
	CategorySymbol:    "SYMBOL",
	CategoryValue:     "SCALAR",
	CategoryNull:      "NULL",
	CategoryMember:    "MEMBER",
	CategoryTuple:     "TUPLE",
	CategorySet:       "SET",
	CategoryDimension: "DIMENSION",
	CategoryHierarchy: "HIERARCHY",
	CategoryLevel:     "LEVEL",
	CategoryCube:      "CUBE",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// IsScalar reports whether values of this category are scalars.
func (c Category) IsScalar() bool {
	switch c {
	case CategoryNumeric, CategoryInteger, CategoryString, CategoryBoolean,
		CategoryDateTime, CategorySymbol, CategoryValue, CategoryNull:
		return true
	}
	return false
}

// IsNumeric reports whether the category holds numbers.
func (c Category) IsNumeric() bool {
	return c == CategoryNumeric || c == CategoryInteger
}

// Type is the static type of an expression or of a compiled calc.
type Type interface {
	typeNode() // seals the interface to this package

	Category() Category
	String() string

	// Dimension, Hierarchy and Level return the catalog object the type is
	// bound to, or nil when the binding is unknown.
	Dimension() olap.Dimension
	Hierarchy() olap.Hierarchy
	Level() olap.Level

	// UsesHierarchy reports whether values of this type may contain a
	// member of h. With definitely set, it only answers true when the type
	// is bound to h; otherwise an unbound type conservatively answers true.
	UsesHierarchy(h olap.Hierarchy, definitely bool) bool
}

// ScalarType is a scalar of a fixed kind.
type ScalarType struct {
	Kind Category
}

func (ScalarType) typeNode() {}

var (
	Numeric  Type = ScalarType{Kind: CategoryNumeric}
	Integer  Type = ScalarType{Kind: CategoryInteger}
	String   Type = ScalarType{Kind: CategoryString}
	Boolean  Type = ScalarType{Kind: CategoryBoolean}
	DateTime Type = ScalarType{Kind: CategoryDateTime}
	Symbol   Type = ScalarType{Kind: CategorySymbol}
	Value    Type = ScalarType{Kind: CategoryValue}
	Null     Type = ScalarType{Kind: CategoryNull}
	Cube     Type = CubeType{}
)

func (s ScalarType) Category() Category                    { return s.Kind }
func (s ScalarType) String() string                        { return s.Kind.String() }
func (ScalarType) Dimension() olap.Dimension               { return nil }
func (ScalarType) Hierarchy() olap.Hierarchy               { return nil }
func (ScalarType) Level() olap.Level                       { return nil }
func (ScalarType) UsesHierarchy(olap.Hierarchy, bool) bool { return false }

// MemberType is the type of a member, optionally bound to a dimension,
// hierarchy or level.
type MemberType struct {
	dimension olap.Dimension
	hierarchy olap.Hierarchy
	level     olap.Level
}

func (MemberType) typeNode() {}

// UnknownMember is a member of any hierarchy.
var UnknownMember = MemberType{}

// MemberOf builds a member type. Missing outer bindings are derived from
// the inner ones: a level implies its hierarchy, a hierarchy its dimension.
func MemberOf(dimension olap.Dimension, hierarchy olap.Hierarchy, level olap.Level) MemberType {
	if level != nil && hierarchy == nil {
		hierarchy = level.Hierarchy()
	}
	if hierarchy != nil && dimension == nil {
		dimension = hierarchy.Dimension()
	}
	return MemberType{dimension: dimension, hierarchy: hierarchy, level: level}
}

// ForMember returns the most specific type of m.
func ForMember(m olap.Member) MemberType {
	if m == nil || m.IsNull() {
		if m != nil {
			return MemberOf(nil, m.Hierarchy(), nil)
		}
		return UnknownMember
	}
	return MemberOf(nil, m.Hierarchy(), m.Level())
}

// ForHierarchyMember returns the type of a member of h at unknown level.
func ForHierarchyMember(h olap.Hierarchy) MemberType {
	return MemberOf(nil, h, nil)
}

func (MemberType) Category() Category          { return CategoryMember }
func (m MemberType) Dimension() olap.Dimension { return m.dimension }
func (m MemberType) Hierarchy() olap.Hierarchy { return m.hierarchy }
func (m MemberType) Level() olap.Level         { return m.level }

func (m MemberType) String() string {
	switch {
	case m.level != nil:
		return "MEMBER<level=" + m.level.UniqueName() + ">"
	case m.hierarchy != nil:
		return "MEMBER<hierarchy=" + m.hierarchy.UniqueName() + ">"
	case m.dimension != nil:
		return "MEMBER<dimension=" + m.dimension.UniqueName() + ">"
	}
	return "MEMBER"
}

func (m MemberType) UsesHierarchy(h olap.Hierarchy, definitely bool) bool {
	if m.hierarchy != nil {
		return olap.SameHierarchy(m.hierarchy, h)
	}
	if definitely {
		return false
	}
	if m.dimension != nil {
		return h != nil && olap.SameDimension(m.dimension, h.Dimension())
	}
	return true
}

// TupleType is a fixed-arity combination of member types.
type TupleType struct {
	Elements []Type
}

func (TupleType) typeNode() {}

// TupleOf builds a tuple type from its element types.
func TupleOf(elements ...Type) TupleType {
	return TupleType{Elements: elements}
}

func (TupleType) Category() Category        { return CategoryTuple }
func (TupleType) Dimension() olap.Dimension { return nil }
func (TupleType) Hierarchy() olap.Hierarchy { return nil }
func (TupleType) Level() olap.Level         { return nil }

func (t TupleType) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.String()
	}
	return "TUPLE<" + strings.Join(parts, ", ") + ">"
}

func (t TupleType) UsesHierarchy(h olap.Hierarchy, definitely bool) bool {
	for _, e := range t.Elements {
		if e.UsesHierarchy(h, definitely) {
			return true
		}
	}
	return false
}

// SetType is a set of members or of tuples.
type SetType struct {
	Element Type
}

func (SetType) typeNode() {}

// SetOf builds a set type over element, which must be a member or tuple type.
func SetOf(element Type) SetType {
	return SetType{Element: element}
}

func (SetType) Category() Category { return CategorySet }

func (s SetType) String() string {
	if s.Element == nil {
		return "SET"
	}
	return "SET<" + s.Element.String() + ">"
}

func (s SetType) Dimension() olap.Dimension {
	if s.Element == nil {
		return nil
	}
	return s.Element.Dimension()
}

func (s SetType) Hierarchy() olap.Hierarchy {
	if s.Element == nil {
		return nil
	}
	return s.Element.Hierarchy()
}

func (s SetType) Level() olap.Level {
	if s.Element == nil {
		return nil
	}
	return s.Element.Level()
}

func (s SetType) UsesHierarchy(h olap.Hierarchy, definitely bool) bool {
	if s.Element == nil {
		return !definitely
	}
	return s.Element.UsesHierarchy(h, definitely)
}

// DimensionType is the type of a dimension expression.
type DimensionType struct {
	dimension olap.Dimension
}

func (DimensionType) typeNode() {}

// ForDimension returns the type of a dimension expression for d.
func ForDimension(d olap.Dimension) DimensionType { return DimensionType{dimension: d} }

func (DimensionType) Category() Category          { return CategoryDimension }
func (d DimensionType) Dimension() olap.Dimension { return d.dimension }
func (DimensionType) Hierarchy() olap.Hierarchy   { return nil }
func (DimensionType) Level() olap.Level           { return nil }

func (d DimensionType) String() string {
	if d.dimension == nil {
		return "DIMENSION"
	}
	return "DIMENSION<" + d.dimension.UniqueName() + ">"
}

func (d DimensionType) UsesHierarchy(h olap.Hierarchy, definitely bool) bool {
	if d.dimension == nil {
		return !definitely
	}
	return h != nil && olap.SameDimension(d.dimension, h.Dimension())
}

// HierarchyType is the type of a hierarchy expression.
type HierarchyType struct {
	dimension olap.Dimension
	hierarchy olap.Hierarchy
}

func (HierarchyType) typeNode() {}

// ForHierarchy returns the type of a hierarchy expression for h.
func ForHierarchy(h olap.Hierarchy) HierarchyType {
	t := HierarchyType{hierarchy: h}
	if h != nil {
		t.dimension = h.Dimension()
	}
	return t
}

func (HierarchyType) Category() Category          { return CategoryHierarchy }
func (h HierarchyType) Dimension() olap.Dimension { return h.dimension }
func (h HierarchyType) Hierarchy() olap.Hierarchy { return h.hierarchy }
func (HierarchyType) Level() olap.Level           { return nil }

func (h HierarchyType) String() string {
	if h.hierarchy == nil {
		return "HIERARCHY"
	}
	return "HIERARCHY<" + h.hierarchy.UniqueName() + ">"
}

func (h HierarchyType) UsesHierarchy(other olap.Hierarchy, definitely bool) bool {
	if h.hierarchy == nil {
		return !definitely
	}
	return olap.SameHierarchy(h.hierarchy, other)
}

// LevelType is the type of a level expression.
type LevelType struct {
	level olap.Level
}

func (LevelType) typeNode() {}

// ForLevel returns the type of a level expression for l.
func ForLevel(l olap.Level) LevelType { return LevelType{level: l} }

func (LevelType) Category() Category { return CategoryLevel }

func (l LevelType) Dimension() olap.Dimension {
	if h := l.Hierarchy(); h != nil {
		return h.Dimension()
	}
	return nil
}

func (l LevelType) Hierarchy() olap.Hierarchy {
	if l.level == nil {
		return nil
	}
	return l.level.Hierarchy()
}

func (l LevelType) Level() olap.Level { return l.level }

func (l LevelType) String() string {
	if l.level == nil {
		return "LEVEL"
	}
	return "LEVEL<" + l.level.UniqueName() + ">"
}

func (l LevelType) UsesHierarchy(h olap.Hierarchy, definitely bool) bool {
	if l.level == nil {
		return !definitely
	}
	return olap.SameHierarchy(l.level.Hierarchy(), h)
}

// CubeType is the type of a cube expression.
type CubeType struct{}

func (CubeType) typeNode() {}

func (CubeType) Category() Category                      { return CategoryCube }
func (CubeType) String() string                          { return "CUBE" }
func (CubeType) Dimension() olap.Dimension               { return nil }
func (CubeType) Hierarchy() olap.Hierarchy               { return nil }
func (CubeType) Level() olap.Level                       { return nil }
func (CubeType) UsesHierarchy(olap.Hierarchy, bool) bool { return false }
