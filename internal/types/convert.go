package types

import "github.com/roach88/cubist/internal/olap"

// Conversion costs returned by CanConvert. Lower is better; the compiler
// only uses them to rank alternatives, never as absolute values.
const (
	CostExact    = 0
	CostWiden    = 1
	CostImplicit = 2
	CostNarrow   = 3
)

// Arity returns the number of members an item of t contains: 1 for a
// member, the element count for a tuple, the element arity for a set.
// Non-member types have arity 1.
func Arity(t Type) int {
	switch t := t.(type) {
	case TupleType:
		return len(t.Elements)
	case SetType:
		if t.Element == nil {
			return 1
		}
		return Arity(t.Element)
	}
	return 1
}

// IsScalar reports whether t is a scalar type.
func IsScalar(t Type) bool {
	return t != nil && t.Category().IsScalar()
}

// IsSet reports whether t is a set type.
func IsSet(t Type) bool {
	_, ok := t.(SetType)
	return ok
}

// ElementType returns the element type of a set, or nil if t is not a set.
func ElementType(t Type) Type {
	if s, ok := t.(SetType); ok {
		return s.Element
	}
	return nil
}

// ElementTypes returns the per-position types of a member or tuple type.
func ElementTypes(t Type) []Type {
	switch t := t.(type) {
	case TupleType:
		return t.Elements
	case MemberType:
		return []Type{t}
	}
	return nil
}

// ToMemberType converts hierarchy, dimension, level and member types to the
// member type they imply. It returns false for anything else.
func ToMemberType(t Type) (MemberType, bool) {
	switch t := t.(type) {
	case MemberType:
		return t, true
	case HierarchyType:
		return MemberOf(t.dimension, t.hierarchy, nil), true
	case DimensionType:
		return MemberOf(t.dimension, defaultHierarchy(t.dimension), nil), true
	case LevelType:
		return MemberOf(nil, nil, t.level), true
	}
	return MemberType{}, false
}

func defaultHierarchy(d olap.Dimension) olap.Hierarchy {
	if d == nil {
		return nil
	}
	if hs := d.Hierarchies(); len(hs) == 1 {
		return hs[0]
	}
	return nil
}

// Equal reports whether two types describe the same shape and bindings.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case ScalarType:
		b, ok := b.(ScalarType)
		return ok && a.Kind == b.Kind
	case MemberType:
		b, ok := b.(MemberType)
		return ok && sameOrNil(a.hierarchy, b.hierarchy) && sameLevelOrNil(a.level, b.level) &&
			sameDimOrNil(a.dimension, b.dimension)
	case TupleType:
		b, ok := b.(TupleType)
		if !ok || len(a.Elements) != len(b.Elements) {
			return false
		}
		for i := range a.Elements {
			if !Equal(a.Elements[i], b.Elements[i]) {
				return false
			}
		}
		return true
	case SetType:
		b, ok := b.(SetType)
		return ok && Equal(a.Element, b.Element)
	case DimensionType:
		b, ok := b.(DimensionType)
		return ok && sameDimOrNil(a.dimension, b.dimension)
	case HierarchyType:
		b, ok := b.(HierarchyType)
		return ok && sameOrNil(a.hierarchy, b.hierarchy)
	case LevelType:
		b, ok := b.(LevelType)
		return ok && sameLevelOrNil(a.level, b.level)
	case CubeType:
		_, ok := b.(CubeType)
		return ok
	}
	return false
}

func sameOrNil(a, b olap.Hierarchy) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return olap.SameHierarchy(a, b)
}

func sameDimOrNil(a, b olap.Dimension) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return olap.SameDimension(a, b)
}

func sameLevelOrNil(a, b olap.Level) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return olap.SameLevel(a, b)
}

// CanConvert reports whether a value of type from may be used where a
// value of category to is required, and at what cost.
func CanConvert(from Type, to Category) (cost int, ok bool) {
	if from == nil {
		return 0, false
	}
	fc := from.Category()
	if fc == to {
		return CostExact, true
	}
	switch to {
	case CategoryNumeric:
		switch fc {
		case CategoryInteger:
			return CostWiden, true
		case CategoryNull:
			return CostExact, true
		case CategoryValue:
			return CostNarrow, true
		case CategoryMember, CategoryTuple, CategoryHierarchy, CategoryDimension:
			return CostImplicit, true
		}
	case CategoryInteger:
		switch fc {
		case CategoryNumeric, CategoryValue:
			return CostNarrow, true
		case CategoryNull:
			return CostExact, true
		case CategoryMember, CategoryTuple, CategoryHierarchy, CategoryDimension:
			return CostImplicit, true
		}
	case CategoryString:
		switch fc {
		case CategoryNumeric, CategoryInteger, CategoryBoolean:
			return CostImplicit, true
		case CategoryNull:
			return CostExact, true
		case CategoryValue:
			return CostNarrow, true
		case CategoryMember, CategoryTuple, CategoryHierarchy, CategoryDimension:
			return CostImplicit, true
		}
	case CategoryBoolean, CategoryDateTime:
		switch fc {
		case CategoryNull:
			return CostExact, true
		case CategoryValue:
			return CostNarrow, true
		case CategoryMember, CategoryTuple, CategoryHierarchy, CategoryDimension:
			return CostImplicit, true
		}
	case CategoryValue:
		switch {
		case fc.IsScalar():
			return CostWiden, true
		case fc == CategoryMember || fc == CategoryTuple ||
			fc == CategoryHierarchy || fc == CategoryDimension:
			return CostImplicit, true
		}
	case CategoryMember:
		switch fc {
		case CategoryHierarchy, CategoryDimension:
			return CostImplicit, true
		case CategoryNull:
			return CostExact, true
		}
	case CategoryTuple:
		switch fc {
		case CategoryMember:
			return CostWiden, true
		case CategoryHierarchy, CategoryDimension:
			return CostImplicit, true
		case CategoryNull:
			return CostExact, true
		}
	case CategorySet:
		switch fc {
		case CategoryMember, CategoryTuple:
			return CostWiden, true
		case CategoryLevel:
			return CostImplicit, true
		}
	case CategoryHierarchy:
		switch fc {
		case CategoryDimension, CategoryLevel, CategoryMember:
			return CostImplicit, true
		}
	case CategoryDimension:
		switch fc {
		case CategoryHierarchy, CategoryLevel, CategoryMember:
			return CostImplicit, true
		}
	}
	return 0, false
}

// CommonType returns the narrowest type both a and b convert to, or nil.
//
// Two member types of the same hierarchy at different levels widen to the
// hierarchy; members of different hierarchies widen to an unbound member.
// Numbers widen to NUMERIC. With allowConversion, scalars of different
// kinds widen to SCALAR.
func CommonType(allowConversion bool, a, b Type) Type {
	if a == nil || b == nil {
		return nil
	}
	if Equal(a, b) {
		return a
	}
	if a.Category() == CategoryNull {
		return b
	}
	if b.Category() == CategoryNull {
		return a
	}
	switch a := a.(type) {
	case ScalarType:
		bs, ok := b.(ScalarType)
		if !ok {
			if allowConversion {
				if _, ok := CanConvert(b, CategoryValue); ok {
					return Value
				}
			}
			return nil
		}
		if a.Kind.IsNumeric() && bs.Kind.IsNumeric() {
			return Numeric
		}
		if allowConversion {
			return Value
		}
		return nil
	case MemberType:
		b, ok := b.(MemberType)
		if !ok {
			return nil
		}
		if a.hierarchy != nil && olap.SameHierarchy(a.hierarchy, b.hierarchy) {
			return MemberOf(a.dimension, a.hierarchy, nil)
		}
		if a.dimension != nil && olap.SameDimension(a.dimension, b.dimension) {
			return MemberOf(a.dimension, nil, nil)
		}
		return UnknownMember
	case TupleType:
		b, ok := b.(TupleType)
		if !ok || len(a.Elements) != len(b.Elements) {
			return nil
		}
		elems := make([]Type, len(a.Elements))
		for i := range a.Elements {
			elems[i] = CommonType(allowConversion, a.Elements[i], b.Elements[i])
			if elems[i] == nil {
				return nil
			}
		}
		return TupleOf(elems...)
	case SetType:
		b, ok := b.(SetType)
		if !ok {
			return nil
		}
		e := CommonType(allowConversion, a.Element, b.Element)
		if e == nil {
			return nil
		}
		return SetOf(e)
	}
	return nil
}
