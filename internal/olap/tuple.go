package olap

import "strings"

// Tuple is an ordered combination of members, one per hierarchy.
//
// Tuples are values: once built and handed out they are never mutated.
// A nil Tuple is the null tuple.
type Tuple []Member

// IsNull reports whether the tuple is null. A tuple is null if it is nil
// or if any of its components is null.
func (t Tuple) IsNull() bool {
	if t == nil {
		return true
	}
	for _, m := range t {
		if IsNullMember(m) {
			return true
		}
	}
	return false
}

// Arity returns the number of components.
func (t Tuple) Arity() int {
	return len(t)
}

// Clone returns a copy that does not share the backing array.
func (t Tuple) Clone() Tuple {
	if t == nil {
		return nil
	}
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// Equal reports whether both tuples have the same members in the same order.
func (t Tuple) Equal(o Tuple) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if !SameMember(t[i], o[i]) {
			return false
		}
	}
	return true
}

// String renders the tuple as "(m1, m2)"; null components render as "#null".
func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, m := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		if IsNullMember(m) {
			b.WriteString("#null")
			continue
		}
		b.WriteString(m.UniqueName())
	}
	b.WriteByte(')')
	return b.String()
}

// UniqueNames returns the unique name of every component.
func (t Tuple) UniqueNames() []string {
	out := make([]string, len(t))
	for i, m := range t {
		if IsNullMember(m) {
			out[i] = "#null"
			continue
		}
		out[i] = m.UniqueName()
	}
	return out
}
