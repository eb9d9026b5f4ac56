package calc

import "strings"

// ResultStyle is the representation a calc returns multi-valued results in.
type ResultStyle int

const (
	// StyleAny means the caller accepts any representation.
	StyleAny ResultStyle = iota
	// StyleMutableList returns a fresh list the caller may modify.
	StyleMutableList
	// StyleList returns a list the caller must not modify. The node never
	// modifies a list after returning it.
	StyleList
	// StyleIterable returns a lazy, single-pass cursor.
	StyleIterable
	// StyleValue returns a scalar which may be null.
	StyleValue
	// StyleValueNotNull returns a scalar which is never null.
	StyleValueNotNull
)

func (s ResultStyle) String() string {
	switch s {
	case StyleAny:
		return "ANY"
	case StyleMutableList:
		return "MUTABLE_LIST"
	case StyleList:
		return "LIST"
	case StyleIterable:
		return "ITERABLE"
	case StyleValue:
		return "VALUE"
	case StyleValueNotNull:
		return "VALUE_NOT_NULL"
	}
	return "UNKNOWN"
}

// Preference-ordered style lists passed to the compiler.
var (
	StylesAny             = []ResultStyle{StyleAny}
	StylesValue           = []ResultStyle{StyleValue}
	StylesValueNotNull    = []ResultStyle{StyleValueNotNull}
	StylesList            = []ResultStyle{StyleList}
	StylesMutableList     = []ResultStyle{StyleMutableList}
	StylesIterable        = []ResultStyle{StyleIterable}
	StylesIterableAny     = []ResultStyle{StyleIterable, StyleAny}
	StylesIterableListAny = []ResultStyle{StyleIterable, StyleList, StyleMutableList, StyleAny}
	StylesListMutableList = []ResultStyle{StyleList, StyleMutableList}
)

// Accepts reports whether a caller with the given preferences accepts s.
func Accepts(preferred []ResultStyle, s ResultStyle) bool {
	for _, p := range preferred {
		if p == StyleAny || p == s {
			return true
		}
		// A mutable list is also a valid immutable list.
		if p == StyleList && s == StyleMutableList {
			return true
		}
	}
	return false
}

// Negotiate picks the first of the caller's preferences that a node able
// to produce any of offered can satisfy. StyleAny in preferred takes the
// node's first offer.
func Negotiate(preferred, offered []ResultStyle) (ResultStyle, bool) {
	for _, p := range preferred {
		if p == StyleAny {
			if len(offered) == 0 {
				return StyleAny, true
			}
			return offered[0], true
		}
		for _, o := range offered {
			if o == p {
				return p, true
			}
		}
	}
	return StyleAny, false
}

// FormatStyles renders a preference list as "[A, B]".
func FormatStyles(styles []ResultStyle) string {
	parts := make([]string, len(styles))
	for i, s := range styles {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
