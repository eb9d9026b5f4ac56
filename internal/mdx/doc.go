// Package mdx provides the validated expression tree the compiler consumes.
//
// Parsing and name resolution happen upstream: by the time an expression
// reaches this package every identifier has been resolved to a catalog
// object and every function call carries its result type.
//
// SEALED INTERFACE:
//
// Exp is a sealed interface using the marker method pattern. Only the
// types in this package implement it, so the compiler's type switch over
// expression kinds is exhaustive:
//
//	switch e := exp.(type) {
//	case *Literal:
//	case *MemberExpr:
//	case *LevelExpr:
//	case *HierarchyExpr:
//	case *DimensionExpr:
//	case *ParameterExpr:
//	case *Call:
//	}
//
// Calls are identified by name and Syntax, so "-" as an infix operator and
// "-" as a prefix operator are distinct functions.
package mdx
