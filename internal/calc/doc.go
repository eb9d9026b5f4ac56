// Package calc defines compiled plan nodes ("calcs") and the contracts they
// are evaluated under.
//
// A Calc is produced once per compiled statement by package compiler and
// evaluated many times against an Evaluator, which carries the current
// member of every hierarchy. Calc trees are structurally immutable, but a
// node may own a private result buffer that it reuses across calls.
//
// # Single writer
//
// A compiled tree must not be evaluated by two goroutines at once. Nodes
// that reuse a buffer do not lock it; callers that need concurrency either
// compile once per goroutine or serialize evaluation themselves (see
// package statement).
//
// # Result categories
//
// Every calc embeds Base, which seals the Calc interface to nodes built
// on this package. On top of the generic Evaluate, a calc implements exactly
// one typed evaluation method chosen by its declared type: DoubleCalc,
// IntegerCalc, StringCalc, BooleanCalc, DateTimeCalc, MemberCalc,
// TupleCalc, ListCalc, IterCalc, LevelCalc, HierarchyCalc or DimensionCalc.
// KindOf maps a calc to its category so callers can switch exhaustively.
//
// # Nulls
//
// Empty cells are not errors. Numeric nulls are the DoubleNull and
// IntegerNull sentinels, a null member is nil or a member reporting
// IsNull, and a tuple is null if any component is null. Null tuples never
// appear in a TupleList or TupleCursor produced by the compiler.
//
// # Cancellation
//
// Evaluation is synchronous. Nodes that loop call Checkpoint on every
// iteration, which consults the execution bound to the evaluator's context.
package calc
