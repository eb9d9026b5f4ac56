// Package compiler turns validated mdx expressions into calc trees.
//
// Compilation is a single pass over the expression tree. Each node is
// compiled for a requested result category (scalar, member, tuple, list,
// iterable, level, hierarchy, dimension) and a list of acceptable result
// styles. Implicit conversions are inserted where types.CanConvert allows
// them; anything else fails with a CompileError and no partial tree.
//
// RESULT STYLES:
// A caller states the styles it can consume, most preferred first. Set
// functions that can produce either a lazy cursor or a list (Filter,
// CrossJoin) negotiate against that list. CompileList and CompileIter
// always return null-free results: a null filter is wrapped around any
// node that cannot prove it never yields a null tuple.
//
// FUNCTIONS:
// Calls dispatch through a Table keyed by name and syntax. Each FunDef
// carries a resolver, used by validators to type a call, and a compile
// strategy. Builtins returns the shared table; Register extends it.
//
// PARAMETERS:
// RegisterParameter hands out one ParameterSlot per parameter name. The
// orchestrator fills slots before an evaluation; Parameter calcs read the
// slot and fall back to the compiled default.
//
// Compiled trees are single-writer. Nodes such as set construction keep a
// private buffer that is reused across evaluations, so a tree must not be
// evaluated from two goroutines at once.
package compiler
