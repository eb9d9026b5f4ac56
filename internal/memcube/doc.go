// Package memcube is an in-memory cube used to exercise compiled plans.
//
// A cube is described by a YAML Definition: dimensions with ordered levels
// and a member tree, a flat list of measures, and the fact cells at leaf
// coordinates. Non-leaf cells roll up as the sum of their children; a cell
// with no facts underneath is empty.
//
// Unique names follow the usual bracketed form: the hierarchy of dimension
// Time is [Time], its level Year is [Time].[Year] and a member is addressed
// by its path, [Time].[2024].[Q1]. Measures live in the [Measures]
// dimension. Lookups fold case and Unicode normalization.
//
// The package provides the three collaborators the compiler and its
// callers expect from a real engine: the catalog (Cube, which is also the
// olap.SchemaReader), a calc.Evaluator and an mdx.Validator.
package memcube
