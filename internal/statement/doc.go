// Package statement prepares expressions and runs them under executions.
//
// A Statement is the orchestrator the compiler expects: it compiles once,
// fills parameter slots before each run, supplies a fresh evaluator per
// run, and provides the mutual exclusion a compiled plan needs.
//
// LIFECYCLE:
//
//	stmt, err := statement.Prepare(v, exp, newEvaluator)
//	stmt.SetParameter("limit", 10)
//	res, err := stmt.Execute(ctx, execution.EmptyMetadata)
//
// Execute creates a root execution, binds it with execution.Run, evaluates
// and finishes the execution with the outcome. Callers that schedule work
// themselves (the shepherd) call NewExecution and Evaluate instead.
package statement
