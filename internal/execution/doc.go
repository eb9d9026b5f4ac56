// Package execution tracks the lifecycle of one query run.
//
// An Execution is created when a statement starts evaluating and reaches
// exactly one terminal state. Executions form a tree: a child is created by
// its parent and holds only a back-reference to it.
//
// STATE MACHINE:
//
//	RUNNING ──Cancel()──────────────▶ CANCELED
//	        ──CheckCancelOrTimeout()─▶ TIMEOUT   (elapsed > timeout)
//	        ──Fail(err)─────────────▶ ERROR
//	        ──End()─────────────────▶ DONE
//
// Every transition is a single compare-and-set out of RUNNING, so terminal
// states never regress and side effects (statement cancellation, listener
// notification) happen exactly once.
//
// CANCELLATION IS COOPERATIVE:
// Nothing interrupts the evaluating goroutine. Long loops call
// CheckCancelOrTimeout at checkpoints. Native statements registered with
// RegisterStatement are canceled at the transition instant so that blocking
// I/O is abandoned early.
//
// AMBIENT BINDING:
// The current execution travels in a context.Context. Run is the only way
// to bind it, and the binding is live only while Run's callback is on the
// stack. Work handed to other goroutines must be re-bound with Run.
package execution
