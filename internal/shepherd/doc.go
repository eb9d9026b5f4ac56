// Package shepherd owns the goroutines executions run on.
//
// Executions do not follow work onto new goroutines by themselves: the
// binding made by execution.Run is scoped to one call. The shepherd is the
// embedding caller that re-binds explicitly, once per task, on the pool
// worker that runs it.
//
// TIMEOUT SWEEP:
// Cancellation is cooperative, so an evaluation only notices a timeout at
// its next checkpoint. The sweep closes that gap for blocked work: it
// performs the checkpoint on the task's behalf, and the TIMEOUT transition
// cancels every statement registered on the execution, including the
// context the task was handed.
package shepherd
