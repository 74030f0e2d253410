// Package taskqueue provides an unbounded in-process task queue executed by
// a fixed pool of worker goroutines, with future-like result handles.
//
// Enqueue never blocks and returns a TaskResult that transitions
// Pending → Started → Success or Failure, never backwards. Task failures
// (returned errors and recovered panics) are captured on the result handle
// and never escalate to the worker; a failed task does not affect other
// queued tasks. HaltWorkers is the only stop mechanism: it prevents new
// task starts and waits for in-flight tasks to finish. There is no per-task
// cancellation.
package taskqueue
