// Package series runs asynchronous tasks one at a time, in order.
//
// Each task receives a trailing completion callback of shape (err, data).
// The next task starts only after the previous one has called back. The
// first non-nil error stops the sequence.
//
// Core behavior:
//   - Run normalizes the task list, starts the sequence and returns
//   - the handler passed to Run fires exactly once with (err, results)
//   - Do runs a sequence and blocks until the handler would fire
//
// Task descriptors:
//   - Func: a bare callable taking the completion callback
//   - Call: a Method with stored Args and a bound Scope
//   - Invalid: anything else, reported as ErrMissingFunction when reached
//
// Results:
//   - results has the same length as the task list
//   - completed slots hold the data each task produced
//   - slots not reached hold the normalized descriptor (nil for invalid ones)
//   - the caller's slice is never modified
//
// Errors:
//   - Run returns ErrInvalidInput synchronously when tasks is not a list
//   - every other failure reaches the handler as a *StepError carrying the index
//   - an empty list fails with ErrMissingFunction at index 0
//
// There is no timeout and no cancellation: a task that never calls back
// stalls its sequence.
package series
