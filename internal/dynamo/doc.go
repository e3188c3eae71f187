// Package dynamo provides the primitives shared by the cardiac splitting solver.
//
// The package defines the fundamental types used across sub-solvers:
//
//   - [State]: a vector of per-node unknowns
//   - [System]: a pointwise ODE right-hand side dx/dt = f(x, t)
//   - [Integrator]: a one-step scheme advancing a [State] in place
//   - [Interval]: a time sub-interval produced by the time stepper
//
// It also defines the error taxonomy every sub-solver reports through:
// [ErrConfiguration], [ErrIntegrationDiverged], [ErrLinearSolve] and
// [ErrLayoutMismatch]. Callers classify failures with errors.Is.
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// Create one per goroutine when fanning work out with [ParallelFor].
package dynamo
