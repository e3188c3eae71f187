package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for splitting operations.
var (
	// ErrConfiguration indicates invalid or contradictory parameters. It is
	// reported at construction or schedule validation and is never retried.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrIntegrationDiverged indicates the ODE scheme failed to advance a
	// node (nonlinear solve did not converge, step underflow, or NaN/Inf).
	ErrIntegrationDiverged = errors.New("dynamo: ode integration diverged")

	// ErrLinearSolve indicates the PDE linear system could not be solved.
	ErrLinearSolve = errors.New("dynamo: linear solve failed")

	// ErrLayoutMismatch indicates two fields with incompatible degree of
	// freedom layouts were combined.
	ErrLayoutMismatch = errors.New("dynamo: layout mismatch between fields")
)

// StepError wraps a sub-step failure with the timestep it aborted.
type StepError struct {
	Step     int
	Phase    string
	Interval Interval
	Wrapped  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d %s on (%g, %g): %v", e.Step, e.Phase, e.Interval.T0, e.Interval.T1, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// NodeError reports which degree of freedom an ODE scheme failed on.
type NodeError struct {
	Dof     int
	Time    float64
	Wrapped error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("dof %d (t=%.6g): %v", e.Dof, e.Time, e.Wrapped)
}

func (e *NodeError) Unwrap() error {
	return e.Wrapped
}
