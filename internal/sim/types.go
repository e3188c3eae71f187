package sim

import "github.com/san-kum/beatsim/internal/dynamo"

// Steppable is a solver that advances its solution fields one interval at
// a time. F is the snapshot type the solver exposes.
type Steppable[F any] interface {
	// Step moves the fields from a state valid at iv.T0 to one valid at iv.T1.
	Step(iv dynamo.Interval) error
	// Advance makes the current state the starting state of the next step.
	Advance() error
	SolutionFields() F
}

type Observer[F any] interface {
	OnStep(iv dynamo.Interval, fields F)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[F any] func(iv dynamo.Interval, fields F)

func (f ObserverFunc[F]) OnStep(iv dynamo.Interval, fields F) { f(iv, fields) }
