package integrators

import "github.com/san-kum/beatsim/internal/dynamo"

type Euler struct {
	dx dynamo.State
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, x dynamo.State, t, dt float64) error {
	if len(e.dx) != len(x) {
		e.dx = make(dynamo.State, len(x))
	}
	sys.Derive(e.dx, x, t)
	for i := range x {
		x[i] += dt * e.dx[i]
	}
	return nil
}
