package pde

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/state"
)

// executor implements both variants; reuse decides whether the
// factorisation outlives a step.
type executor struct {
	op     *operator
	solver linearSolver
	src    Source
	reuse  bool

	vPrev []float64
	out   *state.PotentialField

	factored bool
	factorDt float64

	x, b *mat.VecDense
}

func newExecutor(op *operator, solver linearSolver, src Source, out *state.PotentialField, reuse bool) *executor {
	size := op.size()
	return &executor{
		op:     op,
		solver: solver,
		src:    src,
		reuse:  reuse,
		vPrev:  make([]float64, op.n),
		out:    out,
		x:      mat.NewVecDense(size, nil),
		b:      mat.NewVecDense(size, nil),
	}
}

func (e *executor) SolutionFields() ([]float64, *state.PotentialField) {
	return e.vPrev, e.out
}

// sameDt reports whether dt matches the factorised step up to the rounding
// the time stepper introduces.
func (e *executor) sameDt(dt float64) bool {
	return e.factored && math.Abs(dt-e.factorDt) <= 1e-12*dt
}

func (e *executor) Step(iv dynamo.Interval) error {
	e.src.Potential(e.vPrev)

	dt := iv.Dt()
	if dt <= 0 {
		copy(e.out.V, e.vPrev)
		return nil
	}

	if !e.reuse || !e.sameDt(dt) {
		e.factored = false
		if err := e.solver.factorize(e.op.matrix(dt)); err != nil {
			return err
		}
		e.factored = true
		e.factorDt = dt
	}
	// The cached system was built for factorDt; the rhs must agree with it.
	dt = e.factorDt

	e.op.rhs(e.b, e.vPrev, dt, iv.At(e.op.theta))
	e.guess()
	if err := e.solver.solve(e.x, e.b); err != nil {
		return err
	}
	return e.unpack()
}

// guess seeds x with the previous solution for iterative solvers.
func (e *executor) guess() {
	n := e.op.n
	for i, v := range e.vPrev {
		e.x.SetVec(i, v)
	}
	if e.out.U == nil {
		return
	}
	for i, u := range e.out.U {
		e.x.SetVec(n+i, u)
	}
	if e.out.HasMultiplier {
		e.x.SetVec(2*n, e.out.Lambda)
	}
}

func (e *executor) unpack() error {
	n := e.op.n
	for i := range e.out.V {
		e.out.V[i] = e.x.AtVec(i)
	}
	if e.out.U != nil {
		for i := range e.out.U {
			e.out.U[i] = e.x.AtVec(n + i)
		}
		if e.out.HasMultiplier {
			e.out.Lambda = e.x.AtVec(2 * n)
		}
	}
	if !dynamo.State(e.x.RawVector().Data).IsValid() {
		return fmt.Errorf("%w: solution is not finite", dynamo.ErrLinearSolve)
	}
	return nil
}
