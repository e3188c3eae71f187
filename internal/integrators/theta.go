package integrators

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// Theta is the implicit one-step theta rule
//
//	x1 = x0 + dt*(theta*f(x1, t+dt) + (1-theta)*f(x0, t))
//
// solved with Newton iterations on a finite-difference Jacobian.
// Theta = 1 is backward Euler, Theta = 0.5 is Crank-Nicolson.
type Theta struct {
	Theta         float64
	AbsTol        float64
	RelTol        float64
	MaxIterations int

	f0, f1, fp dynamo.State
	y, yp, res dynamo.State
	jac        *mat.Dense
	rhs, delta *mat.VecDense
	lu         mat.LU
}

func NewBackwardEuler() *Theta {
	return NewTheta(1.0)
}

func NewCrankNicolson() *Theta {
	return NewTheta(0.5)
}

func NewTheta(theta float64) *Theta {
	return &Theta{
		Theta:         theta,
		AbsTol:        1e-10,
		RelTol:        1e-8,
		MaxIterations: 25,
	}
}

func (th *Theta) ensureScratch(n int) {
	if len(th.y) != n {
		th.f0 = make(dynamo.State, n)
		th.f1 = make(dynamo.State, n)
		th.fp = make(dynamo.State, n)
		th.y = make(dynamo.State, n)
		th.yp = make(dynamo.State, n)
		th.res = make(dynamo.State, n)
		th.jac = mat.NewDense(n, n, nil)
		th.rhs = mat.NewVecDense(n, nil)
		th.delta = mat.NewVecDense(n, nil)
	}
}

func (th *Theta) Step(sys dynamo.System, x dynamo.State, t, dt float64) error {
	n := len(x)
	th.ensureScratch(n)

	t1 := t + dt
	sys.Derive(th.f0, x, t)
	copy(th.y, x)

	for iter := 0; iter < th.MaxIterations; iter++ {
		th.residual(sys, x, t1, dt)
		th.jacobian(sys, t1, dt)

		for i := 0; i < n; i++ {
			th.rhs.SetVec(i, -th.res[i])
		}
		th.lu.Factorize(th.jac)
		if err := th.lu.SolveVecTo(th.delta, false, th.rhs); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return fmt.Errorf("%w: newton jacobian: %v", dynamo.ErrIntegrationDiverged, err)
			}
			if math.IsInf(float64(cond), 1) {
				return fmt.Errorf("%w: newton jacobian singular", dynamo.ErrIntegrationDiverged)
			}
		}

		converged := true
		for i := 0; i < n; i++ {
			d := th.delta.AtVec(i)
			th.y[i] += d
			if math.Abs(d) > th.AbsTol+th.RelTol*math.Abs(th.y[i]) {
				converged = false
			}
		}
		if !th.y.IsValid() {
			return fmt.Errorf("%w: newton iterate is not finite", dynamo.ErrIntegrationDiverged)
		}
		if converged {
			copy(x, th.y)
			return nil
		}
	}

	return fmt.Errorf("%w: newton did not converge in %d iterations", dynamo.ErrIntegrationDiverged, th.MaxIterations)
}

// residual writes y - x - dt*(theta*f(y) + (1-theta)*f0) into th.res.
func (th *Theta) residual(sys dynamo.System, x dynamo.State, t1, dt float64) {
	sys.Derive(th.f1, th.y, t1)
	for i := range th.res {
		th.res[i] = th.y[i] - x[i] - dt*(th.Theta*th.f1[i]+(1-th.Theta)*th.f0[i])
	}
}

// jacobian fills I - dt*theta*df/dy by forward differences around th.y.
// th.f1 must hold f(th.y).
func (th *Theta) jacobian(sys dynamo.System, t1, dt float64) {
	n := len(th.y)
	copy(th.yp, th.y)
	for j := 0; j < n; j++ {
		h := math.Sqrt(2.2e-16) * math.Max(1, math.Abs(th.y[j]))
		th.yp[j] = th.y[j] + h
		sys.Derive(th.fp, th.yp, t1)
		th.yp[j] = th.y[j]
		for i := 0; i < n; i++ {
			v := -dt * th.Theta * (th.fp[i] - th.f1[i]) / h
			if i == j {
				v += 1
			}
			th.jac.Set(i, j, v)
		}
	}
}
