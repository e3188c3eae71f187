package pde

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beatsim/internal/mesh"
	"github.com/san-kum/beatsim/internal/stimulus"
)

// operator holds the dt-independent pieces of the discrete system.
type operator struct {
	n          int
	kind       Kind
	theta      float64
	constraint bool

	points []mesh.Point
	mass   []float64
	ki     *mat.SymDense
	kie    *mat.SymDense // Ki + Ke

	stim    stimulus.Field
	applied stimulus.Field

	kv *mat.VecDense // scratch for Ki v_
}

func newOperator(p Problem, cfg Config) *operator {
	g := p.Grid
	n := g.NumDofs()
	op := &operator{
		n:          n,
		kind:       p.Kind,
		theta:      cfg.Theta,
		constraint: cfg.Constraint,
		points:     make([]mesh.Point, n),
		mass:       g.LumpedMass(),
		ki:         g.Stiffness(p.Mi.X, p.Mi.Y),
		stim:       p.Stimulus,
		applied:    p.Applied,
		kv:         mat.NewVecDense(n, nil),
	}
	for i := range op.points {
		op.points[i] = g.Coordinates(i)
	}
	if p.Kind == Bidomain {
		op.kie = mat.NewSymDense(n, nil)
		op.kie.AddSym(op.ki, g.Stiffness(p.Me.X, p.Me.Y))
	}
	return op
}

// size is the number of unknowns of the linear system.
func (op *operator) size() int {
	switch {
	case op.kind == Monodomain:
		return op.n
	case op.constraint:
		return 2*op.n + 1
	default:
		return 2 * op.n
	}
}

// monodomainMatrix returns M/dt + theta Ki.
func (op *operator) monodomainMatrix(dt float64) *mat.SymDense {
	a := mat.NewSymDense(op.n, nil)
	a.ScaleSym(op.theta, op.ki)
	for i, m := range op.mass {
		a.SetSym(i, i, a.At(i, i)+m/dt)
	}
	return a
}

// bidomainMatrix returns the block system in (v, u[, lambda]).
func (op *operator) bidomainMatrix(dt float64) *mat.Dense {
	n := op.n
	size := op.size()
	a := mat.NewDense(size, size, nil)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			k := op.ki.At(i, j)
			if k == 0 && op.kie.At(i, j) == 0 {
				continue
			}
			a.Set(i, j, op.theta*k)
			a.Set(i, n+j, k)
			a.Set(n+i, j, op.theta*k)
			a.Set(n+i, n+j, op.kie.At(i, j))
		}
		a.Set(i, i, a.At(i, i)+op.mass[i]/dt)
	}

	if op.constraint {
		for i, m := range op.mass {
			a.Set(n+i, 2*n, m)
			a.Set(2*n, n+i, m)
		}
		return a
	}

	// u_0 = 0
	for j := 0; j < size; j++ {
		a.Set(n, j, 0)
	}
	a.Set(n, n, 1)
	return a
}

func (op *operator) matrix(dt float64) mat.Matrix {
	if op.kind == Bidomain {
		return op.bidomainMatrix(dt)
	}
	return op.monodomainMatrix(dt)
}

// rhs fills b for the step from vPrev over dt with forcing sampled at t.
func (op *operator) rhs(b *mat.VecDense, vPrev []float64, dt, t float64) {
	n := op.n
	op.kv.MulVec(op.ki, mat.NewVecDense(n, vPrev))
	explicit := 1 - op.theta

	for i := 0; i < n; i++ {
		bi := op.mass[i]*vPrev[i]/dt - explicit*op.kv.AtVec(i)
		if op.stim != nil {
			bi += op.mass[i] * op.stim.Eval(t, op.points[i])
		}
		b.SetVec(i, bi)
	}
	if op.kind == Monodomain {
		return
	}

	for i := 0; i < n; i++ {
		bi := -explicit * op.kv.AtVec(i)
		if op.applied != nil {
			bi += op.mass[i] * op.applied.Eval(t, op.points[i])
		}
		b.SetVec(n+i, bi)
	}
	if op.constraint {
		b.SetVec(2*n, 0)
	} else {
		b.SetVec(n, 0)
	}
}
