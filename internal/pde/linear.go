package pde

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beatsim/internal/dynamo"
)

type SolverKind int

const (
	// Direct uses Cholesky for the symmetric monodomain system and LU
	// for the bidomain block system.
	Direct SolverKind = iota
	ConjugateGradient
)

func (k SolverKind) String() string {
	if k == ConjugateGradient {
		return "cg"
	}
	return "direct"
}

func ParseSolverKind(name string) (SolverKind, error) {
	switch strings.ToLower(name) {
	case "", "direct":
		return Direct, nil
	case "cg", "conjugate_gradient":
		return ConjugateGradient, nil
	}
	return 0, fmt.Errorf("%w: unknown linear solver %q", dynamo.ErrConfiguration, name)
}

type LinearSolverConfig struct {
	Kind SolverKind
	// Tolerance is the relative residual CG stops at.
	Tolerance     float64
	MaxIterations int
}

func DefaultLinearSolver() LinearSolverConfig {
	return LinearSolverConfig{Kind: Direct, Tolerance: 1e-12, MaxIterations: 1000}
}

func (c LinearSolverConfig) validate() error {
	switch c.Kind {
	case Direct:
		return nil
	case ConjugateGradient:
		if !(c.Tolerance > 0) || c.MaxIterations < 1 {
			return fmt.Errorf("%w: cg needs a positive tolerance and iteration limit, got %g and %d",
				dynamo.ErrConfiguration, c.Tolerance, c.MaxIterations)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown linear solver %d", dynamo.ErrConfiguration, int(c.Kind))
}

// linearSolver factorises a system once and solves it for many right-hand
// sides. solve may read x as an initial guess.
type linearSolver interface {
	factorize(a mat.Matrix) error
	solve(x, b *mat.VecDense) error
}

func newLinearSolver(cfg LinearSolverConfig, kind Kind) (linearSolver, error) {
	switch {
	case cfg.Kind == ConjugateGradient:
		return &cgSolver{tol: cfg.Tolerance, maxIter: cfg.MaxIterations}, nil
	case kind == Monodomain:
		return &choleskySolver{}, nil
	default:
		return &luSolver{}, nil
	}
}

type choleskySolver struct {
	chol mat.Cholesky
}

func (s *choleskySolver) factorize(a mat.Matrix) error {
	sym, ok := a.(mat.Symmetric)
	if !ok {
		return fmt.Errorf("%w: cholesky needs a symmetric matrix", dynamo.ErrLinearSolve)
	}
	if !s.chol.Factorize(sym) {
		return fmt.Errorf("%w: matrix is not positive definite", dynamo.ErrLinearSolve)
	}
	return nil
}

func (s *choleskySolver) solve(x, b *mat.VecDense) error {
	if err := s.chol.SolveVecTo(x, b); err != nil {
		return fmt.Errorf("%w: cholesky: %v", dynamo.ErrLinearSolve, err)
	}
	return nil
}

type luSolver struct {
	lu mat.LU
}

func (s *luSolver) factorize(a mat.Matrix) error {
	s.lu.Factorize(a)
	if c := s.lu.Cond(); math.IsInf(c, 1) || math.IsNaN(c) {
		return fmt.Errorf("%w: matrix is singular", dynamo.ErrLinearSolve)
	}
	return nil
}

func (s *luSolver) solve(x, b *mat.VecDense) error {
	if err := s.lu.SolveVecTo(x, false, b); err != nil {
		return fmt.Errorf("%w: lu: %v", dynamo.ErrLinearSolve, err)
	}
	return nil
}

// cgSolver is unpreconditioned conjugate gradients for symmetric positive
// definite systems.
type cgSolver struct {
	tol     float64
	maxIter int

	a        mat.Symmetric
	r, p, ap *mat.VecDense
}

func (s *cgSolver) factorize(a mat.Matrix) error {
	sym, ok := a.(mat.Symmetric)
	if !ok {
		return fmt.Errorf("%w: conjugate gradient needs a symmetric matrix", dynamo.ErrLinearSolve)
	}
	n := sym.SymmetricDim()
	if s.r == nil || s.r.Len() != n {
		s.r = mat.NewVecDense(n, nil)
		s.p = mat.NewVecDense(n, nil)
		s.ap = mat.NewVecDense(n, nil)
	}
	s.a = sym
	return nil
}

func (s *cgSolver) solve(x, b *mat.VecDense) error {
	s.r.MulVec(s.a, x)
	s.r.SubVec(b, s.r)
	s.p.CopyVec(s.r)

	target := s.tol * math.Max(floats.Norm(b.RawVector().Data, 2), math.SmallestNonzeroFloat64)
	rr := mat.Dot(s.r, s.r)

	for iter := 0; iter < s.maxIter; iter++ {
		if math.Sqrt(rr) <= target {
			return nil
		}
		s.ap.MulVec(s.a, s.p)
		pap := mat.Dot(s.p, s.ap)
		if !(pap > 0) {
			return fmt.Errorf("%w: cg breakdown, p^T A p = %g", dynamo.ErrLinearSolve, pap)
		}
		alpha := rr / pap
		x.AddScaledVec(x, alpha, s.p)
		s.r.AddScaledVec(s.r, -alpha, s.ap)

		rrNext := mat.Dot(s.r, s.r)
		s.p.AddScaledVec(s.r, rrNext/rr, s.p)
		rr = rrNext
	}
	if math.Sqrt(rr) <= target {
		return nil
	}
	return fmt.Errorf("%w: cg residual %g above %g after %d iterations",
		dynamo.ErrLinearSolve, math.Sqrt(rr), target, s.maxIter)
}
