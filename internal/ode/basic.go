package ode

import (
	"github.com/san-kum/beatsim/internal/dynamo"
)

// basicSolver integrates the nodes one after the other.
type basicSolver struct {
	base
	integ dynamo.Integrator
	sys   nodeSystem
}

func newBasic(b base, cfg Config) *basicSolver {
	return &basicSolver{
		base:  b,
		integ: cfg.Scheme.newIntegrator(),
		sys:   nodeSystem{model: b.model, stim: b.stim},
	}
}

func (s *basicSolver) Step(iv dynamo.Interval) error {
	if err := s.current.CopyFrom(s.previous); err != nil {
		return err
	}
	if iv.Dt() == 0 {
		return nil
	}
	return s.advance(s.integ, &s.sys, iv, 0, s.current.Layout.NumDofs)
}
