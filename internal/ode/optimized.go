package ode

import (
	"github.com/san-kum/beatsim/internal/dynamo"
)

// optimizedSolver fans the node loop out over workers, each with its own
// integrator scratch. Workers write disjoint node ranges and Step returns
// only once all of them are done.
type optimizedSolver struct {
	base
	minChunk int
	integs   []dynamo.Integrator
	systems  []nodeSystem
}

func newOptimized(b base, cfg Config) *optimizedSolver {
	minChunk := max(cfg.MinChunk, 1)
	workers := dynamo.Workers(b.current.Layout.NumDofs, minChunk)

	s := &optimizedSolver{
		base:     b,
		minChunk: minChunk,
		integs:   make([]dynamo.Integrator, workers),
		systems:  make([]nodeSystem, workers),
	}
	for w := range s.integs {
		s.integs[w] = cfg.Scheme.newIntegrator()
		s.systems[w] = nodeSystem{model: b.model, stim: b.stim}
	}
	return s
}

func (s *optimizedSolver) Step(iv dynamo.Interval) error {
	if err := s.current.CopyFrom(s.previous); err != nil {
		return err
	}
	if iv.Dt() == 0 {
		return nil
	}
	n := s.current.Layout.NumDofs
	return dynamo.ParallelFor(n, s.minChunk, func(chunk, start, end int) error {
		return s.advance(s.integs[chunk], &s.systems[chunk], iv, start, end)
	})
}
