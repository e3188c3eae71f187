// Package cellsolver integrates a single cell model without diffusion. It
// shares the run contract of the splitting solver, which makes it the
// reference for spatially homogeneous simulations.
package cellsolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/beatsim/internal/cell"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/mesh"
	"github.com/san-kum/beatsim/internal/ode"
	"github.com/san-kum/beatsim/internal/sim"
	"github.com/san-kum/beatsim/internal/state"
	"github.com/san-kum/beatsim/internal/stimulus"
	"github.com/san-kum/beatsim/internal/timestep"
)

const PhaseODE = "ode"

type Config struct {
	Scheme ode.Scheme
	// Point is where a spatially varying stimulus is sampled.
	Point    mesh.Point
	Logger   *slog.Logger
	Observer sim.Observer[Fields]
}

// Fields hold one degree of freedom laid out as (v, s_1, ..., s_k).
type Fields struct {
	Previous *state.Composite
	Current  *state.Composite
}

// V returns the membrane potential at the end of the last step.
func (f Fields) V() float64 { return f.Current.V(0) }

type Solver struct {
	cfg      Config
	log      *slog.Logger
	executor ode.Executor
	previous *state.Composite
	current  *state.Composite
	steps    int
}

func New(model cell.Model, stim stimulus.Field, cfg Config) (*Solver, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: cell solver needs a cell model", dynamo.ErrConfiguration)
	}
	ex, err := ode.New([]mesh.Point{cfg.Point}, model, stim, ode.Config{Variant: ode.Basic, Scheme: cfg.Scheme})
	if err != nil {
		return nil, err
	}
	previous, current := ex.SolutionFields()
	if err := previous.Fill(model.InitialConditions()); err != nil {
		return nil, err
	}
	if err := current.CopyFrom(previous); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log.Info("cell solver ready", "cell", model.Name(), "scheme", cfg.Scheme.String())

	return &Solver{cfg: cfg, log: log, executor: ex, previous: previous, current: current}, nil
}

func (s *Solver) SolutionFields() Fields {
	return Fields{Previous: s.previous, Current: s.current}
}

func (s *Solver) Step(iv dynamo.Interval) error {
	s.steps++
	if err := s.executor.Step(iv); err != nil {
		return &dynamo.StepError{Step: s.steps, Phase: PhaseODE, Interval: iv, Wrapped: err}
	}
	return nil
}

func (s *Solver) Advance() error {
	return s.previous.CopyFrom(s.current)
}

func (s *Solver) Solve(ctx context.Context, iv dynamo.Interval, sched timestep.Schedule) (*Run, error) {
	opts := []sim.Option[Fields]{sim.WithLogger[Fields](s.log)}
	if s.cfg.Observer != nil {
		opts = append(opts, sim.WithObserver(s.cfg.Observer))
	}
	return sim.Start[Fields](ctx, s, iv, sched, opts...)
}

type Run = sim.Run[Fields]
