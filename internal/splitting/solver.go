package splitting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/beatsim/internal/cell"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/mesh"
	"github.com/san-kum/beatsim/internal/ode"
	"github.com/san-kum/beatsim/internal/pde"
	"github.com/san-kum/beatsim/internal/sim"
	"github.com/san-kum/beatsim/internal/state"
	"github.com/san-kum/beatsim/internal/stimulus"
	"github.com/san-kum/beatsim/internal/timestep"
)

// Step phases reported in dynamo.StepError.
const (
	PhaseTentativeODE  = "tentative-ode"
	PhasePDE           = "pde"
	PhaseMerge         = "merge"
	PhaseCorrectiveODE = "corrective-ode"
)

// Model is the cardiac problem: domain, cell model, conductivities and
// forcing terms.
type Model struct {
	Grid *mesh.Grid
	Cell cell.Model
	Kind pde.Kind
	Mi   pde.Conductivity
	Me   pde.Conductivity
	// Stimulus is I_s, routed to the ODE or the PDE by Config.
	Stimulus stimulus.Field
	// Applied is I_a, used by the bidomain only.
	Applied stimulus.Field
	// Constraint enables the zero-average constraint on u.
	Constraint bool
}

// PhaseTimer receives the wall time of every sub-step.
type PhaseTimer interface {
	ObservePhase(phase string, d time.Duration)
}

type Config struct {
	// Theta is the splitting weight in [0, 1]; it is also the theta of
	// the PDE time discretisation.
	Theta         float64
	ODE           ode.Config
	PDE           pde.Config
	StimulusToPDE bool

	Logger   *slog.Logger
	Observer sim.Observer[Fields]
	Timer    PhaseTimer
}

func DefaultConfig() Config {
	return Config{
		Theta: 0.5,
		ODE:   ode.DefaultConfig(),
		PDE:   pde.DefaultConfig(),
	}
}

// Fields are the solution buffers. They are allocated once and updated in
// place; Previous and Current never share storage.
type Fields struct {
	Previous *state.Composite
	Current  *state.Composite
	PDE      *state.PotentialField
}

type Solver struct {
	cfg   Config
	model Model
	log   *slog.Logger

	odeSolver ode.Executor
	pdeSolver pde.Executor
	merger    *state.Merger

	previous *state.Composite
	current  *state.Composite
	vur      *state.PotentialField

	steps int
}

// New builds the sub-solvers and sets both composite states to the cell
// model's initial conditions.
func New(m Model, cfg Config) (*Solver, error) {
	if !(cfg.Theta >= 0 && cfg.Theta <= 1) {
		return nil, fmt.Errorf("%w: theta must lie in [0, 1], got %g", dynamo.ErrConfiguration, cfg.Theta)
	}
	if m.Grid == nil || m.Cell == nil {
		return nil, fmt.Errorf("%w: model needs a grid and a cell model", dynamo.ErrConfiguration)
	}
	if err := m.Grid.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	odeStim, pdeStim := m.Stimulus, stimulus.Field(nil)
	if cfg.StimulusToPDE {
		odeStim, pdeStim = nil, m.Stimulus
	}

	points := make([]mesh.Point, m.Grid.NumDofs())
	for i := range points {
		points[i] = m.Grid.Coordinates(i)
	}
	odeSolver, err := ode.New(points, m.Cell, odeStim, cfg.ODE)
	if err != nil {
		return nil, err
	}
	previous, current := odeSolver.SolutionFields()
	if err := previous.Fill(m.Cell.InitialConditions()); err != nil {
		return nil, err
	}
	if err := current.CopyFrom(previous); err != nil {
		return nil, err
	}

	pdeCfg := cfg.PDE
	pdeCfg.Theta = cfg.Theta
	pdeCfg.Constraint = m.Constraint
	problem := pde.Problem{
		Grid:     m.Grid,
		Kind:     m.Kind,
		Mi:       m.Mi,
		Me:       m.Me,
		Stimulus: pdeStim,
		Applied:  m.Applied,
	}
	// The PDE reads v_ from the tentative ODE result.
	pdeSolver, err := pde.New(problem, pdeCfg, current)
	if err != nil {
		return nil, err
	}
	_, vur := pdeSolver.SolutionFields()
	current.Potential(vur.V)

	merger, err := state.NewMerger(current.Layout, vur.NumDofs())
	if err != nil {
		return nil, err
	}

	log.Info("splitting solver ready",
		"cell", m.Cell.Name(),
		"pde", m.Kind.String(),
		"dofs", m.Grid.NumDofs(),
		"theta", cfg.Theta,
		"ode_scheme", cfg.ODE.Scheme.String(),
		"ode_variant", cfg.ODE.Variant.String(),
		"pde_variant", pdeCfg.Variant.String(),
		"linear_solver", pdeCfg.Solver.Kind.String(),
		"stimulus_to_pde", cfg.StimulusToPDE,
	)

	return &Solver{
		cfg:       cfg,
		model:     m,
		log:       log,
		odeSolver: odeSolver,
		pdeSolver: pdeSolver,
		merger:    merger,
		previous:  previous,
		current:   current,
		vur:       vur,
	}, nil
}

// SolutionFields returns the live buffers. Writing to Previous before the
// first step sets the initial condition.
func (s *Solver) SolutionFields() Fields {
	return Fields{Previous: s.previous, Current: s.current, PDE: s.vur}
}

func (s *Solver) Theta() float64 { return s.cfg.Theta }

// Step advances from Previous (valid at iv.T0) to Current and PDE (valid at
// iv.T1). PDE.V equals the v of Current only when theta is 1. A failure
// leaves the fields in an unspecified state.
func (s *Solver) Step(iv dynamo.Interval) error {
	s.steps++
	theta := s.cfg.Theta
	t := iv.At(theta)

	if err := s.phase(PhaseTentativeODE, iv, func() error {
		return s.odeSolver.Step(dynamo.Interval{T0: iv.T0, T1: t})
	}); err != nil {
		return err
	}

	if err := s.phase(PhasePDE, iv, func() error {
		return s.pdeSolver.Step(iv)
	}); err != nil {
		return err
	}

	if theta == 1 {
		return s.phase(PhaseMerge, iv, func() error {
			return s.Merge(s.current)
		})
	}

	if err := s.phase(PhaseMerge, iv, func() error {
		if err := s.previous.CopyFrom(s.current); err != nil {
			return err
		}
		return s.Merge(s.previous)
	}); err != nil {
		return err
	}

	return s.phase(PhaseCorrectiveODE, iv, func() error {
		if err := s.odeSolver.Step(dynamo.Interval{T0: t, T1: iv.T1}); err != nil {
			return err
		}
		return s.previous.CopyFrom(s.current)
	})
}

// Merge writes the PDE potential into the v component of target.
func (s *Solver) Merge(target *state.Composite) error {
	return s.merger.Merge(target, s.vur)
}

// Advance commits Current as the starting state of the next step.
func (s *Solver) Advance() error {
	return s.previous.CopyFrom(s.current)
}

func (s *Solver) phase(name string, iv dynamo.Interval, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if s.cfg.Timer != nil {
		s.cfg.Timer.ObservePhase(name, elapsed)
	}
	if err != nil {
		return &dynamo.StepError{Step: s.steps, Phase: name, Interval: iv, Wrapped: err}
	}
	s.log.Debug("phase done", "phase", name, "t0", iv.T0, "t1", iv.T1, "elapsed", elapsed)
	return nil
}

// Solve returns a lazy run over iv. The schedule is validated here; no
// step is taken until the run is iterated. Cancelling ctx stops the run
// between steps.
func (s *Solver) Solve(ctx context.Context, iv dynamo.Interval, sched timestep.Schedule) (*Run, error) {
	opts := []sim.Option[Fields]{sim.WithLogger[Fields](s.log)}
	if s.cfg.Observer != nil {
		opts = append(opts, sim.WithObserver(s.cfg.Observer))
	}
	return sim.Start[Fields](ctx, s, iv, sched, opts...)
}

// Run is the step sequence returned by Solve.
type Run = sim.Run[Fields]
