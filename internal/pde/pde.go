// Package pde advances the potentials of the monodomain or bidomain
// equations over a time interval with a theta rule, the cell model ionic
// current having been moved to the ODE sub-step.
//
// Monodomain:
//
//	M (v - v_)/dt + Ki (theta v + (1-theta) v_) = M I_s
//
// Bidomain, unknowns (v, u, lambda):
//
//	M (v - v_)/dt + Ki v_theta + Ki u      = M I_s
//	Ki v_theta + (Ki + Ke) u + m lambda    = M I_a
//	m^T u                                  = 0
//
// The last row exists only with the average-value constraint. Without it
// the extracellular potential is grounded at the first degree of freedom.
package pde

import (
	"fmt"
	"strings"

	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/mesh"
	"github.com/san-kum/beatsim/internal/state"
	"github.com/san-kum/beatsim/internal/stimulus"
)

// Executor is the PDE sub-step capability shared by all variants.
type Executor interface {
	Step(iv dynamo.Interval) error
	// SolutionFields returns the v_ buffer read at the start of each step
	// and the field the step writes.
	SolutionFields() (vPrev []float64, out *state.PotentialField)
}

// Source supplies the transmembrane potential the PDE starts from.
// *state.Composite implements it.
type Source interface {
	Potential(dst []float64)
}

type Kind int

const (
	Monodomain Kind = iota
	Bidomain
)

func (k Kind) String() string {
	if k == Bidomain {
		return "bidomain"
	}
	return "monodomain"
}

func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "", "monodomain":
		return Monodomain, nil
	case "bidomain":
		return Bidomain, nil
	}
	return 0, fmt.Errorf("%w: unknown pde kind %q", dynamo.ErrConfiguration, name)
}

// Variant selects how the system matrix is factorised.
type Variant int

const (
	// Basic assembles and factorises on every step.
	Basic Variant = iota
	// Optimized keeps the factorisation while dt is unchanged.
	Optimized
)

func (v Variant) String() string {
	if v == Optimized {
		return "optimized"
	}
	return "basic"
}

func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "", "basic":
		return Basic, nil
	case "optimized":
		return Optimized, nil
	}
	return 0, fmt.Errorf("%w: unknown pde variant %q", dynamo.ErrConfiguration, name)
}

// Conductivity is a diagonal conductivity tensor.
type Conductivity struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Isotropic returns the same conductivity along both axes.
func Isotropic(s float64) Conductivity { return Conductivity{X: s, Y: s} }

// Problem is the spatial part of the model.
type Problem struct {
	Grid *mesh.Grid
	Kind Kind
	Mi   Conductivity
	// Me is used by the bidomain only.
	Me Conductivity
	// Stimulus is I_s when routed to the PDE; nil otherwise.
	Stimulus stimulus.Field
	// Applied is I_a, bidomain only.
	Applied stimulus.Field
}

type Config struct {
	Variant    Variant
	Theta      float64
	Solver     LinearSolverConfig
	Constraint bool
}

func DefaultConfig() Config {
	return Config{Variant: Basic, Theta: 0.5, Solver: DefaultLinearSolver()}
}

func (c Config) validate(p Problem) error {
	if !(c.Theta >= 0 && c.Theta <= 1) {
		return fmt.Errorf("%w: theta must lie in [0, 1], got %g", dynamo.ErrConfiguration, c.Theta)
	}
	if c.Constraint && p.Kind != Bidomain {
		return fmt.Errorf("%w: average-value constraint needs a multiplier, %s has none",
			dynamo.ErrConfiguration, p.Kind)
	}
	if c.Solver.Kind == ConjugateGradient && p.Kind == Bidomain {
		return fmt.Errorf("%w: conjugate gradient needs a symmetric system, bidomain is not",
			dynamo.ErrConfiguration)
	}
	if c.Variant != Basic && c.Variant != Optimized {
		return fmt.Errorf("%w: unknown pde variant %d", dynamo.ErrConfiguration, int(c.Variant))
	}
	return c.Solver.validate()
}

// New builds an executor that reads v_ from src before each step.
func New(p Problem, cfg Config, src Source) (Executor, error) {
	if p.Grid == nil {
		return nil, fmt.Errorf("%w: pde needs a grid", dynamo.ErrConfiguration)
	}
	if err := p.Grid.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: pde needs a potential source", dynamo.ErrConfiguration)
	}
	if err := cfg.validate(p); err != nil {
		return nil, err
	}
	if stimulus.IsZero(p.Stimulus) {
		p.Stimulus = nil
	}
	if p.Kind != Bidomain || stimulus.IsZero(p.Applied) {
		p.Applied = nil
	}

	op := newOperator(p, cfg)
	solver, err := newLinearSolver(cfg.Solver, p.Kind)
	if err != nil {
		return nil, err
	}

	var out *state.PotentialField
	if p.Kind == Bidomain {
		out = state.NewBidomainField(op.n, cfg.Constraint)
	} else {
		out = state.NewMonodomainField(op.n)
	}

	return newExecutor(op, solver, src, out, cfg.Variant == Optimized), nil
}
