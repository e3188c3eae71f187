// Package ode advances the cell model state of every degree of freedom over
// a time sub-interval.
//
// The executor owns two composite fields: previous (input, valid at the
// start of the interval) and current (output, valid at its end). Step
// copies previous into current and integrates each node independently
// with the configured one-step scheme, holding any coupling input fixed.
package ode

import (
	"fmt"
	"strings"

	"github.com/san-kum/beatsim/internal/cell"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/integrators"
	"github.com/san-kum/beatsim/internal/mesh"
	"github.com/san-kum/beatsim/internal/state"
	"github.com/san-kum/beatsim/internal/stimulus"
)

// Executor is the ODE sub-step capability shared by all variants.
type Executor interface {
	Step(iv dynamo.Interval) error
	SolutionFields() (previous, current *state.Composite)
}

type Scheme int

const (
	RK4 Scheme = iota
	ForwardEuler
	RK45
	BackwardEuler
	CrankNicolson
)

var schemeNames = map[Scheme]string{
	RK4:           "rk4",
	ForwardEuler:  "forward_euler",
	RK45:          "rk45",
	BackwardEuler: "backward_euler",
	CrankNicolson: "crank_nicolson",
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scheme(%d)", int(s))
}

func ParseScheme(name string) (Scheme, error) {
	for s, n := range schemeNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown ode scheme %q", dynamo.ErrConfiguration, name)
}

func (s Scheme) newIntegrator() dynamo.Integrator {
	switch s {
	case ForwardEuler:
		return integrators.NewEuler()
	case RK45:
		return integrators.NewRK45()
	case BackwardEuler:
		return integrators.NewBackwardEuler()
	case CrankNicolson:
		return integrators.NewCrankNicolson()
	default:
		return integrators.NewRK4()
	}
}

// Variant selects the executor implementation.
type Variant int

const (
	Basic Variant = iota
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
	return 0, fmt.Errorf("%w: unknown ode variant %q", dynamo.ErrConfiguration, name)
}

type Config struct {
	Variant Variant
	Scheme  Scheme
	// MinChunk is the smallest number of nodes an Optimized worker handles.
	MinChunk int
}

func DefaultConfig() Config {
	return Config{Variant: Basic, Scheme: RK4, MinChunk: 64}
}

// New builds an executor for one node per point. stim may be nil.
func New(points []mesh.Point, model cell.Model, stim stimulus.Field, cfg Config) (Executor, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: ode executor needs a cell model", dynamo.ErrConfiguration)
	}
	if _, ok := schemeNames[cfg.Scheme]; !ok {
		return nil, fmt.Errorf("%w: unknown ode scheme %d", dynamo.ErrConfiguration, int(cfg.Scheme))
	}
	layout := state.Layout{NumDofs: len(points), NumStates: model.NumStates()}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if len(model.InitialConditions()) != layout.Stride() {
		return nil, fmt.Errorf("%w: %s initial conditions have %d values, want %d",
			dynamo.ErrConfiguration, model.Name(), len(model.InitialConditions()), layout.Stride())
	}
	if stimulus.IsZero(stim) {
		stim = nil
	}

	b := base{
		points:   points,
		model:    model,
		stim:     stim,
		previous: state.NewComposite(layout),
		current:  state.NewComposite(layout),
	}
	b.resetter, _ = model.(cell.Resetter)

	switch cfg.Variant {
	case Basic:
		return newBasic(b, cfg), nil
	case Optimized:
		return newOptimized(b, cfg), nil
	}
	return nil, fmt.Errorf("%w: unknown ode variant %d", dynamo.ErrConfiguration, int(cfg.Variant))
}

// nodeSystem is the right-hand side of one node:
// dv/dt = -Ion(v, s, t) + I_s(x, t), ds/dt = F(v, s, t).
type nodeSystem struct {
	model cell.Model
	stim  stimulus.Field
	point mesh.Point
}

func (n *nodeSystem) Dim() int { return 1 + n.model.NumStates() }

func (n *nodeSystem) Derive(dx, x dynamo.State, t float64) {
	dx[0] = -n.model.Ion(x[0], x[1:], t)
	if n.stim != nil {
		dx[0] += n.stim.Eval(t, n.point)
	}
	n.model.StateRHS(dx[1:], x[0], x[1:], t)
}

// base holds what every variant shares.
type base struct {
	points   []mesh.Point
	model    cell.Model
	stim     stimulus.Field
	resetter cell.Resetter

	previous *state.Composite
	current  *state.Composite
}

func (b *base) SolutionFields() (*state.Composite, *state.Composite) {
	return b.previous, b.current
}

// advance integrates nodes [start, end) of current in place.
func (b *base) advance(integ dynamo.Integrator, sys *nodeSystem, iv dynamo.Interval, start, end int) error {
	dt := iv.Dt()
	hinted, _ := integ.(interface{ Reset() })
	for i := start; i < end; i++ {
		node := b.current.Node(i)
		sys.point = b.points[i]
		if hinted != nil {
			hinted.Reset()
		}
		if err := integ.Step(sys, node, iv.T0, dt); err != nil {
			return &dynamo.NodeError{Dof: i, Time: iv.T0, Wrapped: err}
		}
		if !dynamo.State(node).IsValid() {
			return &dynamo.NodeError{Dof: i, Time: iv.T1,
				Wrapped: fmt.Errorf("%w: non-finite state", dynamo.ErrIntegrationDiverged)}
		}
		if b.resetter != nil {
			b.resetter.Reset(node)
		}
	}
	return nil
}
