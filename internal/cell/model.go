// Package cell provides cardiac and neuronal cell models.
//
// A cell model supplies the membrane ionic current and the evolution of its
// internal state variables at one spatial point:
//
//	dv/dt = -Ion(v, s, t) + I_s
//	ds/dt = F(v, s, t)
//
// Models are stateless with respect to the simulation; the ODE executor owns
// the per-node state vectors.
package cell

import (
	"fmt"
	"sort"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// Model describes the ODE system of one cell.
type Model interface {
	Name() string
	NumStates() int
	StateNames() []string
	// InitialConditions returns (v, s_1, ..., s_k).
	InitialConditions() []float64
	Ion(v float64, s []float64, t float64) float64
	StateRHS(ds []float64, v float64, s []float64, t float64)
}

// Resetter is implemented by models with discontinuous updates (spike and
// reset). Reset inspects one node (v, s...) after a completed ODE step,
// modifies it in place and reports whether it fired.
type Resetter interface {
	Reset(node []float64) bool
}

// Configurable exposes named model parameters.
type Configurable interface {
	Params() map[string]float64
	SetParam(name string, value float64) error
}

// params is the parameter table embedded by the concrete models.
type params map[string]float64

func (p params) Params() map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p params) SetParam(name string, value float64) error {
	if _, ok := p[name]; !ok {
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("%w: unknown parameter %q (have %v)", dynamo.ErrConfiguration, name, keys)
	}
	p[name] = value
	return nil
}
