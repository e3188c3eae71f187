package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/beatsim/internal/config"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/sim"
	"github.com/san-kum/beatsim/internal/timestep"
)

// Convergence is an empirical time-order study. Level k runs with every
// step size divided by 2^k; the finest level is the reference solution.
type Convergence struct {
	Dt     []float64 `json:"dt"`
	Errors []float64 `json:"errors"`
	// Rates[k] compares Errors[k] and Errors[k+1].
	Rates []float64 `json:"rates"`
}

// Order returns the rate of the two coarsest levels, the least affected by
// the reference error.
func (c *Convergence) Order() float64 {
	if len(c.Rates) == 0 {
		return math.NaN()
	}
	return c.Rates[0]
}

// RunConvergence runs levels+1 refinements of cfg concurrently and measures
// the mass-weighted L2 distance of each final potential to the finest one.
func RunConvergence(ctx context.Context, cfg *config.Config, levels int) (*Convergence, error) {
	if levels < 2 {
		return nil, fmt.Errorf("%w: convergence needs at least 2 levels, got %d", dynamo.ErrConfiguration, levels)
	}

	type level struct {
		dt    float64
		final []float64
		mass  []float64
	}
	results, err := sim.Sweep(ctx, levels+1, func(ctx context.Context, k int) (level, error) {
		scale := math.Ldexp(1, -k)
		c := cfg.Clone()
		if len(c.Time.Schedule) > 0 {
			c.Time.Schedule = timestep.Schedule(c.Time.Schedule).Scale(scale)
		} else {
			c.Time.Dt *= scale
		}

		e, err := Build(c, Options{})
		if err != nil {
			return level{}, err
		}
		res, err := e.Run(ctx)
		if err != nil {
			return level{}, fmt.Errorf("level %d: %w", k, err)
		}
		return level{dt: c.Schedule().MinDt(), final: res.Final, mass: e.Grid().LumpedMass()}, nil
	})
	if err != nil {
		return nil, err
	}

	ref := results[levels]
	out := &Convergence{}
	for _, l := range results[:levels] {
		sum := 0.0
		for i, v := range l.final {
			d := v - ref.final[i]
			sum += ref.mass[i] * d * d
		}
		out.Dt = append(out.Dt, l.dt)
		out.Errors = append(out.Errors, math.Sqrt(sum))
	}
	for k := 0; k+1 < len(out.Errors); k++ {
		out.Rates = append(out.Rates, math.Log2(out.Errors[k]/out.Errors[k+1]))
	}
	return out, nil
}
