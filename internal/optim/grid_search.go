// Package optim sweeps simulation parameters over a grid and ranks the
// runs by a metric.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/beatsim/internal/config"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/experiment"
	"github.com/san-kum/beatsim/internal/sim"
)

// Axis is one swept parameter. Names other than theta, dt, sigma_i and
// sigma_e are cell model parameters.
type Axis struct {
	Name   string
	Values []float64
}

// ParseAxis reads "name=v1,v2,...".
func ParseAxis(s string) (Axis, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return Axis{}, fmt.Errorf("%w: parameter %q is not name=v1,v2,...", dynamo.ErrConfiguration, s)
	}
	ax := Axis{Name: strings.TrimSpace(name)}
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Axis{}, fmt.Errorf("%w: parameter %s: %v", dynamo.ErrConfiguration, ax.Name, err)
		}
		ax.Values = append(ax.Values, v)
	}
	return ax, nil
}

// Point is one evaluated parameter combination. Runs that fail keep their
// error and a NaN value.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	axes []Axis
}

func NewGridSearch(axes ...Axis) (*GridSearch, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: grid search needs at least one parameter", dynamo.ErrConfiguration)
	}
	for _, ax := range axes {
		if len(ax.Values) == 0 {
			return nil, fmt.Errorf("%w: parameter %s has no values", dynamo.ErrConfiguration, ax.Name)
		}
	}
	return &GridSearch{axes: axes}, nil
}

// Combinations lists the Cartesian product of the axes, last axis fastest.
func (g *GridSearch) Combinations() []map[string]float64 {
	combos := []map[string]float64{{}}
	for _, ax := range g.axes {
		next := make([]map[string]float64, 0, len(combos)*len(ax.Values))
		for _, c := range combos {
			for _, v := range ax.Values {
				m := make(map[string]float64, len(c)+1)
				for k, x := range c {
					m[k] = x
				}
				m[ax.Name] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// Apply sets one named parameter on cfg.
func Apply(cfg *config.Config, name string, v float64) {
	switch name {
	case "theta":
		cfg.Splitting.Theta = v
	case "dt":
		cfg.Time.Dt = v
		cfg.Time.Schedule = nil
	case "sigma_i":
		cfg.PDE.Intra = config.Conductivity{X: v, Y: v}
	case "sigma_e":
		cfg.PDE.Extra = config.Conductivity{X: v, Y: v}
	default:
		if cfg.CellParams == nil {
			cfg.CellParams = make(map[string]float64)
		}
		cfg.CellParams[name] = v
	}
}

// Search runs every combination on a copy of base concurrently and returns
// the points ordered by metric, smallest first, failed runs last.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) ([]Point, error) {
	combos := g.Combinations()
	points, err := sim.Sweep(ctx, len(combos), func(ctx context.Context, i int) (Point, error) {
		p := Point{Params: combos[i], Value: math.NaN()}
		cfg := base.Clone()
		for k, v := range p.Params {
			Apply(cfg, k, v)
		}

		exp, err := experiment.Build(cfg, experiment.Options{})
		if err != nil {
			p.Err = err
			return p, nil
		}
		res, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return p, ctx.Err()
			}
			p.Err = err
			return p, nil
		}
		v, ok := res.Metrics[metric]
		if !ok {
			return p, fmt.Errorf("%w: unknown metric %q", dynamo.ErrConfiguration, metric)
		}
		p.Value = v
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		return a.Value < b.Value
	})
	return points, nil
}
