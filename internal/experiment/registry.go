package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/beatsim/internal/cell"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/metrics"
)

type Registry struct {
	cells map[string]func() cell.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		cells: make(map[string]func() cell.Model),
	}

	r.cells["fitzhugh_nagumo"] = func() cell.Model { return cell.NewFitzHughNagumo() }
	r.cells["adex"] = func() cell.Model { return cell.NewAdEx() }
	r.cells["passive"] = func() cell.Model { return cell.NewPassive() }

	return r
}

// GetCell builds a fresh model and applies parameter overrides.
func (r *Registry) GetCell(name string, params map[string]float64) (cell.Model, error) {
	fn, ok := r.cells[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown cell model: %s", dynamo.ErrConfiguration, name)
	}
	m := fn()
	if len(params) == 0 {
		return m, nil
	}

	cfg, ok := m.(cell.Configurable)
	if !ok {
		return nil, fmt.Errorf("%w: cell model %s has no parameters", dynamo.ErrConfiguration, name)
	}
	for _, k := range sortedKeys(params) {
		if err := cfg.SetParam(k, params[k]); err != nil {
			return nil, fmt.Errorf("cell %s: %w", name, err)
		}
	}
	return m, nil
}

func (r *Registry) ListCells() []string {
	names := make([]string, 0, len(r.cells))
	for name := range r.cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns the domain-wide metrics every run records.
func (r *Registry) DefaultMetrics(weights []float64) []metrics.Metric {
	return []metrics.Metric{
		metrics.NewPeak(),
		metrics.NewMean(weights),
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
