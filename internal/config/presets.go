package config

import (
	"sort"

	"github.com/san-kum/beatsim/internal/timestep"
)

func ptr(v float64) *float64 { return &v }

// Presets are ready-made simulations keyed by name.
var Presets = map[string]*Config{
	"cable": {
		Name: "cable", Cell: "fitzhugh_nagumo",
		Grid: GridConfig{Nx: 101, Ny: 1, Lx: 10},
		PDE: PDEConfig{Kind: "monodomain", Variant: "optimized", Solver: "direct",
			Intra: Conductivity{X: 0.1, Y: 0.1}},
		ODE:       ODEConfig{Scheme: "rk4", Variant: "optimized", MinChunk: 32},
		Splitting: SplittingConfig{Theta: 0.5},
		Time:      TimeConfig{End: 60, Dt: 0.05},
		Stimulus: []StimulusConfig{{
			Amplitude: 50, Start: 1, Duration: 2,
			Region: &Region{Min: Point{X: 0}, Max: Point{X: 0.5}},
		}},
		Probes: []Point{{X: 2.5}, {X: 7.5}},
	},
	"cable_godunov": {
		Name: "cable_godunov", Cell: "fitzhugh_nagumo",
		Grid: GridConfig{Nx: 101, Ny: 1, Lx: 10},
		PDE: PDEConfig{Kind: "monodomain", Variant: "optimized", Solver: "cg", Tolerance: 1e-10, MaxIterations: 500,
			Intra: Conductivity{X: 0.1, Y: 0.1}},
		ODE:       ODEConfig{Scheme: "forward_euler", Variant: "basic"},
		Splitting: SplittingConfig{Theta: 1},
		Time:      TimeConfig{End: 60, Dt: 0.025},
		Stimulus: []StimulusConfig{{
			Amplitude: 50, Start: 1, Duration: 2,
			Region: &Region{Min: Point{X: 0}, Max: Point{X: 0.5}},
		}},
		Probes: []Point{{X: 2.5}, {X: 7.5}},
	},
	"sheet": {
		Name: "sheet", Cell: "fitzhugh_nagumo",
		Grid: GridConfig{Nx: 21, Ny: 21, Lx: 5, Ly: 5},
		PDE: PDEConfig{Kind: "monodomain", Variant: "optimized", Solver: "direct",
			Intra: Conductivity{X: 0.2, Y: 0.05}},
		ODE:       ODEConfig{Scheme: "rk4", Variant: "optimized", MinChunk: 64},
		Splitting: SplittingConfig{Theta: 0.5},
		Time: TimeConfig{End: 40, Schedule: []timestep.Switch{
			{At: 0, Dt: 0.02},
			{At: 5, Dt: 0.1},
		}},
		Stimulus: []StimulusConfig{{
			Amplitude: 50, Start: 0, Duration: 2,
			Region: &Region{Min: Point{X: 0, Y: 0}, Max: Point{X: 0.75, Y: 0.75}},
		}},
		Probes: []Point{{X: 1, Y: 1}, {X: 4, Y: 1}, {X: 1, Y: 4}},
	},
	"bidomain_sheet": {
		Name: "bidomain_sheet", Cell: "fitzhugh_nagumo",
		Grid: GridConfig{Nx: 11, Ny: 11, Lx: 5, Ly: 5},
		PDE: PDEConfig{Kind: "bidomain", Variant: "optimized", Solver: "direct", Constraint: true,
			Intra: Conductivity{X: 0.17, Y: 0.019}, Extra: Conductivity{X: 0.62, Y: 0.24}},
		ODE:       ODEConfig{Scheme: "rk4", Variant: "optimized", MinChunk: 32},
		Splitting: SplittingConfig{Theta: 0.5},
		Time:      TimeConfig{End: 30, Dt: 0.05},
		Stimulus: []StimulusConfig{{
			Amplitude: 50, Start: 0, Duration: 2,
			Region: &Region{Min: Point{X: 0, Y: 0}, Max: Point{X: 1, Y: 5}},
		}},
		Probes: []Point{{X: 1, Y: 2.5}, {X: 4, Y: 2.5}},
	},
	"adex_cable": {
		Name: "adex_cable", Cell: "adex",
		Grid: GridConfig{Nx: 51, Ny: 1, Lx: 1},
		PDE: PDEConfig{Kind: "monodomain", Variant: "optimized", Solver: "direct",
			Intra: Conductivity{X: 0.01, Y: 0.01}},
		ODE:       ODEConfig{Scheme: "rk45", Variant: "optimized", MinChunk: 16},
		Splitting: SplittingConfig{Theta: 0.5, StimulusToPDE: false},
		Time:      TimeConfig{End: 400, Dt: 0.1},
		Stimulus: []StimulusConfig{{
			Amplitude: 3, Start: 20, Duration: 300,
			Region: &Region{Min: Point{X: 0}, Max: Point{X: 0.1}},
		}},
		Probes: []Point{{X: 0}, {X: 0.5}},
	},
	"passive_mode": {
		Name: "passive_mode", Cell: "passive",
		Grid: GridConfig{Nx: 11, Ny: 1, Lx: 1},
		PDE: PDEConfig{Kind: "monodomain", Variant: "optimized", Solver: "direct",
			Intra: Conductivity{X: 0.1, Y: 0.1}},
		ODE:          ODEConfig{Scheme: "rk4", Variant: "basic"},
		Splitting:    SplittingConfig{Theta: 0.5},
		Time:         TimeConfig{End: 1, Dt: 0.1},
		Probes:       []Point{{X: 0}},
		Initial:      ptr(1),
		InitialShape: "cosine",
	},
}

// GetPreset returns a copy of the named preset with unset solver
// parameters filled from DefaultConfig, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := p.Clone()
	def := DefaultConfig()
	if cfg.PDE.Tolerance == 0 {
		cfg.PDE.Tolerance = def.PDE.Tolerance
	}
	if cfg.PDE.MaxIterations == 0 {
		cfg.PDE.MaxIterations = def.PDE.MaxIterations
	}
	if cfg.ActivationThreshold == 0 {
		cfg.ActivationThreshold = def.ActivationThreshold
	}
	if cfg.ODE.MinChunk == 0 {
		cfg.ODE.MinChunk = def.ODE.MinChunk
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
