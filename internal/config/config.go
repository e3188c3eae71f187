package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/timestep"
)

const (
	DefaultDt         = 0.05
	DefaultDuration   = 50.0
	DefaultTheta      = 0.5
	DefaultNodes      = 101
	DefaultLength     = 10.0
	DefaultSigma      = 0.1
	DefaultMinChunk   = 64
	DefaultActivation = -20.0
)

var validate = validator.New()

// Config describes one simulation. Zero values left out of a YAML file keep
// the defaults of DefaultConfig.
type Config struct {
	Name       string             `yaml:"name" json:"name"`
	Cell       string             `yaml:"cell" json:"cell" validate:"required,oneof=fitzhugh_nagumo adex passive"`
	CellParams map[string]float64 `yaml:"cell_params,omitempty" json:"cell_params,omitempty"`
	Grid       GridConfig         `yaml:"grid" json:"grid"`
	PDE        PDEConfig          `yaml:"pde" json:"pde"`
	ODE        ODEConfig          `yaml:"ode" json:"ode"`
	Splitting  SplittingConfig    `yaml:"splitting" json:"splitting"`
	Time       TimeConfig         `yaml:"time" json:"time"`
	Stimulus   []StimulusConfig   `yaml:"stimulus,omitempty" json:"stimulus,omitempty" validate:"dive"`
	Applied    []StimulusConfig   `yaml:"applied,omitempty" json:"applied,omitempty" validate:"dive"`
	Probes     []Point            `yaml:"probes,omitempty" json:"probes,omitempty"`
	// Initial overrides the resting potential of the cell model. With
	// InitialShape "cosine" it is the amplitude of cos(pi x / lx) around
	// the resting potential instead.
	Initial      *float64 `yaml:"initial_v,omitempty" json:"initial_v,omitempty"`
	InitialShape string   `yaml:"initial_shape,omitempty" json:"initial_shape,omitempty" validate:"omitempty,oneof=uniform cosine"`
	// ActivationThreshold is the potential probes report activation at.
	ActivationThreshold float64 `yaml:"activation_threshold" json:"activation_threshold"`
}

type GridConfig struct {
	Nx int     `yaml:"nx" json:"nx" validate:"gte=2"`
	Ny int     `yaml:"ny" json:"ny" validate:"gte=1"`
	Lx float64 `yaml:"lx" json:"lx" validate:"gt=0"`
	Ly float64 `yaml:"ly" json:"ly" validate:"gte=0"`
}

type Conductivity struct {
	X float64 `yaml:"x" json:"x" validate:"gte=0"`
	Y float64 `yaml:"y" json:"y" validate:"gte=0"`
}

type PDEConfig struct {
	Kind          string       `yaml:"kind" json:"kind" validate:"oneof=monodomain bidomain"`
	Variant       string       `yaml:"variant" json:"variant" validate:"oneof=basic optimized"`
	Solver        string       `yaml:"solver" json:"solver" validate:"oneof=direct cg"`
	Tolerance     float64      `yaml:"tolerance" json:"tolerance" validate:"gte=0"`
	MaxIterations int          `yaml:"max_iterations" json:"max_iterations" validate:"gte=0"`
	Constraint    bool         `yaml:"constraint" json:"constraint"`
	Intra         Conductivity `yaml:"intra" json:"intra"`
	Extra         Conductivity `yaml:"extra" json:"extra"`
}

type ODEConfig struct {
	Scheme   string `yaml:"scheme" json:"scheme" validate:"oneof=forward_euler rk4 rk45 backward_euler crank_nicolson"`
	Variant  string `yaml:"variant" json:"variant" validate:"oneof=basic optimized"`
	MinChunk int    `yaml:"min_chunk" json:"min_chunk" validate:"gte=0"`
}

type SplittingConfig struct {
	Theta         float64 `yaml:"theta" json:"theta" validate:"gte=0,lte=1"`
	StimulusToPDE bool    `yaml:"stimulus_to_pde" json:"stimulus_to_pde"`
}

// TimeConfig is either a constant dt or a schedule of switches.
type TimeConfig struct {
	Start    float64          `yaml:"start" json:"start"`
	End      float64          `yaml:"end" json:"end" validate:"gtfield=Start"`
	Dt       float64          `yaml:"dt" json:"dt" validate:"gte=0"`
	Schedule []timestep.Switch `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

type Region struct {
	Min Point `yaml:"min" json:"min"`
	Max Point `yaml:"max" json:"max"`
}

// StimulusConfig is a (periodic) rectangular pulse, optionally confined to
// a region.
type StimulusConfig struct {
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
	Start     float64 `yaml:"start" json:"start" validate:"gte=0"`
	Duration  float64 `yaml:"duration" json:"duration" validate:"gt=0"`
	Period    float64 `yaml:"period,omitempty" json:"period,omitempty" validate:"gte=0"`
	Region    *Region `yaml:"region,omitempty" json:"region,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "cable",
		Cell: "fitzhugh_nagumo",
		Grid: GridConfig{Nx: DefaultNodes, Ny: 1, Lx: DefaultLength},
		PDE: PDEConfig{
			Kind:          "monodomain",
			Variant:       "optimized",
			Solver:        "direct",
			Tolerance:     1e-12,
			MaxIterations: 1000,
			Intra:         Conductivity{X: DefaultSigma, Y: DefaultSigma},
			Extra:         Conductivity{X: DefaultSigma, Y: DefaultSigma},
		},
		ODE:       ODEConfig{Scheme: "rk4", Variant: "optimized", MinChunk: DefaultMinChunk},
		Splitting: SplittingConfig{Theta: DefaultTheta},
		Time:      TimeConfig{End: DefaultDuration, Dt: DefaultDt},

		ActivationThreshold: DefaultActivation,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field constraints and the time schedule.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("%w: %s fails %q (value %v)", dynamo.ErrConfiguration, f.Namespace(), f.Tag(), f.Value())
		}
		return fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}
	if c.Grid.Ny > 1 && c.Grid.Ly <= 0 {
		return fmt.Errorf("%w: a 2D grid needs ly > 0", dynamo.ErrConfiguration)
	}
	if c.PDE.Constraint && c.PDE.Kind != "bidomain" {
		return fmt.Errorf("%w: the average constraint applies to the bidomain only", dynamo.ErrConfiguration)
	}
	_, err := timestep.New(c.Interval(), c.Schedule())
	return err
}

func (c *Config) Interval() dynamo.Interval {
	return dynamo.Interval{T0: c.Time.Start, T1: c.Time.End}
}

func (c *Config) Schedule() timestep.Schedule {
	if len(c.Time.Schedule) > 0 {
		return timestep.Variable(c.Time.Schedule...)
	}
	return timestep.Constant(c.Time.Dt)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.CellParams != nil {
		out.CellParams = make(map[string]float64, len(c.CellParams))
		for k, v := range c.CellParams {
			out.CellParams[k] = v
		}
	}
	out.Stimulus = append([]StimulusConfig(nil), c.Stimulus...)
	out.Applied = append([]StimulusConfig(nil), c.Applied...)
	out.Probes = append([]Point(nil), c.Probes...)
	out.Time.Schedule = append([]timestep.Switch(nil), c.Time.Schedule...)
	if c.Initial != nil {
		v := *c.Initial
		out.Initial = &v
	}
	return &out
}
