// Package experiment turns a configuration into a ready splitting solver
// and records what a run produced: probe traces, the final potential and
// summary metrics.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/beatsim/internal/cell"
	"github.com/san-kum/beatsim/internal/cellsolver"
	"github.com/san-kum/beatsim/internal/config"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/mesh"
	"github.com/san-kum/beatsim/internal/metrics"
	"github.com/san-kum/beatsim/internal/ode"
	"github.com/san-kum/beatsim/internal/pde"
	"github.com/san-kum/beatsim/internal/splitting"
	"github.com/san-kum/beatsim/internal/stimulus"
	"github.com/san-kum/beatsim/internal/telemetry"
)

type Options struct {
	Logger *slog.Logger
	// Telemetry, when set, times every sub-step and counts steps.
	Telemetry *telemetry.Collector
	// OnStep is called after the experiment has recorded a step.
	OnStep func(iv dynamo.Interval, v []float64)
}

// Probe is a node whose potential is traced over time.
type Probe struct {
	Name  string     `json:"name"`
	Point mesh.Point `json:"point"`
	Dof   int        `json:"dof"`
}

type Result struct {
	Probes []Probe
	Times  []float64
	// Traces[i][k] is the potential at probe k after step i; row 0 is the
	// initial condition.
	Traces  [][]float64
	Final   []float64
	Steps   int
	Metrics map[string]float64
	Elapsed time.Duration
}

type Experiment struct {
	cfg    *config.Config
	opts   Options
	log    *slog.Logger
	grid   *mesh.Grid
	model  cell.Model
	solver *splitting.Solver

	probes     []Probe
	metrics    []metrics.Metric
	activation []*metrics.Activation

	v      []float64
	result *Result
}

// Build validates cfg and assembles the solver it describes.
func Build(cfg *config.Config, opts Options) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	grid, err := mesh.NewRectangle(cfg.Grid.Nx, cfg.Grid.Ny, cfg.Grid.Lx, cfg.Grid.Ly)
	if err != nil {
		return nil, err
	}
	model, err := NewRegistry().GetCell(cfg.Cell, cfg.CellParams)
	if err != nil {
		return nil, err
	}
	scfg, err := solverConfig(cfg)
	if err != nil {
		return nil, err
	}
	kind, err := pde.ParseKind(cfg.PDE.Kind)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:   cfg,
		opts:  opts,
		log:   log,
		grid:  grid,
		model: model,
		v:     make([]float64, grid.NumDofs()),
	}

	scfg.Logger = log
	scfg.Observer = e
	if opts.Telemetry != nil {
		scfg.Timer = opts.Telemetry
	}
	m := splitting.Model{
		Grid:       grid,
		Cell:       model,
		Kind:       kind,
		Mi:         pde.Conductivity{X: cfg.PDE.Intra.X, Y: cfg.PDE.Intra.Y},
		Me:         pde.Conductivity{X: cfg.PDE.Extra.X, Y: cfg.PDE.Extra.Y},
		Stimulus:   Field(cfg.Stimulus),
		Applied:    Field(cfg.Applied),
		Constraint: cfg.PDE.Constraint,
	}
	if kind == pde.Monodomain {
		m.Applied = nil
	}
	e.solver, err = splitting.New(m, scfg)
	if err != nil {
		return nil, err
	}

	e.applyInitial()
	e.setupProbes()
	return e, nil
}

func solverConfig(cfg *config.Config) (splitting.Config, error) {
	scfg := splitting.DefaultConfig()
	scfg.Theta = cfg.Splitting.Theta
	scfg.StimulusToPDE = cfg.Splitting.StimulusToPDE

	var err error
	if scfg.ODE.Scheme, err = ode.ParseScheme(cfg.ODE.Scheme); err != nil {
		return scfg, err
	}
	if scfg.ODE.Variant, err = ode.ParseVariant(cfg.ODE.Variant); err != nil {
		return scfg, err
	}
	if cfg.ODE.MinChunk > 0 {
		scfg.ODE.MinChunk = cfg.ODE.MinChunk
	}

	if scfg.PDE.Variant, err = pde.ParseVariant(cfg.PDE.Variant); err != nil {
		return scfg, err
	}
	if scfg.PDE.Solver.Kind, err = pde.ParseSolverKind(cfg.PDE.Solver); err != nil {
		return scfg, err
	}
	if cfg.PDE.Tolerance > 0 {
		scfg.PDE.Solver.Tolerance = cfg.PDE.Tolerance
	}
	if cfg.PDE.MaxIterations > 0 {
		scfg.PDE.Solver.MaxIterations = cfg.PDE.MaxIterations
	}
	return scfg, nil
}

// Field sums the configured pulses, each confined to its region.
func Field(cs []config.StimulusConfig) stimulus.Field {
	if len(cs) == 0 {
		return nil
	}
	sum := make(stimulus.Sum, 0, len(cs))
	for _, c := range cs {
		var f stimulus.Field = stimulus.Pulse{
			Amplitude: c.Amplitude,
			Start:     c.Start,
			Duration:  c.Duration,
			Period:    c.Period,
		}
		if c.Region != nil {
			f = stimulus.Region{
				Min:   mesh.Point{X: c.Region.Min.X, Y: c.Region.Min.Y},
				Max:   mesh.Point{X: c.Region.Max.X, Y: c.Region.Max.Y},
				Inner: f,
			}
		}
		sum = append(sum, f)
	}
	if len(sum) == 1 {
		return sum[0]
	}
	return sum
}

func (e *Experiment) applyInitial() {
	if e.cfg.Initial == nil {
		return
	}
	rest := e.model.InitialConditions()[0]
	fields := e.solver.SolutionFields()
	for i := 0; i < e.grid.NumDofs(); i++ {
		v := *e.cfg.Initial
		if e.cfg.InitialShape == "cosine" {
			x := e.grid.Coordinates(i).X
			v = rest + v*math.Cos(math.Pi*x/e.grid.Lx)
		}
		fields.Previous.SetV(i, v)
		fields.Current.SetV(i, v)
	}
}

func (e *Experiment) setupProbes() {
	points := e.cfg.Probes
	if len(points) == 0 {
		points = []config.Point{{X: 0}, {X: e.grid.Lx}}
	}

	e.probes = e.probes[:0]
	e.activation = e.activation[:0]
	e.metrics = NewRegistry().DefaultMetrics(e.grid.LumpedMass())
	for k, p := range points {
		dof := e.grid.Nearest(mesh.Point{X: p.X, Y: p.Y})
		probe := Probe{Name: fmt.Sprintf("probe_%d", k), Point: e.grid.Coordinates(dof), Dof: dof}
		e.probes = append(e.probes, probe)

		a := metrics.NewActivation("activation_"+probe.Name, dof, e.cfg.ActivationThreshold)
		e.activation = append(e.activation, a)
		e.metrics = append(e.metrics, a, metrics.NewFrequency("frequency_"+probe.Name, dof))
	}
	if len(e.probes) >= 2 {
		a, b := e.probes[0].Point, e.probes[1].Point
		e.metrics = append(e.metrics, metrics.NewVelocity(e.activation[0], e.activation[1], math.Hypot(b.X-a.X, b.Y-a.Y)))
	}
}

func (e *Experiment) Config() *config.Config    { return e.cfg }
func (e *Experiment) Grid() *mesh.Grid          { return e.grid }
func (e *Experiment) Cell() cell.Model          { return e.model }
func (e *Experiment) Solver() *splitting.Solver { return e.solver }
func (e *Experiment) Probes() []Probe           { return e.probes }
func (e *Experiment) Metrics() []metrics.Metric { return e.metrics }

// Potential returns the potential recorded by the last observation. The
// slice is reused between steps.
func (e *Experiment) Potential() []float64 { return e.v }

// OnStep records one completed step. It is the solver's observer.
func (e *Experiment) OnStep(iv dynamo.Interval, f splitting.Fields) {
	e.observe(iv.T1, f)
	if e.opts.Telemetry != nil {
		e.opts.Telemetry.ObserveStep(iv)
	}
	if e.opts.OnStep != nil {
		e.opts.OnStep(iv, e.v)
	}
}

func (e *Experiment) observe(t float64, f splitting.Fields) {
	f.Current.Potential(e.v)
	for _, m := range e.metrics {
		m.Observe(t, e.v)
	}
	row := make([]float64, len(e.probes))
	for k, p := range e.probes {
		row[k] = e.v[p.Dof]
	}
	e.result.Times = append(e.result.Times, t)
	e.result.Traces = append(e.result.Traces, row)
}

// Start records the initial state and returns the lazy run. An experiment
// runs once; build a new one to repeat it.
func (e *Experiment) Start(ctx context.Context) (*splitting.Run, error) {
	if e.result != nil {
		return nil, fmt.Errorf("%w: experiment %q already started", dynamo.ErrConfiguration, e.cfg.Name)
	}
	for _, m := range e.metrics {
		m.Reset()
	}
	e.result = &Result{Probes: e.probes}

	run, err := e.solver.Solve(ctx, e.cfg.Interval(), e.cfg.Schedule())
	if err != nil {
		e.result = nil
		return nil, err
	}
	e.observe(e.cfg.Time.Start, e.solver.SolutionFields())
	return run, nil
}

// Result returns what has been recorded so far, with metrics evaluated now.
func (e *Experiment) Result() *Result {
	if e.result == nil {
		return nil
	}
	e.result.Final = append(e.result.Final[:0], e.v...)
	e.result.Steps = len(e.result.Times) - 1
	e.result.Metrics = metrics.Collect(e.metrics)
	return e.result
}

// Run iterates the whole interval.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	run, err := e.Start(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := run.Drain(); err != nil {
		return nil, fmt.Errorf("%s: %w", e.cfg.Name, err)
	}

	res := e.Result()
	res.Elapsed = time.Since(start)
	e.log.Info("run complete",
		"name", e.cfg.Name,
		"steps", res.Steps,
		"elapsed", res.Elapsed,
		"peak_v", res.Metrics["peak_v"],
	)
	return res, nil
}

// BuildCell assembles a single-cell solver for the cell model of cfg. The
// stimulus is sampled at the origin.
func BuildCell(cfg *config.Config, log *slog.Logger) (*cellsolver.Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := NewRegistry().GetCell(cfg.Cell, cfg.CellParams)
	if err != nil {
		return nil, err
	}
	scheme, err := ode.ParseScheme(cfg.ODE.Scheme)
	if err != nil {
		return nil, err
	}
	s, err := cellsolver.New(model, Field(cfg.Stimulus), cellsolver.Config{Scheme: scheme, Logger: log})
	if err != nil {
		return nil, err
	}
	if cfg.Initial != nil {
		f := s.SolutionFields()
		f.Previous.SetV(0, *cfg.Initial)
		f.Current.SetV(0, *cfg.Initial)
	}
	return s, nil
}
