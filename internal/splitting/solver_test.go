package splitting_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beatsim/internal/cell"
	"github.com/san-kum/beatsim/internal/cellsolver"
	"github.com/san-kum/beatsim/internal/dynamo"
	"github.com/san-kum/beatsim/internal/mesh"
	"github.com/san-kum/beatsim/internal/ode"
	"github.com/san-kum/beatsim/internal/pde"
	"github.com/san-kum/beatsim/internal/sim"
	"github.com/san-kum/beatsim/internal/splitting"
	"github.com/san-kum/beatsim/internal/state"
	"github.com/san-kum/beatsim/internal/stimulus"
	"github.com/san-kum/beatsim/internal/timestep"
)

const sigma = 0.1

func passiveModel(grid *mesh.Grid) splitting.Model {
	return splitting.Model{Grid: grid, Cell: cell.NewPassive(), Mi: pde.Isotropic(sigma)}
}

func setCosine(c *state.Composite, grid *mesh.Grid) {
	for i := 0; i < grid.NumDofs(); i++ {
		c.SetV(i, math.Cos(math.Pi*grid.Coordinates(i).X))
	}
}

// exactAmplitude is the amplitude of the cos(pi x) mode of v at time t for
// the passive model on the semi-discrete grid.
func exactAmplitude(grid *mesh.Grid, t float64) float64 {
	h := grid.Hx()
	mu := 2 * sigma * (1 - math.Cos(math.Pi*h)) / (h * h)
	j := cell.NewPassive().Jacobian()
	a := mat.NewDense(2, 2, []float64{j[0][0] - mu, j[0][1], j[1][0], j[1][1]})
	a.Scale(t, a)
	var e mat.Dense
	e.Exp(a)
	return e.At(0, 0)
}

func splittingError(theta, dt float64) float64 {
	grid, err := mesh.NewInterval(11, 1)
	Expect(err).NotTo(HaveOccurred())

	cfg := splitting.DefaultConfig()
	cfg.Theta = theta
	cfg.ODE.Scheme = ode.RK4
	solver, err := splitting.New(passiveModel(grid), cfg)
	Expect(err).NotTo(HaveOccurred())
	setCosine(solver.SolutionFields().Previous, grid)

	run, err := solver.Solve(context.Background(), dynamo.Interval{T0: 0, T1: 1}, timestep.Constant(dt))
	Expect(err).NotTo(HaveOccurred())
	fields, err := run.Drain()
	Expect(err).NotTo(HaveOccurred())

	amp := exactAmplitude(grid, 1)
	worst := 0.0
	for i := 0; i < grid.NumDofs(); i++ {
		want := amp * math.Cos(math.Pi*grid.Coordinates(i).X)
		worst = math.Max(worst, math.Abs(fields.Current.V(i)-want))
	}
	return worst
}

var _ = Describe("Solver", func() {
	var grid *mesh.Grid

	BeforeEach(func() {
		var err error
		grid, err = mesh.NewInterval(11, 1)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("construction", func() {
		It("rejects theta outside [0, 1]", func() {
			cfg := splitting.DefaultConfig()
			cfg.Theta = 1.2
			_, err := splitting.New(passiveModel(grid), cfg)
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})

		It("rejects the average constraint for the monodomain", func() {
			m := passiveModel(grid)
			m.Constraint = true
			_, err := splitting.New(m, splitting.DefaultConfig())
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
		})

		It("starts from the cell model initial conditions in distinct buffers", func() {
			solver, err := splitting.New(passiveModel(grid), splitting.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			f := solver.SolutionFields()
			Expect(f.Previous).NotTo(BeIdenticalTo(f.Current))
			Expect(f.Previous.Values).To(Equal(f.Current.Values))
			f.Previous.Values[0] = 42
			Expect(f.Current.Values[0]).NotTo(Equal(42.0))
			Expect(f.PDE.NumDofs()).To(Equal(grid.NumDofs()))
		})

		It("validates the schedule before stepping", func() {
			solver, err := splitting.New(passiveModel(grid), splitting.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			setCosine(solver.SolutionFields().Previous, grid)
			before := solver.SolutionFields().Current.Clone()

			_, err = solver.Solve(context.Background(), dynamo.Interval{T0: 0, T1: 1}, timestep.Constant(0))
			Expect(err).To(MatchError(dynamo.ErrConfiguration))
			Expect(solver.SolutionFields().Current.Values).To(Equal(before.Values))
		})
	})

	Describe("a single step", func() {
		It("leaves the PDE potential equal to v only for theta = 1", func() {
			for _, theta := range []float64{1, 0.5} {
				cfg := splitting.DefaultConfig()
				cfg.Theta = theta
				solver, err := splitting.New(passiveModel(grid), cfg)
				Expect(err).NotTo(HaveOccurred())
				f := solver.SolutionFields()
				setCosine(f.Previous, grid)

				Expect(solver.Step(dynamo.Interval{T0: 0, T1: 0.1})).To(Succeed())

				v := make([]float64, grid.NumDofs())
				f.Current.Potential(v)
				if theta == 1 {
					Expect(f.PDE.V).To(Equal(v))
				} else {
					Expect(f.PDE.V).NotTo(Equal(v))
					Expect(f.Previous.Values).To(Equal(f.Current.Values))
				}
			}
		})

		It("merges idempotently", func() {
			solver, err := splitting.New(passiveModel(grid), splitting.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			f := solver.SolutionFields()
			setCosine(f.Previous, grid)
			Expect(solver.Step(dynamo.Interval{T0: 0, T1: 0.1})).To(Succeed())

			target := f.Current.Clone()
			Expect(solver.Merge(target)).To(Succeed())
			once := target.Clone()
			Expect(solver.Merge(target)).To(Succeed())
			Expect(target.Values).To(Equal(once.Values))
			Expect(target.Component(1)).To(Equal(f.Current.Component(1)))
		})

		It("routes the stimulus to exactly one sub-step", func() {
			for _, toPDE := range []bool{false, true} {
				cfg := splitting.DefaultConfig()
				cfg.Theta = 1
				cfg.StimulusToPDE = toPDE
				m := passiveModel(grid)
				m.Stimulus = stimulus.Constant(1)

				solver, err := splitting.New(m, cfg)
				Expect(err).NotTo(HaveOccurred())
				Expect(solver.Step(dynamo.Interval{T0: 0, T1: 0.01})).To(Succeed())
				Expect(solver.SolutionFields().Current.V(3)).To(BeNumerically("~", 0.01, 1e-4))
			}
		})
	})

	Describe("solve", func() {
		It("follows a variable schedule and notifies the observer", func() {
			var seen []dynamo.Interval
			cfg := splitting.DefaultConfig()
			cfg.Observer = sim.ObserverFunc[splitting.Fields](func(iv dynamo.Interval, _ splitting.Fields) {
				seen = append(seen, iv)
			})
			solver, err := splitting.New(passiveModel(grid), cfg)
			Expect(err).NotTo(HaveOccurred())

			sched := timestep.Variable(timestep.Switch{At: 0, Dt: 0.1}, timestep.Switch{At: 0.2, Dt: 0.05})
			run, err := solver.Solve(context.Background(), dynamo.Interval{T0: 0, T1: 0.3}, sched)
			Expect(err).NotTo(HaveOccurred())
			_, err = run.Drain()
			Expect(err).NotTo(HaveOccurred())

			Expect(seen).To(HaveLen(4))
			Expect(seen[2].T0).To(BeNumerically("~", 0.2, 1e-12))
			Expect(seen[3].T1).To(Equal(0.3))
			Expect(run.StepsTaken()).To(Equal(4))
		})

		It("advances previous to current only when the next step is requested", func() {
			cfg := splitting.DefaultConfig()
			cfg.Theta = 1
			solver, err := splitting.New(passiveModel(grid), cfg)
			Expect(err).NotTo(HaveOccurred())
			setCosine(solver.SolutionFields().Previous, grid)

			run, err := solver.Solve(context.Background(), dynamo.Interval{T0: 0, T1: 1}, timestep.Constant(0.25))
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Next()).To(BeTrue())
			f := run.Fields()
			Expect(f.Previous.Values).NotTo(Equal(f.Current.Values))

			first := f.Current.Clone()
			Expect(run.Next()).To(BeTrue())
			Expect(run.Interval()).To(Equal(dynamo.Interval{T0: 0.25, T1: 0.5}))
			Expect(f.Previous.Values).To(Equal(first.Values))
			Expect(f.Current.Values).NotTo(Equal(first.Values))
		})

		It("stops between steps when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			solver, err := splitting.New(passiveModel(grid), splitting.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			run, err := solver.Solve(ctx, dynamo.Interval{T0: 0, T1: 1}, timestep.Constant(0.1))
			Expect(err).NotTo(HaveOccurred())
			steps := 0
			for range run.Steps() {
				steps++
				if steps == 3 {
					cancel()
				}
			}
			Expect(steps).To(Equal(3))
			Expect(run.Err()).To(MatchError(context.Canceled))
		})

		DescribeTable("aborts with the failing phase",
			func(theta float64, phase string) {
				cfg := splitting.DefaultConfig()
				cfg.Theta = theta
				m := passiveModel(grid)
				m.Stimulus = stimulus.Func(func(t float64, _ mesh.Point) float64 {
					if t > 0.27 {
						return math.NaN()
					}
					return 0
				})
				solver, err := splitting.New(m, cfg)
				Expect(err).NotTo(HaveOccurred())

				run, err := solver.Solve(context.Background(), dynamo.Interval{T0: 0, T1: 1}, timestep.Constant(0.1))
				Expect(err).NotTo(HaveOccurred())
				_, err = run.Drain()

				var stepErr *dynamo.StepError
				Expect(err).To(BeAssignableToTypeOf(stepErr))
				Expect(err).To(MatchError(dynamo.ErrIntegrationDiverged))
				stepErr = err.(*dynamo.StepError)
				Expect(stepErr.Phase).To(Equal(phase))
				Expect(stepErr.Step).To(Equal(3))
				Expect(run.StepsTaken()).To(Equal(2))
				Expect(run.Interval().T1).To(BeNumerically("~", 0.2, 1e-12))
			},
			Entry("godunov", 1.0, splitting.PhaseTentativeODE),
			Entry("strang", 0.5, splitting.PhaseCorrectiveODE),
		)
	})

	Describe("order of accuracy", func() {
		order := func(theta float64) []float64 {
			dts := []float64{0.1, 0.05, 0.025}
			errs := make([]float64, len(dts))
			for i, dt := range dts {
				errs[i] = splittingError(theta, dt)
			}
			rates := make([]float64, len(dts)-1)
			for i := range rates {
				rates[i] = math.Log2(errs[i] / errs[i+1])
			}
			return rates
		}

		It("is first order for theta = 1", func() {
			for _, r := range order(1) {
				Expect(r).To(BeNumerically(">", 0.9))
			}
		})

		It("is second order for theta = 0.5", func() {
			for _, r := range order(0.5) {
				Expect(r).To(BeNumerically(">", 1.9))
			}
		})
	})

	Describe("homogeneous tissue", func() {
		It("reproduces the single cell solution", func() {
			const T, dt = 10.0, 1e-3
			stim := stimulus.Constant(100)

			single, err := cellsolver.New(cell.NewFitzHughNagumo(), stim, cellsolver.Config{Scheme: ode.RK4})
			Expect(err).NotTo(HaveOccurred())
			cellRun, err := single.Solve(context.Background(), dynamo.Interval{T0: 0, T1: T}, timestep.Constant(dt))
			Expect(err).NotTo(HaveOccurred())
			cellFields, err := cellRun.Drain()
			Expect(err).NotTo(HaveOccurred())

			square, err := mesh.NewRectangle(3, 3, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			cfg := splitting.DefaultConfig()
			cfg.Theta = 0.5
			cfg.PDE.Variant = pde.Optimized
			m := splitting.Model{
				Grid:       square,
				Cell:       cell.NewFitzHughNagumo(),
				Kind:       pde.Bidomain,
				Mi:         pde.Isotropic(1),
				Me:         pde.Isotropic(1),
				Stimulus:   stim,
				Constraint: true,
			}
			solver, err := splitting.New(m, cfg)
			Expect(err).NotTo(HaveOccurred())
			run, err := solver.Solve(context.Background(), dynamo.Interval{T0: 0, T1: T}, timestep.Constant(dt))
			Expect(err).NotTo(HaveOccurred())
			fields, err := run.Drain()
			Expect(err).NotTo(HaveOccurred())

			meanV := square.Integrate(fields.Current.Component(0))
			meanS := square.Integrate(fields.Current.Component(1))
			Expect(meanV).To(BeNumerically("~", cellFields.V(), 1e-3))
			Expect(meanS).To(BeNumerically("~", cellFields.Current.Node(0)[1], 1e-3))
		})
	})
})
