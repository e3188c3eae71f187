package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 integrates over the requested step with embedded Dormand-Prince
// sub-steps, shrinking and growing the sub-step to meet the tolerance.
type RK45 struct {
	AbsTol   float64
	RelTol   float64
	MinStep  float64
	MaxSteps int

	safety   float64
	minScale float64
	maxScale float64

	k        [7]dynamo.State
	stage    dynamo.State
	xNew     dynamo.State
	lastStep float64
}

func NewRK45() *RK45 {
	return &RK45{
		AbsTol:   1e-8,
		RelTol:   1e-6,
		MinStep:  1e-12,
		MaxSteps: 100000,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) ensureScratch(n int) {
	if len(r.stage) != n {
		for i := range r.k {
			r.k[i] = make(dynamo.State, n)
		}
		r.stage = make(dynamo.State, n)
		r.xNew = make(dynamo.State, n)
		r.lastStep = 0
	}
}

// Reset forgets the sub-step carried over from the previous call. Callers
// reusing one RK45 across independent systems reset it between them.
func (r *RK45) Reset() { r.lastStep = 0 }

func (r *RK45) Step(sys dynamo.System, x dynamo.State, t, dt float64) error {
	r.ensureScratch(len(x))

	tEnd := t + dt
	h := dt
	if r.lastStep > 0 && r.lastStep < h {
		h = r.lastStep
	}

	for steps := 0; t < tEnd; steps++ {
		if steps >= r.MaxSteps {
			return fmt.Errorf("%w: rk45 exceeded %d sub-steps", dynamo.ErrIntegrationDiverged, r.MaxSteps)
		}
		if h < r.MinStep {
			return fmt.Errorf("%w: rk45 sub-step %g below minimum %g", dynamo.ErrIntegrationDiverged, h, r.MinStep)
		}
		last := false
		if t+h >= tEnd-1e-12*math.Abs(dt) {
			h = tEnd - t
			last = true
		}

		errRatio := r.attempt(sys, x, t, h)
		if errRatio <= 1 && r.xNew.IsValid() {
			copy(x, r.xNew)
			if last {
				t = tEnd
			} else {
				t += h
				r.lastStep = h
			}
			h *= r.growth(errRatio)
			continue
		}
		if math.IsNaN(errRatio) || !r.xNew.IsValid() {
			h *= r.minScale
			continue
		}
		h *= math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	}

	return nil
}

func (r *RK45) growth(errRatio float64) float64 {
	if errRatio <= 0 {
		return r.maxScale
	}
	return math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
}

// attempt performs one Dormand-Prince step of size h into r.xNew and
// returns the scaled error estimate (<= 1 means acceptable).
func (r *RK45) attempt(sys dynamo.System, x dynamo.State, t, h float64) float64 {
	n := len(x)
	k1, k2, k3, k4, k5, k6, k7 := r.k[0], r.k[1], r.k[2], r.k[3], r.k[4], r.k[5], r.k[6]
	s := r.stage

	sys.Derive(k1, x, t)

	for i := 0; i < n; i++ {
		s[i] = x[i] + h*b21*k1[i]
	}
	sys.Derive(k2, s, t+a2*h)

	for i := 0; i < n; i++ {
		s[i] = x[i] + h*(b31*k1[i]+b32*k2[i])
	}
	sys.Derive(k3, s, t+a3*h)

	for i := 0; i < n; i++ {
		s[i] = x[i] + h*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	sys.Derive(k4, s, t+a4*h)

	for i := 0; i < n; i++ {
		s[i] = x[i] + h*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	sys.Derive(k5, s, t+a5*h)

	for i := 0; i < n; i++ {
		s[i] = x[i] + h*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	sys.Derive(k6, s, t+h)

	for i := 0; i < n; i++ {
		r.xNew[i] = x[i] + h*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	sys.Derive(k7, r.xNew, t+h)

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := r.AbsTol + r.RelTol*math.Max(math.Abs(x[i]), math.Abs(r.xNew[i]))
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	return errMax
}
