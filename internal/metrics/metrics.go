// Package metrics reduces a simulation to scalar summaries while it runs.
package metrics

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// Metric observes the transmembrane potential after every step.
type Metric interface {
	Name() string
	Observe(t float64, v []float64)
	Value() float64
	Reset()
}

// NotReached is reported by time metrics whose event never happened.
const NotReached = -1.0

// Activation records when v at one node first rises through a threshold.
type Activation struct {
	name      string
	dof       int
	threshold float64
	time      float64
	last      float64
	seen      bool
}

func NewActivation(name string, dof int, threshold float64) *Activation {
	return &Activation{name: name, dof: dof, threshold: threshold, time: NotReached}
}

func (a *Activation) Name() string { return a.name }

func (a *Activation) Observe(t float64, v []float64) {
	cur := v[a.dof]
	if a.time == NotReached && a.seen && a.last < a.threshold && cur >= a.threshold {
		a.time = t
	}
	a.last = cur
	a.seen = true
}

func (a *Activation) Value() float64 { return a.time }

func (a *Activation) Reset() {
	a.time = NotReached
	a.seen = false
}

// Peak is the largest potential seen anywhere.
type Peak struct {
	peak float64
}

func NewPeak() *Peak { return &Peak{peak: math.Inf(-1)} }

func (p *Peak) Name() string { return "peak_v" }

func (p *Peak) Observe(_ float64, v []float64) {
	p.peak = math.Max(p.peak, floats.Max(v))
}

func (p *Peak) Value() float64 {
	if math.IsInf(p.peak, -1) {
		return 0
	}
	return p.peak
}

func (p *Peak) Reset() { p.peak = math.Inf(-1) }

// Mean is the time average of the weighted spatial mean of v.
type Mean struct {
	weights []float64
	total   float64
	sum     float64
	samples int
}

// NewMean weighs nodes by weights (the lumped mass on a grid).
func NewMean(weights []float64) *Mean {
	return &Mean{weights: weights, total: floats.Sum(weights)}
}

func (m *Mean) Name() string { return "mean_v" }

func (m *Mean) Observe(_ float64, v []float64) {
	m.sum += floats.Dot(m.weights, v) / m.total
	m.samples++
}

func (m *Mean) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *Mean) Reset() {
	m.sum = 0
	m.samples = 0
}

// Velocity is the conduction velocity between two activation probes.
type Velocity struct {
	from, to *Activation
	distance float64
}

func NewVelocity(from, to *Activation, distance float64) *Velocity {
	return &Velocity{from: from, to: to, distance: distance}
}

func (c *Velocity) Name() string { return "conduction_velocity" }

// Observe is a no-op; the probes observe on their own.
func (c *Velocity) Observe(float64, []float64) {}

func (c *Velocity) Value() float64 {
	t0, t1 := c.from.Value(), c.to.Value()
	if t0 == NotReached || t1 == NotReached || t1 == t0 {
		return 0
	}
	return c.distance / (t1 - t0)
}

func (c *Velocity) Reset() {}

// Frequency is the dominant frequency of v at one node, read off the
// power spectrum of its mean-removed trace. Samples are treated as evenly
// spaced over the observed span.
type Frequency struct {
	name    string
	dof     int
	samples []float64
	t0, t1  float64
}

func NewFrequency(name string, dof int) *Frequency {
	return &Frequency{name: name, dof: dof}
}

func (f *Frequency) Name() string { return f.name }

func (f *Frequency) Observe(t float64, v []float64) {
	if len(f.samples) == 0 {
		f.t0 = t
	}
	f.t1 = t
	f.samples = append(f.samples, v[f.dof])
}

func (f *Frequency) Value() float64 {
	n := len(f.samples)
	if n < 4 || f.t1 <= f.t0 {
		return 0
	}

	mean := floats.Sum(f.samples) / float64(n)
	x := make([]float64, n)
	for i, s := range f.samples {
		x[i] = s - mean
	}

	spectrum := fft.FFTReal(x)
	bin, power := 0, 0.0
	for k := 1; k <= n/2; k++ {
		if p := cmplx.Abs(spectrum[k]); p > power {
			bin, power = k, p
		}
	}
	if bin == 0 {
		return 0
	}
	dt := (f.t1 - f.t0) / float64(n-1)
	return float64(bin) / (float64(n) * dt)
}

func (f *Frequency) Reset() { f.samples = f.samples[:0] }

// Collect returns the values of metrics by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
