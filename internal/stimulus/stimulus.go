// Package stimulus provides forcing terms evaluable at any time and point.
package stimulus

import (
	"math"

	"github.com/san-kum/beatsim/internal/mesh"
)

// Field is a time-varying, spatially varying forcing term.
type Field interface {
	Eval(t float64, p mesh.Point) float64
}

// Func adapts an ordinary function to Field.
type Func func(t float64, p mesh.Point) float64

func (f Func) Eval(t float64, p mesh.Point) float64 { return f(t, p) }

// Zero is the absent forcing term.
type Zero struct{}

func (Zero) Eval(float64, mesh.Point) float64 { return 0 }

// Constant is uniform in space and time.
type Constant float64

func (c Constant) Eval(float64, mesh.Point) float64 { return float64(c) }

// Pulse switches Amplitude on during [Start, Start+Duration), repeating
// every Period when Period > 0.
type Pulse struct {
	Amplitude float64
	Start     float64
	Duration  float64
	Period    float64
}

func (p Pulse) Active(t float64) bool {
	if t < p.Start {
		return false
	}
	phase := t - p.Start
	if p.Period > 0 {
		phase = math.Mod(phase, p.Period)
	}
	return phase < p.Duration
}

func (p Pulse) Eval(t float64, _ mesh.Point) float64 {
	if p.Active(t) {
		return p.Amplitude
	}
	return 0
}

// Region restricts an inner field to an axis-aligned box.
type Region struct {
	Min, Max mesh.Point
	Inner    Field
}

func (r Region) Contains(p mesh.Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

func (r Region) Eval(t float64, p mesh.Point) float64 {
	if !r.Contains(p) {
		return 0
	}
	return r.Inner.Eval(t, p)
}

// Sum adds several fields.
type Sum []Field

func (s Sum) Eval(t float64, p mesh.Point) float64 {
	v := 0.0
	for _, f := range s {
		v += f.Eval(t, p)
	}
	return v
}

// IsZero reports whether f is absent.
func IsZero(f Field) bool {
	if f == nil {
		return true
	}
	_, ok := f.(Zero)
	return ok
}
