package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MaxAbs returns the infinity norm of s.
func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// System is a pointwise ODE right-hand side. Derive writes f(x, t) into dx.
type System interface {
	Derive(dx, x State, t float64)
	Dim() int
}

// Integrator advances x in place from t to t+dt.
type Integrator interface {
	Step(sys System, x State, t, dt float64) error
}

// Interval is one time sub-interval (T0, T1) with T0 < T1.
type Interval struct {
	T0, T1 float64
}

func (iv Interval) Dt() float64 { return iv.T1 - iv.T0 }

// At returns T0 + theta*(T1-T0).
func (iv Interval) At(theta float64) float64 {
	return iv.T0 + theta*iv.Dt()
}

func (iv Interval) String() string {
	return fmt.Sprintf("(%g, %g)", iv.T0, iv.T1)
}
