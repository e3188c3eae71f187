package timestep

import (
	"fmt"
	"math"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// Switch makes Dt the active step size from time At on.
type Switch struct {
	At float64 `yaml:"at" json:"at"`
	Dt float64 `yaml:"dt" json:"dt"`
}

// Schedule is an ordered list of step size switches.
type Schedule []Switch

// Constant returns a schedule using dt for all times.
func Constant(dt float64) Schedule {
	return Schedule{{At: math.Inf(-1), Dt: dt}}
}

// Variable returns a schedule from (switch time, dt) pairs.
func Variable(switches ...Switch) Schedule {
	return Schedule(switches)
}

// Validate checks step sizes are positive and switch times strictly increase.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty step schedule", dynamo.ErrConfiguration)
	}
	for i, sw := range s {
		if !(sw.Dt > 0) || math.IsInf(sw.Dt, 0) {
			return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrConfiguration, sw.Dt)
		}
		if math.IsNaN(sw.At) {
			return fmt.Errorf("%w: switch time %d is NaN", dynamo.ErrConfiguration, i)
		}
		if i > 0 && !(sw.At > s[i-1].At) {
			return fmt.Errorf("%w: switch times must be strictly increasing (%g after %g)",
				dynamo.ErrConfiguration, sw.At, s[i-1].At)
		}
	}
	return nil
}

// MinDt returns the smallest step size in the schedule.
func (s Schedule) MinDt() float64 {
	m := math.Inf(1)
	for _, sw := range s {
		m = math.Min(m, sw.Dt)
	}
	return m
}

// Scale returns a copy of s with every step size multiplied by f.
func (s Schedule) Scale(f float64) Schedule {
	out := make(Schedule, len(s))
	for i, sw := range s {
		out[i] = Switch{At: sw.At, Dt: sw.Dt * f}
	}
	return out
}
