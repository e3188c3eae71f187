package timestep

import (
	"fmt"
	"iter"
	"math"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// absorb is the fraction of dt below which a remainder is merged into the
// preceding interval instead of producing a sliver.
const absorb = 1e-9

// Stepper produces the sub-intervals of one simulation interval. It is
// finite and cannot be restarted.
type Stepper struct {
	interval dynamo.Interval
	sched    Schedule

	active   int
	segStart float64
	k        int
	t0       float64
	done     bool
}

// New validates the interval and schedule and returns a stepper positioned
// at interval.T0.
func New(interval dynamo.Interval, sched Schedule) (*Stepper, error) {
	if !(interval.T0 < interval.T1) {
		return nil, fmt.Errorf("%w: interval start %g must precede end %g",
			dynamo.ErrConfiguration, interval.T0, interval.T1)
	}
	if math.IsInf(interval.T0, 0) || math.IsInf(interval.T1, 0) {
		return nil, fmt.Errorf("%w: interval %v is unbounded", dynamo.ErrConfiguration, interval)
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}

	active := -1
	for i, sw := range sched {
		if sw.At <= interval.T0+absorb*sw.Dt {
			active = i
		}
	}
	if active < 0 {
		return nil, fmt.Errorf("%w: no step size active at t=%g (first switch at %g)",
			dynamo.ErrConfiguration, interval.T0, sched[0].At)
	}

	return &Stepper{
		interval: interval,
		sched:    sched,
		active:   active,
		segStart: interval.T0,
		t0:       interval.T0,
	}, nil
}

// Dt returns the step size currently in effect.
func (s *Stepper) Dt() float64 {
	return s.sched[s.active].Dt
}

// Next returns the next sub-interval, or false once T1 has been reached.
func (s *Stepper) Next() (dynamo.Interval, bool) {
	if s.done {
		return dynamo.Interval{}, false
	}

	dt := s.sched[s.active].Dt
	eps := absorb * dt
	t1 := s.segStart + float64(s.k+1)*dt

	switched := false
	if s.active+1 < len(s.sched) {
		if next := s.sched[s.active+1].At; t1 >= next-eps {
			t1 = next
			switched = true
		}
	}
	if t1 >= s.interval.T1-eps {
		t1 = s.interval.T1
		s.done = true
		switched = false
	}

	iv := dynamo.Interval{T0: s.t0, T1: t1}
	s.t0 = t1

	if switched {
		s.active++
		s.segStart = t1
		s.k = 0
	} else {
		s.k++
	}

	return iv, true
}

// All ranges over the remaining sub-intervals.
func (s *Stepper) All() iter.Seq[dynamo.Interval] {
	return func(yield func(dynamo.Interval) bool) {
		for {
			iv, ok := s.Next()
			if !ok || !yield(iv) {
				return
			}
		}
	}
}

// Count returns how many sub-intervals the schedule produces on interval.
func Count(interval dynamo.Interval, sched Schedule) (int, error) {
	st, err := New(interval, sched)
	if err != nil {
		return 0, err
	}
	n := 0
	for range st.All() {
		n++
	}
	return n, nil
}
