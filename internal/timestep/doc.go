// Package timestep tiles a simulation interval into time sub-intervals.
//
// A [Schedule] lists the step sizes in effect from given switch times on;
// [Constant] builds the common single-step-size schedule. A [Stepper]
// produces the sub-intervals lazily:
//
//	st, err := timestep.New(dynamo.Interval{T0: 0, T1: 0.5}, timestep.Constant(0.1))
//	for iv := range st.All() {
//		// (0, 0.1), (0.1, 0.2), ... (0.4, 0.5)
//	}
//
// The final interval is clipped so it ends exactly at T1, and an interval
// that would cross a switch time is clipped to it, so each new step size
// takes effect at its declared time.
package timestep
