// Package splitting advances cardiac reaction-diffusion models with
// operator splitting.
//
// Each timestep (t0, t1) with t = t0 + theta*dt runs a tentative ODE step
// over (t0, t), a PDE step over (t0, t1) on the tentative potential, and
// either merges the PDE potential into the ODE state (theta == 1, Godunov)
// or commits the tentative state, merges the PDE potential into it and
// runs a corrective ODE step over (t, t1) (theta < 1, Strang for 0.5).
package splitting
