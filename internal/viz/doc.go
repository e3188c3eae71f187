// Package viz renders simulations in the terminal.
//
// [Model] is a Bubble Tea program that advances an experiment a few steps
// per frame and draws the transmembrane potential: a braille line plot of
// v(x) on 1D grids, a shaded map on 2D grids, and the trace of the first
// probe.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	+/-   - More/fewer steps per frame
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
