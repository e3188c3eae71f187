// Package mesh provides the degree-of-freedom layout shared by the ODE and
// PDE sub-solvers: a structured vertex-centred grid on an interval or a
// rectangle with pure Neumann boundaries.
//
// Each node owns a dual cell (half-width at the boundary). The lumped mass
// is the dual cell measure and the stiffness is the two-point flux
// approximation across dual cell faces, so every row of the stiffness sums
// to zero.
package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beatsim/internal/dynamo"
)

type Point struct {
	X, Y float64
}

// Grid is an Nx-by-Ny node lattice on [0, Lx] x [0, Ly]. Ny == 1 is a 1D
// interval.
type Grid struct {
	Nx, Ny int
	Lx, Ly float64
}

// NewInterval returns a 1D grid with n nodes on [0, length].
func NewInterval(n int, length float64) (*Grid, error) {
	return NewRectangle(n, 1, length, 0)
}

// NewRectangle returns a 2D grid with nx*ny nodes on [0, lx] x [0, ly].
func NewRectangle(nx, ny int, lx, ly float64) (*Grid, error) {
	g := &Grid{Nx: nx, Ny: ny, Lx: lx, Ly: ly}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grid) Validate() error {
	if g.Nx < 2 {
		return fmt.Errorf("%w: grid needs at least 2 nodes along x, got %d", dynamo.ErrConfiguration, g.Nx)
	}
	if g.Ny < 1 {
		return fmt.Errorf("%w: grid needs at least 1 node along y, got %d", dynamo.ErrConfiguration, g.Ny)
	}
	if !(g.Lx > 0) {
		return fmt.Errorf("%w: grid length must be positive, got %g", dynamo.ErrConfiguration, g.Lx)
	}
	if g.Ny > 1 && !(g.Ly > 0) {
		return fmt.Errorf("%w: grid height must be positive, got %g", dynamo.ErrConfiguration, g.Ly)
	}
	return nil
}

func (g *Grid) Dim() int {
	if g.Ny == 1 {
		return 1
	}
	return 2
}

func (g *Grid) NumDofs() int { return g.Nx * g.Ny }

func (g *Grid) Index(i, j int) int { return j*g.Nx + i }

func (g *Grid) Hx() float64 { return g.Lx / float64(g.Nx-1) }

func (g *Grid) Hy() float64 {
	if g.Ny == 1 {
		return 0
	}
	return g.Ly / float64(g.Ny-1)
}

func (g *Grid) Coordinates(k int) Point {
	i, j := k%g.Nx, k/g.Nx
	return Point{X: float64(i) * g.Hx(), Y: float64(j) * g.Hy()}
}

// Nearest returns the node closest to p.
func (g *Grid) Nearest(p Point) int {
	i := clampIndex(math.Round(p.X/g.Hx()), g.Nx)
	j := 0
	if g.Ny > 1 {
		j = clampIndex(math.Round(p.Y/g.Hy()), g.Ny)
	}
	return g.Index(i, j)
}

func clampIndex(x float64, n int) int {
	return int(math.Max(0, math.Min(float64(n-1), x)))
}

// dualWidth returns the dual cell width of node i among n nodes spaced h.
func dualWidth(i, n int, h float64) float64 {
	if n == 1 {
		return 1
	}
	if i == 0 || i == n-1 {
		return h / 2
	}
	return h
}

// LumpedMass returns the dual cell measure of every node.
func (g *Grid) LumpedMass() []float64 {
	m := make([]float64, g.NumDofs())
	hx, hy := g.Hx(), g.Hy()
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			m[g.Index(i, j)] = dualWidth(i, g.Nx, hx) * dualWidth(j, g.Ny, hy)
		}
	}
	return m
}

// Stiffness assembles the diffusion operator for conductivities sx, sy
// (sy is ignored on 1D grids). The result is symmetric positive
// semi-definite with the constants as its null space.
func (g *Grid) Stiffness(sx, sy float64) *mat.SymDense {
	n := g.NumDofs()
	k := mat.NewSymDense(n, nil)
	hx, hy := g.Hx(), g.Hy()

	couple := func(a, b int, c float64) {
		k.SetSym(a, a, k.At(a, a)+c)
		k.SetSym(b, b, k.At(b, b)+c)
		k.SetSym(a, b, k.At(a, b)-c)
	}

	for j := 0; j < g.Ny; j++ {
		face := dualWidth(j, g.Ny, hy)
		for i := 0; i+1 < g.Nx; i++ {
			couple(g.Index(i, j), g.Index(i+1, j), sx*face/hx)
		}
	}
	for i := 0; i < g.Nx && g.Ny > 1; i++ {
		face := dualWidth(i, g.Nx, hx)
		for j := 0; j+1 < g.Ny; j++ {
			couple(g.Index(i, j), g.Index(i, j+1), sy*face/hy)
		}
	}

	return k
}

// Integrate returns the mass-weighted sum of a nodal field.
func (g *Grid) Integrate(f []float64) float64 {
	sum := 0.0
	for k, m := range g.LumpedMass() {
		sum += m * f[k]
	}
	return sum
}
