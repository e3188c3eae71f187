// Package state holds the solution fields of the splitting solver and the
// merger that reconciles them.
//
// A [Composite] stores, per degree of freedom, the transmembrane potential v
// followed by the cell model state variables, interleaved as
// (v_0, s_0..., v_1, s_1..., ...). A [PotentialField] stores the PDE
// unknowns in their own layout. [Merger] copies the PDE potential into the
// v slots of a composite without touching the state variables.
package state

import (
	"fmt"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// Layout is the structure of a composite field.
type Layout struct {
	NumDofs   int
	NumStates int
}

// Stride is the number of values stored per degree of freedom.
func (l Layout) Stride() int { return 1 + l.NumStates }

func (l Layout) Size() int { return l.NumDofs * l.Stride() }

func (l Layout) Validate() error {
	if l.NumDofs < 1 || l.NumStates < 0 {
		return fmt.Errorf("%w: invalid layout %d dofs x %d states", dynamo.ErrConfiguration, l.NumDofs, l.NumStates)
	}
	return nil
}

// Composite is the ODE state: potential plus cell state at every node.
type Composite struct {
	Layout Layout
	Values []float64
}

func NewComposite(l Layout) *Composite {
	return &Composite{Layout: l, Values: make([]float64, l.Size())}
}

// V returns the potential at dof i.
func (c *Composite) V(i int) float64 { return c.Values[i*c.Layout.Stride()] }

func (c *Composite) SetV(i int, v float64) { c.Values[i*c.Layout.Stride()] = v }

// Node returns the (v, s...) slice of dof i, aliasing Values.
func (c *Composite) Node(i int) []float64 {
	s := c.Layout.Stride()
	return c.Values[i*s : (i+1)*s : (i+1)*s]
}

// Potential copies the v component into dst, which must hold NumDofs values.
func (c *Composite) Potential(dst []float64) {
	s := c.Layout.Stride()
	for i := range dst {
		dst[i] = c.Values[i*s]
	}
}

// Component copies state variable k (0 is v) of every dof into a new slice.
func (c *Composite) Component(k int) []float64 {
	s := c.Layout.Stride()
	out := make([]float64, c.Layout.NumDofs)
	for i := range out {
		out[i] = c.Values[i*s+k]
	}
	return out
}

// Fill sets every node to the same (v, s...) values.
func (c *Composite) Fill(node []float64) error {
	if len(node) != c.Layout.Stride() {
		return fmt.Errorf("%w: node has %d values, layout stride is %d", dynamo.ErrLayoutMismatch, len(node), c.Layout.Stride())
	}
	for i := 0; i < c.Layout.NumDofs; i++ {
		copy(c.Node(i), node)
	}
	return nil
}

// CopyFrom assigns src to c. Both must share the same layout and distinct
// storage.
func (c *Composite) CopyFrom(src *Composite) error {
	if c.Layout != src.Layout {
		return fmt.Errorf("%w: assign %+v into %+v", dynamo.ErrLayoutMismatch, src.Layout, c.Layout)
	}
	copy(c.Values, src.Values)
	return nil
}

func (c *Composite) Clone() *Composite {
	out := NewComposite(c.Layout)
	copy(out.Values, c.Values)
	return out
}

// Valid reports whether every value is finite.
func (c *Composite) Valid() bool {
	return dynamo.State(c.Values).IsValid()
}
