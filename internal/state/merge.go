package state

import (
	"fmt"

	"github.com/san-kum/beatsim/internal/dynamo"
)

// Merger assigns the PDE potential to the v component of composite fields.
// It is a node-by-node assignment, never an interpolation, so both sides
// must describe the same degrees of freedom in the same order.
type Merger struct {
	layout Layout
}

// NewMerger checks that a composite layout and a PDE field of srcDofs
// degrees of freedom correspond.
func NewMerger(dst Layout, srcDofs int) (*Merger, error) {
	if err := dst.Validate(); err != nil {
		return nil, err
	}
	if dst.NumDofs != srcDofs {
		return nil, fmt.Errorf("%w: composite has %d dofs, potential field has %d",
			dynamo.ErrLayoutMismatch, dst.NumDofs, srcDofs)
	}
	return &Merger{layout: dst}, nil
}

// Merge overwrites the v component of target with src.V and leaves every
// state variable of target untouched. Calling it twice with an unchanged
// src is a no-op the second time.
func (m *Merger) Merge(target *Composite, src *PotentialField) error {
	if target.Layout != m.layout {
		return fmt.Errorf("%w: merge target %+v, merger built for %+v",
			dynamo.ErrLayoutMismatch, target.Layout, m.layout)
	}
	if len(src.V) != m.layout.NumDofs {
		return fmt.Errorf("%w: merge source has %d dofs, want %d",
			dynamo.ErrLayoutMismatch, len(src.V), m.layout.NumDofs)
	}

	stride := m.layout.Stride()
	for i, v := range src.V {
		target.Values[i*stride] = v
	}
	return nil
}
