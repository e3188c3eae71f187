package state

// PotentialField holds the PDE unknowns: the transmembrane potential V and,
// for bidomain formulations, the extracellular potential U and the Lagrange
// multiplier enforcing a zero-average U.
type PotentialField struct {
	V             []float64
	U             []float64
	Lambda        float64
	HasMultiplier bool
}

// NewMonodomainField allocates a field with only the V component.
func NewMonodomainField(numDofs int) *PotentialField {
	return &PotentialField{V: make([]float64, numDofs)}
}

// NewBidomainField allocates V and U, and the multiplier when requested.
func NewBidomainField(numDofs int, multiplier bool) *PotentialField {
	return &PotentialField{
		V:             make([]float64, numDofs),
		U:             make([]float64, numDofs),
		HasMultiplier: multiplier,
	}
}

func (p *PotentialField) NumDofs() int { return len(p.V) }

func (p *PotentialField) Bidomain() bool { return p.U != nil }
