package cell

// Passive is a linear membrane with one linearly coupled state variable:
//
//	Ion = g*(v - E) - k*s
//	ds/dt = alpha*(v - E) - beta*s
//
// Its exact solution makes it the reference problem for splitting accuracy.
type Passive struct {
	params
}

func NewPassive() *Passive {
	return &Passive{params: params{
		"g":     1.0,
		"E":     0.0,
		"k":     0.5,
		"alpha": 0.5,
		"beta":  1.0,
		"v0":    0.0,
	}}
}

func (m *Passive) Name() string         { return "passive" }
func (m *Passive) NumStates() int       { return 1 }
func (m *Passive) StateNames() []string { return []string{"s"} }

func (m *Passive) InitialConditions() []float64 {
	return []float64{m.params["v0"], 0}
}

func (m *Passive) Ion(v float64, s []float64, _ float64) float64 {
	p := m.params
	return p["g"]*(v-p["E"]) - p["k"]*s[0]
}

func (m *Passive) StateRHS(ds []float64, v float64, s []float64, _ float64) {
	p := m.params
	ds[0] = p["alpha"]*(v-p["E"]) - p["beta"]*s[0]
}

// Jacobian returns the constant system matrix of (v, s) without stimulus.
func (m *Passive) Jacobian() [2][2]float64 {
	p := m.params
	return [2][2]float64{
		{-p["g"], p["k"]},
		{p["alpha"], -p["beta"]},
	}
}
