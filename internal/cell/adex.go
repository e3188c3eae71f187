package cell

import "math"

// AdEx is the adaptive exponential integrate-and-fire neuron with one
// adaptation current w. Units: mV, ms, pF, nS, pA.
type AdEx struct {
	params
}

func NewAdEx() *AdEx {
	return &AdEx{params: params{
		"C":       281,   // membrane capacitance (pF)
		"g_L":     30,    // leak conductance (nS)
		"E_L":     -70.6, // leak reversal (mV)
		"V_T":     -50.4, // spike threshold (mV)
		"Delta_T": 2,     // slope factor (mV)
		"tau_w":   144,   // adaptation time constant (ms)
		"a":       4,     // subthreshold adaptation (nS)
		"spike":   20,    // reset threshold (mV)
		"b":       80.5,  // spike-triggered adaptation (pA)
	}}
}

func (m *AdEx) Name() string         { return "adex" }
func (m *AdEx) NumStates() int       { return 1 }
func (m *AdEx) StateNames() []string { return []string{"w"} }

func (m *AdEx) InitialConditions() []float64 {
	return []float64{m.params["E_L"], 0}
}

// Ion vanishes above the spike threshold so the exponential cannot overflow
// before Reset fires.
func (m *AdEx) Ion(v float64, s []float64, _ float64) float64 {
	p := m.params
	if v >= p["spike"] {
		return 0
	}
	gL := p["g_L"]
	i := (gL*p["Delta_T"]*math.Exp((v-p["V_T"])/p["Delta_T"]) - gL*(v-p["E_L"]) - s[0]) / p["C"]
	return -i
}

func (m *AdEx) StateRHS(ds []float64, v float64, s []float64, _ float64) {
	p := m.params
	ds[0] = (p["a"]*(v-p["E_L"]) - s[0]) / p["tau_w"]
}

// Reset applies the spike-and-reset rule: v -> E_L, w -> w + b.
func (m *AdEx) Reset(node []float64) bool {
	p := m.params
	if node[0] <= p["spike"] {
		return false
	}
	node[0] = p["E_L"]
	node[1] += p["b"]
	return true
}
