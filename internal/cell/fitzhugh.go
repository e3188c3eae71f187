package cell

// FitzHughNagumo is the reparametrised FitzHugh-Nagumo model with one
// recovery variable, scaled to physiological potentials (mV, ms).
type FitzHughNagumo struct {
	params
}

func NewFitzHughNagumo() *FitzHughNagumo {
	return &FitzHughNagumo{params: params{
		"a":      0.13,
		"b":      0.013,
		"c1":     0.26,
		"c2":     0.1,
		"c3":     1.0,
		"v_peak": 40.0,
		"v_rest": -85.0,
	}}
}

func (m *FitzHughNagumo) Name() string         { return "fitzhugh_nagumo" }
func (m *FitzHughNagumo) NumStates() int       { return 1 }
func (m *FitzHughNagumo) StateNames() []string { return []string{"s"} }

func (m *FitzHughNagumo) InitialConditions() []float64 {
	return []float64{m.params["v_rest"], 0}
}

func (m *FitzHughNagumo) Ion(v float64, s []float64, _ float64) float64 {
	p := m.params
	vRest, vPeak := p["v_rest"], p["v_peak"]
	vAmp := vPeak - vRest
	vTh := vRest + p["a"]*vAmp

	i := p["c1"]/(vAmp*vAmp)*(v-vRest)*(v-vTh)*(vPeak-v) - p["c2"]/vAmp*(v-vRest)*s[0]
	return -i
}

func (m *FitzHughNagumo) StateRHS(ds []float64, v float64, s []float64, _ float64) {
	p := m.params
	ds[0] = p["b"] * (v - p["v_rest"] - p["c3"]*s[0])
}
