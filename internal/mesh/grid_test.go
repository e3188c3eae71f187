package mesh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/beatsim/internal/dynamo"
)

func TestLumpedMassSumsToMeasure(t *testing.T) {
	line, err := NewInterval(11, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sum(line.LumpedMass()), 1e-12)

	rect, err := NewRectangle(5, 4, 1.0, 3.0)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, sum(rect.LumpedMass()), 1e-12)
	assert.Equal(t, 2, rect.Dim())
	assert.Equal(t, 20, rect.NumDofs())
}

func TestStiffnessRowsSumToZero(t *testing.T) {
	g, err := NewRectangle(4, 3, 1.0, 1.0)
	require.NoError(t, err)
	k := g.Stiffness(0.5, 2.0)

	n := g.NumDofs()
	for i := 0; i < n; i++ {
		row := 0.0
		for j := 0; j < n; j++ {
			row += k.At(i, j)
			assert.Equal(t, k.At(i, j), k.At(j, i))
		}
		assert.InDelta(t, 0, row, 1e-12, "row %d", i)
		assert.Greater(t, k.At(i, i), 0.0)
	}
}

func TestNeumannCosineIsEigenvector(t *testing.T) {
	const n = 21
	g, err := NewInterval(n, 1.0)
	require.NoError(t, err)
	sigma := 0.3
	k := g.Stiffness(sigma, 0)
	m := g.LumpedMass()

	c := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		c.SetVec(i, math.Cos(math.Pi*g.Coordinates(i).X))
	}
	var kc mat.VecDense
	kc.MulVec(k, c)

	h := g.Hx()
	mu := 2 * sigma * (1 - math.Cos(math.Pi*h)) / (h * h)
	for i := 0; i < n; i++ {
		assert.InDelta(t, mu*c.AtVec(i), kc.AtVec(i)/m[i], 1e-10, "node %d", i)
	}
}

func TestNearestAndCoordinates(t *testing.T) {
	g, err := NewRectangle(3, 3, 2.0, 2.0)
	require.NoError(t, err)

	assert.Equal(t, Point{X: 1, Y: 2}, g.Coordinates(7))
	assert.Equal(t, 7, g.Nearest(Point{X: 0.9, Y: 1.8}))
	assert.Equal(t, 0, g.Nearest(Point{X: -5, Y: -5}))
	assert.Equal(t, 8, g.Nearest(Point{X: 10, Y: 10}))
}

func TestIntegrateConstant(t *testing.T) {
	g, err := NewInterval(7, 3.0)
	require.NoError(t, err)
	f := make([]float64, g.NumDofs())
	for i := range f {
		f[i] = 2
	}
	assert.InDelta(t, 6.0, g.Integrate(f), 1e-12)
}

func TestInvalidGrid(t *testing.T) {
	_, err := NewInterval(1, 1)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
	_, err = NewInterval(5, 0)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
	_, err = NewRectangle(5, 0, 1, 1)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
	_, err = NewRectangle(5, 5, 1, -1)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
