package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCovModel(t *testing.T) {
	assert := assert.New(t)

	var c CovModel
	var e error

	c, e = ParseCovModel("exponential")
	assert.NoError(e)
	assert.Equal(Exponential, c)
	assert.Equal(2, c.NTheta())

	c, e = ParseCovModel(" Matern ")
	assert.NoError(e)
	assert.Equal(Matern, c)
	assert.Equal(3, c.NTheta())

	_, e = ParseCovModel("cubic")
	assert.Error(e)
}

func TestCorAtZero(t *testing.T) {
	assert := assert.New(t)

	bk := make([]float64, BesselKScratchLen(5.0))
	for _, m := range []CovModel{Exponential, Spherical, Gaussian, Matern} {
		assert.Equal(1.0, Cor(0.0, 3.0, 1.5, m, bk), "model %s", m)
	}
}

func TestCorFamilies(t *testing.T) {
	assert := assert.New(t)

	// Exponential and Gaussian against their closed forms.
	assert.InDelta(math.Exp(-2.0), Cor(1.0, 2.0, 0, Exponential, nil), 1e-14)
	assert.InDelta(math.Exp(-4.0), Cor(1.0, 2.0, 0, Gaussian, nil), 1e-14)

	// Spherical: polynomial inside the range, exactly zero beyond it.
	phi := 2.0
	d := 0.25
	want := 1.0 - 1.5*phi*d + 0.5*math.Pow(phi*d, 3)
	assert.InDelta(want, Cor(d, phi, 0, Spherical, nil), 1e-14)
	assert.Equal(0.0, Cor(0.51, phi, 0, Spherical, nil))
	assert.Equal(0.0, Cor(10.0, phi, 0, Spherical, nil))
}

func TestMaternHalfIntegerForms(t *testing.T) {
	assert := assert.New(t)

	bk := make([]float64, BesselKScratchLen(3.0))

	// nu = 1/2 collapses to the exponential model.
	for _, d := range []float64{0.1, 0.5, 1.0, 3.0} {
		assert.InDelta(math.Exp(-d*1.3), Cor(d, 1.3, 0.5, Matern, bk), 1e-10, "d=%v", d)
	}

	// nu = 3/2 has the closed form (1+x)exp(-x).
	for _, d := range []float64{0.1, 0.5, 1.0, 3.0} {
		x := d * 1.3
		assert.InDelta((1.0+x)*math.Exp(-x), Cor(d, 1.3, 1.5, Matern, bk), 1e-10, "d=%v", d)
	}
}

func TestBesselKKnownValues(t *testing.T) {
	assert := assert.New(t)

	bk := make([]float64, BesselKScratchLen(4.0))

	// Integer orders against tabulated values.
	assert.InDelta(0.42102443824070834, BesselK(0.0, 1.0, bk), 1e-12)
	assert.InDelta(0.6019072301972346, BesselK(1.0, 1.0, bk), 1e-12)
	assert.InDelta(1.6248388986351775, BesselK(2.0, 1.0, bk), 1e-11)
	assert.InDelta(2.4270690247020166, BesselK(0.0, 0.1, bk), 1e-12)

	// Half-integer orders have elementary closed forms.
	halfK := func(x float64) float64 { return math.Sqrt(math.Pi/(2.0*x)) * math.Exp(-x) }
	for _, x := range []float64{0.5, 1.0, 2.0, 5.0} {
		assert.InDelta(halfK(x), BesselK(0.5, x, bk), 1e-12, "K_0.5(%v)", x)
		assert.InDelta(halfK(x)*(1.0+1.0/x), BesselK(1.5, x, bk), 1e-11, "K_1.5(%v)", x)
		assert.InDelta(halfK(x)*(1.0+3.0/x+3.0/(x*x)), BesselK(2.5, x, bk), 1e-10, "K_2.5(%v)", x)
	}

	// Recurrence consistency: K_{n+1} = K_{n-1} + (2n/x) K_n.
	x := 1.7
	k0 := BesselK(0.3, x, bk)
	k1 := BesselK(1.3, x, bk)
	k2 := BesselK(2.3, x, bk)
	assert.InDelta(k0+2.0*1.3/x*k1, k2, 1e-10)

	// Invalid arguments.
	assert.True(math.IsNaN(BesselK(-1.0, 1.0, bk)))
	assert.True(math.IsNaN(BesselK(1.0, 0.0, bk)))
}
