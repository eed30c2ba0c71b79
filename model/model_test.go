package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spatialstats/occample/spatial"
)

// binomialData builds a small valid binomial-shape dataset: one row per site
// with a visit count.
func binomialData() *OccData {
	return &OccData{
		Y:      []float64{1, 0, 2, 3},
		K:      []float64{3, 3, 3, 3},
		X:      []float64{1, 1, 1, 1},
		Xp:     []float64{1, 1, 1, 1},
		Coords: []spatial.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}},
		Site:   []int{0, 1, 2, 3},
		J:      4,
		NObs:   4,
		POcc:   1,
		PDet:   1,
	}
}

// bernoulliData builds a small valid ragged dataset: one row per visit.
func bernoulliData() *OccData {
	return &OccData{
		Y:      []float64{1, 0, 0, 0, 1, 1},
		X:      []float64{1, 1, 1},
		Xp:     []float64{1, 1, 1, 1, 1, 1},
		Coords: []spatial.Coord{{X: 0, Y: 0}, {X: 1, Y: 0.3}, {X: 0.2, Y: 1}},
		Site:   []int{0, 0, 1, 1, 2, 2},
		J:      3,
		NObs:   6,
		POcc:   1,
		PDet:   1,
	}
}

func TestOccDataCheck(t *testing.T) {
	assert := assert.New(t)

	d := binomialData()
	assert.NoError(d.Check())
	assert.True(d.BinomialShape())

	d = bernoulliData()
	assert.NoError(d.Check())
	assert.False(d.BinomialShape())
}

func TestOccDataCheckFailures(t *testing.T) {
	assert := assert.New(t)

	d := binomialData()
	d.J = 0
	assert.Error(d.Check())

	d = binomialData()
	d.Coords = d.Coords[:3]
	assert.Error(d.Check())

	d = binomialData()
	d.Site[2] = 9
	assert.Error(d.Check())

	d = binomialData()
	d.Y[3] = 4.0 // more detections than visits
	assert.Error(d.Check())

	d = binomialData()
	d.K = nil
	assert.Error(d.Check())

	d = bernoulliData()
	d.Y[0] = 2.0
	assert.Error(d.Check())

	d = bernoulliData()
	d.X = d.X[:2]
	assert.Error(d.Check())
}

func TestOccDataRandomEffects(t *testing.T) {
	assert := assert.New(t)

	d := bernoulliData()
	d.POccRE = 1
	d.XRE = []int{0, 1, 1}
	d.NOccRELong = []int{2}
	d.BetaLevelIndx = []int{0, 1}
	d.BetaStarIndx = []int{0, 0}
	assert.NoError(d.Check())
	assert.Equal(2, d.NOccRE())
	assert.Equal(0, d.NDetRE())

	d.XRE = d.XRE[:2]
	assert.Error(d.Check())
}

func validConfig() *RunConfig {
	return &RunConfig{
		CovModel:    "exponential",
		M:           2,
		NBatch:      4,
		BatchLength: 5,
		NBurn:       10,
		NThin:       2,
		AcceptRate:  0.43,
		NThreads:    1,
		NChains:     1,
		NReport:     100,
		Seed:        42,
		Priors: Priors{
			MuBeta:     []float64{0},
			SigmaBeta:  []float64{2.72},
			MuAlpha:    []float64{0},
			SigmaAlpha: []float64{2.72},
			PhiA:       0.1,
			PhiB:       10,
			SigmaSqIG:  true,
			SigmaSqA:   2,
			SigmaSqB:   1,
		},
		Inits: Inits{
			SigmaSq: 1,
			Phi:     1,
		},
		Tuning: Tuning{Phi: 0.5, Nu: 0.5, SigmaSq: 0.5},
	}
}

func TestRunConfigCheck(t *testing.T) {
	assert := assert.New(t)

	d := binomialData()

	c := validConfig()
	assert.NoError(c.Check(d))
	assert.Equal(spatial.Exponential, c.Cov)
	assert.Equal(20, c.NSamples())
	assert.Equal(5, c.NPost())

	c = validConfig()
	c.CovModel = "nope"
	assert.Error(c.Check(d))

	c = validConfig()
	c.M = 4 // as many neighbors as sites
	assert.Error(c.Check(d))

	c = validConfig()
	c.NBurn = 20
	assert.Error(c.Check(d))

	c = validConfig()
	c.Seed = 0
	assert.Error(c.Check(d))

	c = validConfig()
	c.Inits.Phi = 0.05 // below PhiA
	assert.Error(c.Check(d))

	c = validConfig()
	c.Inits.SigmaSq = 0
	assert.Error(c.Check(d))

	// Matern needs nu bounds and a valid initial nu.
	c = validConfig()
	c.CovModel = "matern"
	assert.Error(c.Check(d))
	c.Priors.NuA = 0.1
	c.Priors.NuB = 2.5
	c.Inits.Nu = 1.0
	assert.NoError(c.Check(d))
	assert.Equal(spatial.Matern, c.Cov)

	// Uniform sigmaSq prior needs ordered bounds.
	c = validConfig()
	c.Priors.SigmaSqIG = false
	c.Priors.SigmaSqA = 2
	c.Priors.SigmaSqB = 1
	assert.Error(c.Check(d))
	c.Priors.SigmaSqB = 5
	assert.NoError(c.Check(d))
}

func TestRunConfigDefaults(t *testing.T) {
	assert := assert.New(t)

	d := binomialData()
	c := validConfig()
	c.NThin = 0
	c.NChains = 0
	c.NThreads = 0
	c.NReport = 0
	assert.NoError(c.Check(d))
	assert.Equal(1, c.NThin)
	assert.Equal(1, c.NChains)
	assert.Equal(1, c.NThreads)
	assert.Equal(100, c.NReport)
}
