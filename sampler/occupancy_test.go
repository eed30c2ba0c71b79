package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spatialstats/occample/model"
	"github.com/spatialstats/occample/rand"
	"github.com/spatialstats/occample/spatial"
)

func occCoords(j int) []spatial.Coord {
	coords := make([]spatial.Coord, j)
	for i := 0; i < j; i++ {
		coords[i] = spatial.Coord{X: float64(i) * 0.9, Y: float64(i%4) * 0.41}
	}
	return coords
}

// occBinomialData builds binomial-shape test data: one row per site, two
// visits each, detections at every third site.
func occBinomialData(j int) *model.OccData {
	d := &model.OccData{
		Y:      make([]float64, j),
		K:      make([]float64, j),
		X:      make([]float64, j),
		Xp:     make([]float64, j),
		Coords: occCoords(j),
		Site:   make([]int, j),
		J:      j,
		NObs:   j,
		POcc:   1,
		PDet:   1,
	}
	for i := 0; i < j; i++ {
		d.K[i] = 2
		d.X[i] = 1
		d.Xp[i] = 1
		d.Site[i] = i
		if i%3 == 0 {
			d.Y[i] = 1
		}
	}
	return d
}

// occBernoulliData builds ragged test data: visits rows per site.
func occBernoulliData(j, visits int) *model.OccData {
	n := j * visits
	d := &model.OccData{
		Y:      make([]float64, n),
		X:      make([]float64, j),
		Xp:     make([]float64, n),
		Coords: occCoords(j),
		Site:   make([]int, n),
		J:      j,
		NObs:   n,
		POcc:   1,
		PDet:   1,
	}
	for s := 0; s < j; s++ {
		d.X[s] = 1
	}
	for i := 0; i < n; i++ {
		d.Xp[i] = 1
		d.Site[i] = i / visits
		if d.Site[i]%3 == 0 && i%visits == 0 {
			d.Y[i] = 1
		}
	}
	return d
}

func occConfig(t *testing.T, d *model.OccData) *model.RunConfig {
	t.Helper()
	cfg := &model.RunConfig{
		CovModel:    "exponential",
		M:           3,
		NBatch:      2,
		BatchLength: 5,
		NBurn:       0,
		NThin:       1,
		AcceptRate:  0.43,
		NThreads:    2,
		NChains:     1,
		NReport:     100,
		Seed:        42,
		Priors: model.Priors{
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
		Inits:  model.Inits{SigmaSq: 1, Phi: 1},
		Tuning: model.Tuning{Phi: 0.5, Nu: 0.5, SigmaSq: 0.5},
	}
	return cfg
}

func newOccSampler(t *testing.T, d *model.OccData, cfg *model.RunConfig, seed int64) *SpatialOcc {
	t.Helper()
	assert.NoError(t, d.Check())
	assert.NoError(t, cfg.Check(d))
	gen, err := rand.NewGenerator(seed)
	assert.NoError(t, err)
	graph, err := spatial.BuildNeighborGraph(d.Coords, cfg.M)
	assert.NoError(t, err)
	s, err := NewSpatialOcc(d, cfg, graph, gen)
	assert.NoError(t, err)
	return s
}

func TestNThetaByFamily(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(10)

	s := newOccSampler(t, d, occConfig(t, d), 42)
	assert.Equal(2, s.NTheta())
	assert.Len(s.Theta(), 2)

	cfg := occConfig(t, d)
	cfg.CovModel = "matern"
	cfg.Priors.NuA = 0.1
	cfg.Priors.NuB = 2.5
	cfg.Inits.Nu = 1.0
	assert.NoError(cfg.Check(d))
	s = newOccSampler(t, d, cfg, 42)
	assert.Equal(3, s.NTheta())
	assert.Len(s.Theta(), 3)
	assert.Equal(1.0, s.Theta()[nuIndx])
}

func TestStepDeterminism(t *testing.T) {
	assert := assert.New(t)

	d1 := occBinomialData(12)
	d2 := occBinomialData(12)
	s1 := newOccSampler(t, d1, occConfig(t, d1), 777)
	s2 := newOccSampler(t, d2, occConfig(t, d2), 777)

	for i := 0; i < 10; i++ {
		assert.NoError(s1.Step())
		assert.NoError(s2.Step())
	}
	assert.Equal(s1.beta, s2.beta)
	assert.Equal(s1.alpha, s2.alpha)
	assert.Equal(s1.w, s2.w)
	assert.Equal(s1.z, s2.z)
	assert.Equal(s1.theta, s2.theta)
}

func TestFixedTheta(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(12)
	cfg := occConfig(t, d)
	cfg.Fixed.Theta = true
	cfg.Fixed.SigmaSq = true
	s := newOccSampler(t, d, cfg, 42)

	want := snapshot(s.Theta())
	beta0 := snapshot(s.beta)
	for i := 0; i < 10; i++ {
		assert.NoError(s.Step())
	}
	assert.Equal(want, s.Theta())
	assert.NotEqual(beta0, s.beta)
}

func TestFixedCoefficients(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(12)
	cfg := occConfig(t, d)
	cfg.Fixed.Beta = true
	cfg.Fixed.Alpha = true
	cfg.Inits.Beta = []float64{0.3}
	cfg.Inits.Alpha = []float64{-0.2}
	s := newOccSampler(t, d, cfg, 42)

	for i := 0; i < 5; i++ {
		assert.NoError(s.Step())
	}
	assert.Equal([]float64{0.3}, s.beta)
	assert.Equal([]float64{-0.2}, s.alpha)
}

func TestSigmaSqConjugateMoves(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(12)
	s := newOccSampler(t, d, occConfig(t, d), 42)

	prev := s.Theta()[sigmaSqIndx]
	for i := 0; i < 5; i++ {
		assert.NoError(s.Step())
		cur := s.Theta()[sigmaSqIndx]
		assert.Greater(cur, 0.0)
		assert.NotEqual(prev, cur)
		prev = cur
	}
}

func TestForcedOccupancy(t *testing.T) {
	assert := assert.New(t)

	// Sites with a detection are occupied with certainty at every iteration.
	d := occBernoulliData(9, 3)
	s := newOccSampler(t, d, occConfig(t, d), 99)

	detected := map[int]bool{}
	for i, y := range d.Y {
		if y > 0 {
			detected[d.Site[i]] = true
		}
	}
	assert.NotEmpty(detected)

	for i := 0; i < 20; i++ {
		assert.NoError(s.Step())
		for j := range detected {
			assert.Equal(1.0, s.z[j], "iteration %d site %d", i, j)
		}
	}
}

func TestPsiAndLikeRanges(t *testing.T) {
	assert := assert.New(t)

	d := occBernoulliData(9, 3)
	s := newOccSampler(t, d, occConfig(t, d), 123)

	for i := 0; i < 10; i++ {
		assert.NoError(s.Step())
	}
	for j := 0; j < d.J; j++ {
		assert.True(s.psi[j] > 0.0 && s.psi[j] < 1.0, "psi[%d]=%v", j, s.psi[j])
		assert.True(s.yWAIC[j] > 0.0 && s.yWAIC[j] <= 1.0, "like[%d]=%v", j, s.yWAIC[j])
		// Accumulators are reset at the end of every iteration.
		assert.Equal(1.0, s.piProd[j])
		assert.Equal(1.0, s.piProdWAIC[j])
		assert.Equal(0.0, s.ySum[j])
	}
}

func TestBinomialBernoulliAgreement(t *testing.T) {
	assert := assert.New(t)

	// With a single visit per site the binomial and Bernoulli bookkeeping
	// collapse to the same arithmetic and the same draw sequence, so two
	// identically seeded samplers stay in lockstep when one is forced down
	// the other branch.
	mk := func() *model.OccData {
		d := occBinomialData(10)
		for i := range d.K {
			d.K[i] = 1
		}
		return d
	}
	d1 := mk()
	d2 := mk()
	s1 := newOccSampler(t, d1, occConfig(t, d1), 555)
	s2 := newOccSampler(t, d2, occConfig(t, d2), 555)

	assert.True(s1.binomial)
	s2.binomial = false

	for i := 0; i < 15; i++ {
		assert.NoError(s1.Step())
		assert.NoError(s2.Step())
	}
	assert.Equal(s1.beta, s2.beta)
	assert.Equal(s1.alpha, s2.alpha)
	assert.Equal(s1.w, s2.w)
	assert.Equal(s1.z, s2.z)
	assert.Equal(s1.theta, s2.theta)
	assert.Equal(s1.yWAIC, s2.yWAIC)
}

func TestRecordCopies(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(10)
	s := newOccSampler(t, d, occConfig(t, d), 42)
	assert.NoError(s.Step())

	st := NewSamples(2, 2)
	s.Record(st)
	assert.Equal(1, st.NPost())

	before := snapshot(st.Beta[0])
	assert.NoError(s.Step())
	assert.Equal(before, st.Beta[0])

	// No random effects in this data: the RE blocks stay empty.
	assert.Empty(st.SigmaSqPsi)
	assert.Empty(st.SigmaSqP)
}

func TestRandomEffects(t *testing.T) {
	assert := assert.New(t)

	d := occBernoulliData(10, 2)

	// One occupancy RE group with two levels (odd/even sites) and one
	// detection RE group with two levels (first/second visit).
	d.POccRE = 1
	d.XRE = make([]int, d.J)
	for j := 0; j < d.J; j++ {
		d.XRE[j] = j % 2
	}
	d.NOccRELong = []int{2}
	d.BetaLevelIndx = []int{0, 1}
	d.BetaStarIndx = []int{0, 0}

	d.PDetRE = 1
	d.XpRE = make([]int, d.NObs)
	for i := 0; i < d.NObs; i++ {
		d.XpRE[i] = i % 2
	}
	d.NDetRELong = []int{2}
	d.AlphaLevelIndx = []int{0, 1}
	d.AlphaStarIndx = []int{0, 0}

	cfg := occConfig(t, d)
	cfg.Priors.SigmaSqPsiA = []float64{2}
	cfg.Priors.SigmaSqPsiB = []float64{1}
	cfg.Priors.SigmaSqPA = []float64{2}
	cfg.Priors.SigmaSqPB = []float64{1}
	assert.NoError(cfg.Check(d))

	s := newOccSampler(t, d, cfg, 42)
	for i := 0; i < 10; i++ {
		assert.NoError(s.Step())
	}

	assert.Len(s.betaStar, 2)
	assert.Len(s.alphaStar, 2)
	for _, v := range s.sigmaSqPsi {
		assert.Greater(v, 0.0)
	}
	for _, v := range s.sigmaSqP {
		assert.Greater(v, 0.0)
	}

	// Cached per-unit sums track the level values.
	for j := 0; j < d.J; j++ {
		assert.InDelta(s.betaStar[s.betaStarLong[j]], s.betaStarSites[j], 1e-14)
	}

	st := NewSamples(2, 2)
	s.Record(st)
	assert.Len(st.SigmaSqPsi, 1)
	assert.Len(st.BetaStar, 1)
	assert.Len(st.SigmaSqP, 1)
	assert.Len(st.AlphaStar, 1)
}

func TestUnknownRELevel(t *testing.T) {
	assert := assert.New(t)

	d := occBernoulliData(6, 2)
	d.POccRE = 1
	d.XRE = make([]int, d.J)
	d.XRE[3] = 7 // no such level
	d.NOccRELong = []int{1}
	d.BetaLevelIndx = []int{0}
	d.BetaStarIndx = []int{0}

	cfg := occConfig(t, d)
	cfg.Priors.SigmaSqPsiA = []float64{2}
	cfg.Priors.SigmaSqPsiB = []float64{1}
	assert.NoError(cfg.Check(d))

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)
	graph, err := spatial.BuildNeighborGraph(d.Coords, cfg.M)
	assert.NoError(err)
	_, err = NewSpatialOcc(d, cfg, graph, gen)
	assert.Error(err)
}

func TestGraphMismatch(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(10)
	cfg := occConfig(t, d)
	gen, err := rand.NewGenerator(42)
	assert.NoError(err)
	graph, err := spatial.BuildNeighborGraph(occCoords(8), cfg.M)
	assert.NoError(err)
	_, err = NewSpatialOcc(d, cfg, graph, gen)
	assert.Error(err)
}

func TestMaternSmoke(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(12)
	cfg := occConfig(t, d)
	cfg.CovModel = "matern"
	cfg.Priors.NuA = 0.1
	cfg.Priors.NuB = 2.5
	cfg.Inits.Nu = 1.0
	assert.NoError(cfg.Check(d))

	s := newOccSampler(t, d, cfg, 42)
	for i := 0; i < 10; i++ {
		assert.NoError(s.Step())
	}
	nu := s.Theta()[nuIndx]
	assert.True(nu > cfg.Priors.NuA && nu < cfg.Priors.NuB)
	phi := s.Theta()[phiIndx]
	assert.True(phi > cfg.Priors.PhiA && phi < cfg.Priors.PhiB)
}

func TestUniformSigmaSqMetropolis(t *testing.T) {
	assert := assert.New(t)

	d := occBinomialData(12)
	cfg := occConfig(t, d)
	cfg.Priors.SigmaSqIG = false
	cfg.Priors.SigmaSqA = 0.1
	cfg.Priors.SigmaSqB = 5
	assert.NoError(cfg.Check(d))

	s := newOccSampler(t, d, cfg, 42)
	for i := 0; i < 20; i++ {
		assert.NoError(s.Step())
		ss := s.Theta()[sigmaSqIndx]
		assert.True(ss > 0.1 && ss < 5.0, "sigmaSq %v escaped its bounds", ss)
	}
}
