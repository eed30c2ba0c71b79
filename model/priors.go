package model

import (
	"github.com/pkg/errors"

	"github.com/spatialstats/occample/spatial"
)

// Priors collects every prior hyperparameter. Coefficient priors are normal
// with the given mean and covariance (covariance is inverted once at sampler
// setup). Range/smoothness parameters carry uniform bounds; sigmaSq is
// inverse gamma when SigmaSqIG is set, else uniform on its bounds and
// sampled by Metropolis alongside phi.
type Priors struct {
	MuBeta     []float64 `yaml:"muBeta"`
	SigmaBeta  []float64 `yaml:"sigmaBeta"` // pOcc x pOcc covariance, row-major
	MuAlpha    []float64 `yaml:"muAlpha"`
	SigmaAlpha []float64 `yaml:"sigmaAlpha"`

	PhiA float64 `yaml:"phiA"`
	PhiB float64 `yaml:"phiB"`
	NuA  float64 `yaml:"nuA"`
	NuB  float64 `yaml:"nuB"`

	SigmaSqIG bool    `yaml:"sigmaSqIG"`
	SigmaSqA  float64 `yaml:"sigmaSqA"` // IG shape, or lower bound
	SigmaSqB  float64 `yaml:"sigmaSqB"` // IG scale, or upper bound

	SigmaSqPsiA []float64 `yaml:"sigmaSqPsiA"` // IG shape per occupancy RE group
	SigmaSqPsiB []float64 `yaml:"sigmaSqPsiB"`
	SigmaSqPA   []float64 `yaml:"sigmaSqPA"` // IG shape per detection RE group
	SigmaSqPB   []float64 `yaml:"sigmaSqPB"`
}

// Check validates the priors against the data dimensions.
func (p *Priors) Check(d *OccData, cm spatial.CovModel) error {
	if len(p.MuBeta) != d.POcc || len(p.SigmaBeta) != d.POcc*d.POcc {
		return errors.Errorf("Occupancy coefficient prior sized %d/%d, want %d", len(p.MuBeta), len(p.SigmaBeta), d.POcc)
	}
	if len(p.MuAlpha) != d.PDet || len(p.SigmaAlpha) != d.PDet*d.PDet {
		return errors.Errorf("Detection coefficient prior sized %d/%d, want %d", len(p.MuAlpha), len(p.SigmaAlpha), d.PDet)
	}
	if p.PhiA <= 0 || p.PhiB <= p.PhiA {
		return errors.Errorf("Invalid phi bounds (%g, %g)", p.PhiA, p.PhiB)
	}
	if cm == spatial.Matern && (p.NuA <= 0 || p.NuB <= p.NuA) {
		return errors.Errorf("Invalid nu bounds (%g, %g)", p.NuA, p.NuB)
	}
	if p.SigmaSqIG {
		if p.SigmaSqA <= 0 || p.SigmaSqB <= 0 {
			return errors.Errorf("Invalid sigmaSq IG prior (%g, %g)", p.SigmaSqA, p.SigmaSqB)
		}
	} else if p.SigmaSqA <= 0 || p.SigmaSqB <= p.SigmaSqA {
		return errors.Errorf("Invalid sigmaSq bounds (%g, %g)", p.SigmaSqA, p.SigmaSqB)
	}
	if d.POccRE > 0 && (len(p.SigmaSqPsiA) != d.POccRE || len(p.SigmaSqPsiB) != d.POccRE) {
		return errors.Errorf("Occupancy RE variance prior needs %d groups", d.POccRE)
	}
	if d.PDetRE > 0 && (len(p.SigmaSqPA) != d.PDetRE || len(p.SigmaSqPB) != d.PDetRE) {
		return errors.Errorf("Detection RE variance prior needs %d groups", d.PDetRE)
	}
	return nil
}

// Inits are the starting values for every sampled quantity. Slices may be
// left nil to start at zero (or one for variances).
type Inits struct {
	Beta       []float64 `yaml:"beta"`
	Alpha      []float64 `yaml:"alpha"`
	Z          []float64 `yaml:"z"`
	W          []float64 `yaml:"w"`
	SigmaSq    float64   `yaml:"sigmaSq"`
	Phi        float64   `yaml:"phi"`
	Nu         float64   `yaml:"nu"`
	SigmaSqPsi []float64 `yaml:"sigmaSqPsi"`
	SigmaSqP   []float64 `yaml:"sigmaSqP"`
	BetaStar   []float64 `yaml:"betaStar"`
	AlphaStar  []float64 `yaml:"alphaStar"`
}

// FixedParams freezes individual parameter blocks, mainly for testing and
// ablation runs. A frozen block keeps its initial value for the whole chain.
type FixedParams struct {
	Beta       bool `yaml:"beta"`
	Alpha      bool `yaml:"alpha"`
	Theta      bool `yaml:"theta"` // phi (and nu) Metropolis block
	SigmaSq    bool `yaml:"sigmaSq"`
	SigmaSqPsi bool `yaml:"sigmaSqPsi"`
	SigmaSqP   bool `yaml:"sigmaSqP"`
}

// Tuning carries the initial log step sizes for the adaptive Metropolis
// proposals.
type Tuning struct {
	Phi     float64 `yaml:"phi"`
	Nu      float64 `yaml:"nu"`
	SigmaSq float64 `yaml:"sigmaSq"`
}

// RunConfig is everything about how to run the chains, as opposed to what
// model to fit.
type RunConfig struct {
	CovModel    string  `yaml:"covModel"`
	M           int     `yaml:"m"` // nearest neighbors
	NBatch      int     `yaml:"nBatch"`
	BatchLength int     `yaml:"batchLength"`
	NBurn       int     `yaml:"nBurn"`
	NThin       int     `yaml:"nThin"`
	AcceptRate  float64 `yaml:"acceptRate"`
	NThreads    int     `yaml:"nThreads"`
	NChains     int     `yaml:"nChains"`
	NReport     int     `yaml:"nReport"`
	Seed        int64   `yaml:"seed"`
	Verbose     bool    `yaml:"verbose"`

	Priors Priors      `yaml:"priors"`
	Inits  Inits       `yaml:"inits"`
	Tuning Tuning      `yaml:"tuning"`
	Fixed  FixedParams `yaml:"fixed"`

	// Parsed form of CovModel, filled in by Check.
	Cov spatial.CovModel `yaml:"-"`
}

// NSamples is the per-chain iteration count.
func (c *RunConfig) NSamples() int {
	return c.NBatch * c.BatchLength
}

// NPost is the per-chain retained draw count after burn-in and thinning.
func (c *RunConfig) NPost() int {
	return (c.NSamples() - c.NBurn) / c.NThin
}

// Check validates the run configuration and parses the covariance model tag.
func (c *RunConfig) Check(d *OccData) error {
	cov, err := spatial.ParseCovModel(c.CovModel)
	if err != nil {
		return err
	}
	c.Cov = cov

	if c.M < 0 || c.M >= d.J {
		return errors.Errorf("Neighbor count %d invalid for %d sites", c.M, d.J)
	}
	if c.NBatch < 1 || c.BatchLength < 1 {
		return errors.Errorf("Need at least 1 batch of length 1, got %d x %d", c.NBatch, c.BatchLength)
	}
	if c.NThin < 1 {
		c.NThin = 1
	}
	if c.NBurn < 0 || c.NBurn >= c.NSamples() {
		return errors.Errorf("Burn-in %d out of range for %d samples", c.NBurn, c.NSamples())
	}
	if c.AcceptRate <= 0 || c.AcceptRate >= 1 {
		return errors.Errorf("Target acceptance rate %g must be in (0,1)", c.AcceptRate)
	}
	if c.NChains < 1 {
		c.NChains = 1
	}
	if c.NThreads < 1 {
		c.NThreads = 1
	}
	if c.NReport < 1 {
		c.NReport = 100
	}
	if c.Seed == 0 {
		return errors.Errorf("A non-zero seed is required")
	}
	if err := c.Priors.Check(d, c.Cov); err != nil {
		return errors.Wrap(err, "Invalid priors")
	}

	if c.Inits.Phi <= c.Priors.PhiA || c.Inits.Phi >= c.Priors.PhiB {
		return errors.Errorf("Initial phi %g outside (%g, %g)", c.Inits.Phi, c.Priors.PhiA, c.Priors.PhiB)
	}
	if c.Cov == spatial.Matern && (c.Inits.Nu <= c.Priors.NuA || c.Inits.Nu >= c.Priors.NuB) {
		return errors.Errorf("Initial nu %g outside (%g, %g)", c.Inits.Nu, c.Priors.NuA, c.Priors.NuB)
	}
	if c.Inits.SigmaSq <= 0 {
		return errors.Errorf("Initial sigmaSq %g must be positive", c.Inits.SigmaSq)
	}

	return nil
}
