// Package spatial implements the spatial side of the occupancy sampler: the
// parametric correlation kernels, the fixed nearest-neighbor graph, and the
// NNGP sparse-precision factors built from them.
package spatial

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// CovModel selects the parametric correlation family.
type CovModel int

// The supported correlation families.
const (
	Exponential CovModel = iota
	Spherical
	Gaussian
	Matern
)

var covModelNames = []string{"exponential", "spherical", "gaussian", "matern"}

func (c CovModel) String() string {
	if c < Exponential || c > Matern {
		return "unknown"
	}
	return covModelNames[c]
}

// ParseCovModel maps a config string to a CovModel.
func ParseCovModel(name string) (CovModel, error) {
	for i, n := range covModelNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return CovModel(i), nil
		}
	}
	return Exponential, errors.Errorf("Unknown correlation model %q", name)
}

// NTheta is the number of continuous spatial covariance parameters the model
// carries: sigmaSq and phi always, plus nu for the Matern family.
func (c CovModel) NTheta() int {
	if c == Matern {
		return 3
	}
	return 2
}

// Coord is a site location.
type Coord struct {
	X float64
	Y float64
}

// Dist returns the Euclidean distance between two coordinates.
func Dist(a Coord, b Coord) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Cor evaluates the correlation at distance d for the given family. phi is
// the decay/range parameter and nu the Matern smoothness (ignored
// elsewhere). bk is the Bessel scratch required by the Matern family; it may
// be nil for the other families. Cor(0, ...) is 1 for every family.
func Cor(d float64, phi float64, nu float64, model CovModel, bk []float64) float64 {
	switch model {
	case Exponential:
		return math.Exp(-d * phi)
	case Gaussian:
		return math.Exp(-(d * phi) * (d * phi))
	case Spherical:
		if d > 0 && d <= 1.0/phi {
			pd := phi * d
			return 1.0 - 1.5*pd + 0.5*pd*pd*pd
		}
		if d >= 1.0/phi {
			return 0.0
		}
		return 1.0
	case Matern:
		dp := d * phi
		if dp <= 0 {
			return 1.0
		}
		return math.Pow(dp, nu) / (math.Pow(2.0, nu-1.0) * math.Gamma(nu)) * BesselK(nu, dp, bk)
	}
	return math.NaN()
}
