// Package model holds the occupancy data model, priors, initial values, and
// run configuration consumed by the samplers, plus the readers that load
// them from disk.
package model

import (
	"github.com/pkg/errors"

	"github.com/spatialstats/occample/spatial"
)

// OccData is the site-by-visit detection/non-detection dataset with its
// design matrices and random-effect membership. Design matrices are stored
// flat: X is site-major (X[j*POcc+k]) and Xp observation-major
// (Xp[i*PDet+k]). Random-effect membership arrays carry level codes; the
// level tables map each global level to its code and owning group.
type OccData struct {
	Y      []float64       `json:"y"`      // detections per observation
	K      []float64       `json:"k"`      // visit counts (binomial shape only)
	X      []float64       `json:"x"`      // occupancy design matrix
	Xp     []float64       `json:"xp"`     // detection design matrix
	Coords []spatial.Coord `json:"coords"` // site locations
	Site   []int           `json:"site"`   // owning site per observation

	J    int `json:"j"`
	NObs int `json:"nObs"`
	POcc int `json:"pOcc"`
	PDet int `json:"pDet"`

	// Random effects. XRE is site-major (XRE[j*POccRE+l]), XpRE is
	// observation-major. Empty slices mean no random effects on that side.
	POccRE         int   `json:"pOccRE"`
	PDetRE         int   `json:"pDetRE"`
	XRE            []int `json:"xre"`
	XpRE           []int `json:"xpre"`
	NOccRELong     []int `json:"nOccRELong"`     // level count per occupancy group
	NDetRELong     []int `json:"nDetRELong"`     // level count per detection group
	BetaLevelIndx  []int `json:"betaLevelIndx"`  // level code per occupancy level
	BetaStarIndx   []int `json:"betaStarIndx"`   // owning group per occupancy level
	AlphaLevelIndx []int `json:"alphaLevelIndx"` // level code per detection level
	AlphaStarIndx  []int `json:"alphaStarIndx"`  // owning group per detection level
}

// NOccRE is the total occupancy random-effect level count.
func (d *OccData) NOccRE() int {
	return len(d.BetaLevelIndx)
}

// NDetRE is the total detection random-effect level count.
func (d *OccData) NDetRE() int {
	return len(d.AlphaLevelIndx)
}

// BinomialShape reports whether the data is one binomial row per site (visit
// counts in K) rather than one Bernoulli row per visit.
func (d *OccData) BinomialShape() bool {
	return d.NObs == d.J
}

// Check returns an error if the data arrays are inconsistent.
func (d *OccData) Check() error {
	if d.J < 1 {
		return errors.Errorf("Data has %d sites", d.J)
	}
	if d.NObs < d.J {
		return errors.Errorf("Data has %d observations for %d sites", d.NObs, d.J)
	}
	if len(d.Coords) != d.J {
		return errors.Errorf("Coordinate count %d != site count %d", len(d.Coords), d.J)
	}
	if len(d.Y) != d.NObs {
		return errors.Errorf("Response length %d != observation count %d", len(d.Y), d.NObs)
	}
	if len(d.Site) != d.NObs {
		return errors.Errorf("Site index length %d != observation count %d", len(d.Site), d.NObs)
	}
	for i, s := range d.Site {
		if s < 0 || s >= d.J {
			return errors.Errorf("Observation %d references invalid site %d", i, s)
		}
	}
	if d.POcc < 1 || len(d.X) != d.J*d.POcc {
		return errors.Errorf("Occupancy design matrix sized %d, want %d x %d", len(d.X), d.J, d.POcc)
	}
	if d.PDet < 1 || len(d.Xp) != d.NObs*d.PDet {
		return errors.Errorf("Detection design matrix sized %d, want %d x %d", len(d.Xp), d.NObs, d.PDet)
	}
	if d.BinomialShape() {
		if len(d.K) != d.NObs {
			return errors.Errorf("Binomial-shape data needs visit counts: len(K)=%d, want %d", len(d.K), d.NObs)
		}
		for i, k := range d.K {
			if k < 1 {
				return errors.Errorf("Observation %d has visit count %g", i, k)
			}
			if d.Y[i] < 0 || d.Y[i] > k {
				return errors.Errorf("Observation %d has %g detections in %g visits", i, d.Y[i], k)
			}
		}
	} else {
		for i, y := range d.Y {
			if y != 0 && y != 1 {
				return errors.Errorf("Observation %d has non-binary response %g", i, y)
			}
		}
	}

	if d.POccRE > 0 {
		if len(d.XRE) != d.J*d.POccRE {
			return errors.Errorf("Occupancy RE membership sized %d, want %d x %d", len(d.XRE), d.J, d.POccRE)
		}
		if len(d.NOccRELong) != d.POccRE {
			return errors.Errorf("Occupancy RE group count %d != %d", len(d.NOccRELong), d.POccRE)
		}
		if len(d.BetaLevelIndx) != len(d.BetaStarIndx) {
			return errors.Errorf("Occupancy level tables sized %d and %d", len(d.BetaLevelIndx), len(d.BetaStarIndx))
		}
	}
	if d.PDetRE > 0 {
		if len(d.XpRE) != d.NObs*d.PDetRE {
			return errors.Errorf("Detection RE membership sized %d, want %d x %d", len(d.XpRE), d.NObs, d.PDetRE)
		}
		if len(d.NDetRELong) != d.PDetRE {
			return errors.Errorf("Detection RE group count %d != %d", len(d.NDetRELong), d.PDetRE)
		}
		if len(d.AlphaLevelIndx) != len(d.AlphaStarIndx) {
			return errors.Errorf("Detection level tables sized %d and %d", len(d.AlphaLevelIndx), len(d.AlphaStarIndx))
		}
	}

	return nil
}
