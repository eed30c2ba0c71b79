package spatial

import (
	"math"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Factors hold the NNGP sparse-precision representation of the spatial
// covariance: for every site, the conditional regression of the site onto
// its neighbor set (B, packed into the graph's arena layout) and the
// conditional variance (F). Factors carry no state of their own - they are a
// pure function of the coordinates, the neighbor graph, and the covariance
// parameters, and must be rebuilt whenever those parameters move.
type Factors struct {
	B []float64
	F []float64
}

// NewFactors allocates factors shaped for the given graph.
func NewFactors(g *NeighborGraph) *Factors {
	return &Factors{
		B: make([]float64, g.NIndx()),
		F: make([]float64, g.J),
	}
}

// Scratch is one worker's private workspace for UpdateBF: the local
// covariance block and cross-covariance vector for up to M neighbors, plus
// the Bessel working array the Matern kernel needs. Allocated once at setup
// and reused across every rebuild.
type Scratch struct {
	c    []float64
	cov  []float64
	bk   []float64
	chol mat.Cholesky
}

// NewScratch sizes a workspace for neighbor sets up to m and Matern
// smoothness up to nuMax.
func NewScratch(m int, nuMax float64) *Scratch {
	if m < 1 {
		m = 1
	}
	return &Scratch{
		c:   make([]float64, m),
		cov: make([]float64, m*m),
		bk:  make([]float64, BesselKScratchLen(nuMax)),
	}
}

// UpdateBF rebuilds the factors in place for the given covariance
// parameters. Each site's neighbor-block solve is independent, so sites are
// partitioned across workers; scratch must supply one workspace per worker.
// A non-positive-definite neighbor block is fatal: it means the covariance
// configuration is degenerate and the whole run must stop.
func UpdateBF(f *Factors, coords []Coord, g *NeighborGraph, sigmaSq, phi, nu float64, model CovModel, workers int, scratch []*Scratch) error {
	if workers < 1 {
		workers = 1
	}
	if workers > len(scratch) {
		workers = len(scratch)
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	chunk := (g.J + workers - 1) / workers

	for wk := 0; wk < workers; wk++ {
		lo := wk * chunk
		hi := lo + chunk
		if hi > g.J {
			hi = g.J
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(wk, lo, hi int) {
			defer wg.Done()
			errs[wk] = updateBFRange(f, coords, g, sigmaSq, phi, nu, model, scratch[wk], lo, hi)
		}(wk, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func updateBFRange(f *Factors, coords []Coord, g *NeighborGraph, sigmaSq, phi, nu float64, model CovModel, s *Scratch, lo, hi int) error {
	for i := lo; i < hi; i++ {
		nn := g.NNCount[i]
		if nn == 0 {
			// Site 0 conditions on nothing: unit of the DAG ordering.
			f.F[i] = sigmaSq
			continue
		}

		start := g.NNStart[i]
		nbrs := g.Neighbors(i)
		for k := 0; k < nn; k++ {
			d := Dist(coords[i], coords[nbrs[k]])
			s.c[k] = sigmaSq * Cor(d, phi, nu, model, s.bk)
		}

		sym := mat.NewSymDense(nn, s.cov[:nn*nn])
		for k := 0; k < nn; k++ {
			for l := 0; l <= k; l++ {
				d := Dist(coords[nbrs[k]], coords[nbrs[l]])
				sym.SetSym(k, l, sigmaSq*Cor(d, phi, nu, model, s.bk))
			}
		}

		if ok := s.chol.Factorize(sym); !ok {
			return errors.Errorf("Neighbor covariance block for site %d is not positive definite (sigmaSq=%g phi=%g nu=%g %s)", i, sigmaSq, phi, nu, model)
		}

		bi := mat.NewVecDense(nn, f.B[start:start+nn])
		if err := s.chol.SolveVecTo(bi, mat.NewVecDense(nn, s.c[:nn])); err != nil {
			return errors.Wrapf(err, "Neighbor block solve failed for site %d", i)
		}

		// Schur-complement residual variance.
		f.F[i] = sigmaSq - floats.Dot(f.B[start:start+nn], s.c[:nn])
	}
	return nil
}

// Resid returns site i's NNGP regression residual w[i] - B_i . w[neighbors].
func (f *Factors) Resid(g *NeighborGraph, w []float64, i int) float64 {
	e := 0.0
	start := g.NNStart[i]
	for k, nb := range g.Neighbors(i) {
		e += f.B[start+k] * w[nb]
	}
	return w[i] - e
}

// QuadFormLogDet computes the two reductions the spatial-parameter
// Metropolis step needs: sum resid^2/F and sum log F over all sites. The
// per-site terms are independent, so the sums are reduced across workers.
func (f *Factors) QuadFormLogDet(g *NeighborGraph, w []float64, workers int) (quad float64, logDet float64) {
	if workers < 1 {
		workers = 1
	}
	if workers > g.J {
		workers = g.J
	}

	quads := make([]float64, workers)
	logs := make([]float64, workers)
	var wg sync.WaitGroup
	chunk := (g.J + workers - 1) / workers

	for wk := 0; wk < workers; wk++ {
		lo := wk * chunk
		hi := lo + chunk
		if hi > g.J {
			hi = g.J
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(wk, lo, hi int) {
			defer wg.Done()
			q, l := 0.0, 0.0
			for j := lo; j < hi; j++ {
				b := f.Resid(g, w, j)
				q += b * b / f.F[j]
				l += math.Log(f.F[j])
			}
			quads[wk] = q
			logs[wk] = l
		}(wk, lo, hi)
	}
	wg.Wait()

	for wk := 0; wk < workers; wk++ {
		quad += quads[wk]
		logDet += logs[wk]
	}
	return quad, logDet
}
