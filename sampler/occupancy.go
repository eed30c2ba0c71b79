package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/spatialstats/occample/model"
	"github.com/spatialstats/occample/rand"
	"github.com/spatialstats/occample/spatial"
)

// SpatialOcc is the NNGP Polya-Gamma occupancy sampler. One iteration runs
// the Gibbs blocks in a fixed order: occupancy and detection auxiliary
// draws, regression coefficients, random-effect variances and levels, the
// sequential spatial-field sweep, the spatial covariance parameters
// (conjugate or Metropolis), and finally the latent occupancy states. The
// struct owns every piece of mutable chain state; parallel sections (factor
// rebuilds, reduction sums) only read shared inputs and write to disjoint
// per-site or per-worker slots.
type SpatialOcc struct {
	data   *model.OccData
	priors *model.Priors
	cfg    *model.RunConfig
	gen    *rand.Generator
	graph  *spatial.NeighborGraph

	cov      spatial.CovModel
	nTheta   int
	binomial bool // one binomial row per site vs one Bernoulli row per visit
	workers  int

	// Sampled state.
	beta, alpha []float64
	w, z        []float64
	theta       []float64
	sigmaSqPsi  []float64
	betaStar    []float64
	sigmaSqP    []float64
	alphaStar   []float64

	// Cached per-unit random-effect sums, rebuilt after every level sweep.
	betaStarSites []float64
	alphaStarObs  []float64

	// Random-effect index plumbing: unit x group -> global level, and the
	// first level of each group.
	betaStarLong   []int
	alphaStarLong  []int
	betaStarStart  []int
	alphaStarStart []int

	// Auxiliary variables, resampled every iteration.
	omegaOcc, omegaDet []float64
	kappaOcc, kappaDet []float64

	// Latent-occupancy bookkeeping.
	psi, detProb             []float64
	piProd, piProdWAIC, ySum []float64
	yWAIC                    []float64
	visits                   []int

	// NNGP factors: live and Metropolis candidate. On acceptance the two
	// are swapped, never copied.
	bf, bfCand *spatial.Factors
	scratch    []*spatial.Scratch

	mh *adaptiveMH

	// Prior precision terms, computed once.
	sigmaBetaInv    *mat.SymDense
	sigmaAlphaInv   *mat.SymDense
	sigmaBetaInvMu  []float64
	sigmaAlphaInvMu []float64

	// Per-iteration workspace for the coefficient updates.
	tmpSites    []float64
	tmpObs      []float64
	precOccBuf  []float64
	precDetBuf  []float64
	bOcc, muOcc []float64
	bDet, muDet []float64
	chol        mat.Cholesky
}

// NewSpatialOcc builds a sampler from validated data and configuration. The
// neighbor graph is treated as immutable input.
func NewSpatialOcc(data *model.OccData, cfg *model.RunConfig, graph *spatial.NeighborGraph, gen *rand.Generator) (*SpatialOcc, error) {
	if err := graph.Check(data.J); err != nil {
		return nil, errors.Wrap(err, "Bad neighbor graph")
	}

	s := &SpatialOcc{
		data:     data,
		priors:   &cfg.Priors,
		cfg:      cfg,
		gen:      gen,
		graph:    graph,
		cov:      cfg.Cov,
		nTheta:   cfg.Cov.NTheta(),
		binomial: data.BinomialShape(),
		workers:  cfg.NThreads,
	}
	if s.workers > data.J {
		s.workers = data.J
	}
	if s.workers < 1 {
		s.workers = 1
	}

	if err := s.initState(cfg.Inits); err != nil {
		return nil, err
	}
	if err := s.initPriors(); err != nil {
		return nil, err
	}
	if err := s.initRandomEffects(); err != nil {
		return nil, err
	}

	s.bf = spatial.NewFactors(graph)
	s.bfCand = spatial.NewFactors(graph)
	s.scratch = make([]*spatial.Scratch, s.workers)
	for i := range s.scratch {
		s.scratch[i] = spatial.NewScratch(graph.M, s.priors.NuB)
	}

	tuning := []float64{cfg.Tuning.SigmaSq, cfg.Tuning.Phi, cfg.Tuning.Nu}
	s.mh = newAdaptiveMH(s.nTheta, cfg.AcceptRate, tuning)

	if err := s.updateBF(s.bf, s.theta[sigmaSqIndx], s.theta[phiIndx], s.nu()); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SpatialOcc) initState(in model.Inits) error {
	d := s.data
	s.beta = make([]float64, d.POcc)
	copy(s.beta, in.Beta)
	s.alpha = make([]float64, d.PDet)
	copy(s.alpha, in.Alpha)

	s.w = make([]float64, d.J)
	copy(s.w, in.W)
	s.z = make([]float64, d.J)
	if len(in.Z) == d.J {
		copy(s.z, in.Z)
	} else {
		// Default: start occupied anywhere with a detection.
		for i, y := range d.Y {
			if y > 0 {
				s.z[d.Site[i]] = 1.0
			}
		}
	}
	for j, zj := range s.z {
		if zj != 0 && zj != 1 {
			return errors.Errorf("Initial z for site %d is %g, must be 0 or 1", j, zj)
		}
	}

	s.theta = make([]float64, s.nTheta)
	s.theta[sigmaSqIndx] = in.SigmaSq
	s.theta[phiIndx] = in.Phi
	if s.cov == spatial.Matern {
		s.theta[nuIndx] = in.Nu
	}

	s.omegaOcc = make([]float64, d.J)
	s.omegaDet = make([]float64, d.NObs)
	s.kappaOcc = make([]float64, d.J)
	s.kappaDet = make([]float64, d.NObs)
	s.psi = make([]float64, d.J)
	s.detProb = make([]float64, d.NObs)
	s.yWAIC = make([]float64, d.J)
	s.visits = make([]int, d.J)

	s.piProd = make([]float64, d.J)
	s.piProdWAIC = make([]float64, d.J)
	s.ySum = make([]float64, d.J)
	for j := range s.piProd {
		s.piProd[j] = 1.0
		s.piProdWAIC[j] = 1.0
	}

	s.tmpSites = make([]float64, d.J)
	s.tmpObs = make([]float64, d.NObs)
	s.precOccBuf = make([]float64, d.POcc*d.POcc)
	s.precDetBuf = make([]float64, d.PDet*d.PDet)
	s.bOcc = make([]float64, d.POcc)
	s.muOcc = make([]float64, d.POcc)
	s.bDet = make([]float64, d.PDet)
	s.muDet = make([]float64, d.PDet)

	return nil
}

// initPriors inverts the coefficient prior covariances once. A prior
// covariance that fails its Cholesky factorization is malformed input.
func (s *SpatialOcc) initPriors() error {
	d := s.data
	p := s.priors

	var err error
	s.sigmaBetaInv, s.sigmaBetaInvMu, err = invertPrior(p.SigmaBeta, p.MuBeta, d.POcc, "occupancy")
	if err != nil {
		return err
	}
	s.sigmaAlphaInv, s.sigmaAlphaInvMu, err = invertPrior(p.SigmaAlpha, p.MuAlpha, d.PDet, "detection")
	return err
}

func invertPrior(cov []float64, mu []float64, p int, name string) (*mat.SymDense, []float64, error) {
	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := 0; j <= i; j++ {
			sym.SetSym(i, j, cov[i*p+j])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, nil, errors.Errorf("Cholesky of the %s coefficient prior covariance failed - matrix is not positive definite", name)
	}
	inv := mat.NewSymDense(p, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, nil, errors.Wrapf(err, "Could not invert %s coefficient prior covariance", name)
	}

	var v mat.VecDense
	v.MulVec(inv, mat.NewVecDense(p, mu))
	invMu := make([]float64, p)
	copy(invMu, v.RawVector().Data)
	return inv, invMu, nil
}

// initRandomEffects resolves level codes into global level indices and
// builds the initial cached per-unit sums.
func (s *SpatialOcc) initRandomEffects() error {
	d := s.data

	s.sigmaSqPsi = initVariances(s.cfg.Inits.SigmaSqPsi, d.POccRE)
	s.sigmaSqP = initVariances(s.cfg.Inits.SigmaSqP, d.PDetRE)
	s.betaStar = make([]float64, d.NOccRE())
	copy(s.betaStar, s.cfg.Inits.BetaStar)
	s.alphaStar = make([]float64, d.NDetRE())
	copy(s.alphaStar, s.cfg.Inits.AlphaStar)

	s.betaStarSites = make([]float64, d.J)
	s.alphaStarObs = make([]float64, d.NObs)

	var err error
	s.betaStarLong, err = resolveLevels(d.XRE, d.BetaLevelIndx, d.J, d.POccRE, "occupancy")
	if err != nil {
		return err
	}
	s.alphaStarLong, err = resolveLevels(d.XpRE, d.AlphaLevelIndx, d.NObs, d.PDetRE, "detection")
	if err != nil {
		return err
	}

	s.betaStarStart = groupStarts(d.BetaStarIndx, d.POccRE)
	s.alphaStarStart = groupStarts(d.AlphaStarIndx, d.PDetRE)

	s.refreshBetaStarSites()
	s.refreshAlphaStarObs()
	return nil
}

func initVariances(init []float64, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		if i < len(init) && init[i] > 0 {
			v[i] = init[i]
		} else {
			v[i] = 1.0
		}
	}
	return v
}

// resolveLevels turns per-unit level codes into global level indices.
func resolveLevels(codes []int, levelIndx []int, units int, groups int, name string) ([]int, error) {
	long := make([]int, units*groups)
	for u := 0; u < units; u++ {
		for l := 0; l < groups; l++ {
			idx := which(codes[u*groups+l], levelIndx)
			if idx < 0 {
				return nil, errors.Errorf("Unit %d references unknown %s random-effect level %d", u, name, codes[u*groups+l])
			}
			long[u*groups+l] = idx
		}
	}
	return long, nil
}

func groupStarts(starIndx []int, groups int) []int {
	starts := make([]int, groups)
	for l := 0; l < groups; l++ {
		starts[l] = which(l, starIndx)
	}
	return starts
}

func which(val int, arr []int) int {
	for i, v := range arr {
		if v == val {
			return i
		}
	}
	return -1
}

// nu returns the current Matern smoothness, or 0 when the family has none.
func (s *SpatialOcc) nu() float64 {
	if s.cov == spatial.Matern {
		return s.theta[nuIndx]
	}
	return 0.0
}

// Theta implements Sampler.
func (s *SpatialOcc) Theta() []float64 {
	return s.theta
}

// NTheta is the spatial parameter count (2, or 3 for Matern).
func (s *SpatialOcc) NTheta() int {
	return s.nTheta
}

func (s *SpatialOcc) updateBF(f *spatial.Factors, sigmaSq, phi, nu float64) error {
	return spatial.UpdateBF(f, s.data.Coords, s.graph, sigmaSq, phi, nu, s.cov, s.workers, s.scratch)
}

// xOcc is site j's occupancy fixed-effect linear predictor.
func (s *SpatialOcc) xOcc(j int) float64 {
	p := s.data.POcc
	return floats.Dot(s.data.X[j*p:(j+1)*p], s.beta)
}

// xDet is observation i's detection fixed-effect linear predictor.
func (s *SpatialOcc) xDet(i int) float64 {
	p := s.data.PDet
	return floats.Dot(s.data.Xp[i*p:(i+1)*p], s.alpha)
}

// Step implements Sampler: one full Gibbs iteration in the canonical order.
func (s *SpatialOcc) Step() error {
	s.updateOmegaOcc()
	s.updateOmegaDet()

	if err := s.updateBeta(); err != nil {
		return err
	}
	if err := s.updateAlpha(); err != nil {
		return err
	}

	s.updateREVariances()
	s.updateBetaStar()
	s.updateAlphaStar()

	s.updateW()

	s.updateSigmaSq()
	if err := s.updateTheta(); err != nil {
		return err
	}

	s.updateZ()
	return nil
}

// updateOmegaOcc resamples the occupancy Polya-Gamma auxiliaries: one
// PG(1, linear predictor) draw per site.
func (s *SpatialOcc) updateOmegaOcc() {
	for j := 0; j < s.data.J; j++ {
		s.omegaOcc[j] = s.gen.PolyaGamma(1.0, s.xOcc(j)+s.w[j]+s.betaStarSites[j])
	}
}

// updateOmegaDet resamples the detection auxiliaries. Only observations at
// currently occupied sites matter; the others keep their stale draw, which
// is harmless because every downstream use is multiplied by z.
func (s *SpatialOcc) updateOmegaDet() {
	d := s.data
	for i := 0; i < d.NObs; i++ {
		if s.z[d.Site[i]] != 1.0 {
			continue
		}
		b := 1.0
		if s.binomial {
			b = d.K[i]
		}
		s.omegaDet[i] = s.gen.PolyaGamma(b, s.xDet(i)+s.alphaStarObs[i])
	}
}

// updateBeta draws the occupancy coefficients from their conditionally
// Gaussian full conditional. The pseudo-responses are computed even when the
// block is frozen because the random-effect and latent-state updates read
// kappaOcc.
func (s *SpatialOcc) updateBeta() error {
	d := s.data
	for j := 0; j < d.J; j++ {
		s.kappaOcc[j] = s.z[j] - 0.5
		s.tmpSites[j] = s.kappaOcc[j] - s.omegaOcc[j]*(s.w[j]+s.betaStarSites[j])
	}
	if s.cfg.Fixed.Beta {
		return nil
	}

	p := d.POcc
	for k := 0; k < p; k++ {
		b := s.sigmaBetaInvMu[k]
		for j := 0; j < d.J; j++ {
			b += d.X[j*p+k] * s.tmpSites[j]
		}
		s.bOcc[k] = b
	}

	prec := mat.NewSymDense(p, s.precOccBuf)
	for k := 0; k < p; k++ {
		for l := 0; l <= k; l++ {
			v := s.sigmaBetaInv.At(k, l)
			for j := 0; j < d.J; j++ {
				v += d.X[j*p+k] * d.X[j*p+l] * s.omegaOcc[j]
			}
			prec.SetSym(k, l, v)
		}
	}

	return s.drawCoef(s.beta, prec, s.bOcc, s.muOcc, "occupancy coefficient")
}

// updateAlpha draws the detection coefficients. Observations at unoccupied
// sites contribute nothing: their pseudo-response and precision terms are
// multiplied by z.
func (s *SpatialOcc) updateAlpha() error {
	d := s.data
	for i := 0; i < d.NObs; i++ {
		zi := s.z[d.Site[i]]
		if s.binomial {
			s.kappaDet[i] = (d.Y[i] - d.K[i]/2.0) * zi
		} else {
			s.kappaDet[i] = (d.Y[i] - 0.5) * zi
		}
		s.tmpObs[i] = (s.kappaDet[i] - s.omegaDet[i]*s.alphaStarObs[i]) * zi
	}
	if s.cfg.Fixed.Alpha {
		return nil
	}

	p := d.PDet
	for k := 0; k < p; k++ {
		b := s.sigmaAlphaInvMu[k]
		for i := 0; i < d.NObs; i++ {
			b += d.Xp[i*p+k] * s.tmpObs[i]
		}
		s.bDet[k] = b
	}

	prec := mat.NewSymDense(p, s.precDetBuf)
	for k := 0; k < p; k++ {
		for l := 0; l <= k; l++ {
			v := s.sigmaAlphaInv.At(k, l)
			for i := 0; i < d.NObs; i++ {
				v += d.Xp[i*p+k] * d.Xp[i*p+l] * s.omegaDet[i] * s.z[d.Site[i]]
			}
			prec.SetSym(k, l, v)
		}
	}

	return s.drawCoef(s.alpha, prec, s.bDet, s.muDet, "detection coefficient")
}

// drawCoef solves the precision system for the conditional mean and draws
// from the multivariate normal with that precision. A factorization failure
// here means the precision matrix degenerated and the run must stop.
func (s *SpatialOcc) drawCoef(dst []float64, prec *mat.SymDense, b []float64, mu []float64, what string) error {
	if ok := s.chol.Factorize(prec); !ok {
		return errors.Errorf("Cholesky of the %s precision failed - matrix is not positive definite", what)
	}
	muVec := mat.NewVecDense(len(mu), mu)
	if err := s.chol.SolveVecTo(muVec, mat.NewVecDense(len(b), b)); err != nil {
		return errors.Wrapf(err, "Solving the %s mean system failed", what)
	}

	mvn, ok := distmv.NewNormalPrecision(mu, prec, s.gen)
	if !ok {
		return errors.Errorf("Could not form the %s sampling distribution", what)
	}
	mvn.Rand(dst)
	return nil
}

// updateREVariances draws each random-effect group variance from its
// inverse-gamma full conditional.
func (s *SpatialOcc) updateREVariances() {
	d := s.data
	if d.POccRE > 0 && !s.cfg.Fixed.SigmaSqPsi {
		for l := 0; l < d.POccRE; l++ {
			lo := s.betaStarStart[l]
			n := d.NOccRELong[l]
			ss := 0.5 * floats.Dot(s.betaStar[lo:lo+n], s.betaStar[lo:lo+n])
			s.sigmaSqPsi[l] = s.gen.InvGamma(s.priors.SigmaSqPsiA[l]+float64(n)/2.0, s.priors.SigmaSqPsiB[l]+ss)
		}
	}
	if d.PDetRE > 0 && !s.cfg.Fixed.SigmaSqP {
		for l := 0; l < d.PDetRE; l++ {
			lo := s.alphaStarStart[l]
			n := d.NDetRELong[l]
			ss := 0.5 * floats.Dot(s.alphaStar[lo:lo+n], s.alphaStar[lo:lo+n])
			s.sigmaSqP[l] = s.gen.InvGamma(s.priors.SigmaSqPA[l]+float64(n)/2.0, s.priors.SigmaSqPB[l]+ss)
		}
	}
}

// updateBetaStar sweeps the occupancy random-effect levels. Information for
// level l comes only from sites whose membership in l's group is l; the mean
// is the precision-weighted residual after removing every other active
// level's contribution at the site.
func (s *SpatialOcc) updateBetaStar() {
	d := s.data
	if d.POccRE == 0 {
		return
	}

	for l := 0; l < d.NOccRE(); l++ {
		group := d.BetaStarIndx[l]
		num := 0.0
		prec := 0.0
		for j := 0; j < d.J; j++ {
			if d.XRE[j*d.POccRE+group] != d.BetaLevelIndx[l] {
				continue
			}
			others := 0.0
			for ll := 0; ll < d.POccRE; ll++ {
				others += s.betaStar[s.betaStarLong[j*d.POccRE+ll]]
			}
			num += s.kappaOcc[j] - (s.xOcc(j)+others-s.betaStar[l]+s.w[j])*s.omegaOcc[j]
			prec += s.omegaOcc[j]
		}
		prec += 1.0 / s.sigmaSqPsi[group]
		v := 1.0 / prec
		s.betaStar[l] = s.gen.Normal(v*num, math.Sqrt(v))
	}

	s.refreshBetaStarSites()
}

// updateAlphaStar sweeps the detection random-effect levels, restricted to
// observations at occupied sites.
func (s *SpatialOcc) updateAlphaStar() {
	d := s.data
	if d.PDetRE == 0 {
		return
	}

	for l := 0; l < d.NDetRE(); l++ {
		group := d.AlphaStarIndx[l]
		num := 0.0
		prec := 0.0
		for i := 0; i < d.NObs; i++ {
			if s.z[d.Site[i]] != 1.0 || d.XpRE[i*d.PDetRE+group] != d.AlphaLevelIndx[l] {
				continue
			}
			others := 0.0
			for ll := 0; ll < d.PDetRE; ll++ {
				others += s.alphaStar[s.alphaStarLong[i*d.PDetRE+ll]]
			}
			num += s.kappaDet[i] - (s.xDet(i)+others-s.alphaStar[l])*s.omegaDet[i]
			prec += s.omegaDet[i]
		}
		prec += 1.0 / s.sigmaSqP[group]
		v := 1.0 / prec
		s.alphaStar[l] = s.gen.Normal(v*num, math.Sqrt(v))
	}

	s.refreshAlphaStarObs()
}

// refreshBetaStarSites rebuilds the cached per-site sums of active
// occupancy levels. One pass over sites x groups, once per iteration.
func (s *SpatialOcc) refreshBetaStarSites() {
	d := s.data
	for j := 0; j < d.J; j++ {
		sum := 0.0
		for l := 0; l < d.POccRE; l++ {
			sum += s.betaStar[s.betaStarLong[j*d.POccRE+l]]
		}
		s.betaStarSites[j] = sum
	}
}

func (s *SpatialOcc) refreshAlphaStarObs() {
	d := s.data
	for i := 0; i < d.NObs; i++ {
		sum := 0.0
		for l := 0; l < d.PDetRE; l++ {
			sum += s.alphaStar[s.alphaStarLong[i*d.PDetRE+l]]
		}
		s.alphaStarObs[i] = sum
	}
}

// updateW is the sequential Gibbs sweep over the spatial random effects, in
// ascending site order. Each site's full conditional combines the occupancy
// pseudo-likelihood, its own NNGP regression onto its neighbors, and a
// parent term from every site that lists it as a neighbor. The sweep order
// is a hard requirement: later sites' parent terms must see the values
// already drawn this iteration.
func (s *SpatialOcc) updateW() {
	g := s.graph
	bf := s.bf

	for i := 0; i < g.J; i++ {
		a := 0.0
		v := 0.0
		refs := g.RefBy(i)
		pos := g.RefPos(i)
		for t, jj := range refs {
			start := g.NNStart[jj]
			b := 0.0
			for k, kk := range g.Neighbors(jj) {
				if kk != i {
					b += bf.B[start+k] * s.w[kk]
				}
			}
			bij := bf.B[start+pos[t]]
			a += bij * (s.w[jj] - b) / bf.F[jj]
			v += bij * bij / bf.F[jj]
		}

		e := 0.0
		start := g.NNStart[i]
		for k, nb := range g.Neighbors(i) {
			e += bf.B[start+k] * s.w[nb]
		}

		mu := s.kappaOcc[i] - s.omegaOcc[i]*(s.xOcc(i)+s.betaStarSites[i]) + e/bf.F[i] + a
		vr := 1.0 / (s.omegaOcc[i] + 1.0/bf.F[i] + v)
		s.w[i] = s.gen.Normal(mu*vr, math.Sqrt(vr))
	}
}

// updateSigmaSq draws the marginal spatial variance from its inverse-gamma
// full conditional. Only runs under the inverse-gamma prior; under the
// uniform prior sigmaSq moves in the Metropolis block instead.
func (s *SpatialOcc) updateSigmaSq() {
	if s.cfg.Fixed.SigmaSq || !s.priors.SigmaSqIG {
		return
	}

	quad, _ := s.bf.QuadFormLogDet(s.graph, s.w, s.workers)
	shape := s.priors.SigmaSqA + float64(s.data.J)/2.0
	scale := s.priors.SigmaSqB + 0.5*quad*s.theta[sigmaSqIndx]
	s.theta[sigmaSqIndx] = s.gen.InvGamma(shape, scale)
}

// updateTheta is the adaptive Metropolis step for phi (and nu under Matern,
// and sigmaSq under its uniform prior). Factors are rebuilt at the current
// parameters first so the comparison is exact even after a conjugate
// sigmaSq move, then rebuilt into the candidate buffers at the proposal. On
// acceptance the factor buffers are swapped, transferring ownership of the
// live factors without a copy.
func (s *SpatialOcc) updateTheta() error {
	fixed := s.cfg.Fixed
	if !fixed.Theta || !fixed.SigmaSq {
		if err := s.updateBF(s.bf, s.theta[sigmaSqIndx], s.theta[phiIndx], s.nu()); err != nil {
			return err
		}
	}
	if fixed.Theta {
		return nil
	}

	p := s.priors
	sigmaSqMH := !p.SigmaSqIG

	quad, logDet := s.bf.QuadFormLogDet(s.graph, s.w, s.workers)
	logPostCur := -0.5*logDet - 0.5*quad
	logPostCur += math.Log(s.theta[phiIndx]-p.PhiA) + math.Log(p.PhiB-s.theta[phiIndx])
	if s.cov == spatial.Matern {
		logPostCur += math.Log(s.theta[nuIndx]-p.NuA) + math.Log(p.NuB-s.theta[nuIndx])
	}
	if sigmaSqMH {
		logPostCur += math.Log(s.theta[sigmaSqIndx]-p.SigmaSqA) + math.Log(p.SigmaSqB-s.theta[sigmaSqIndx])
	}

	phiCand := s.gen.LogitNormal(s.theta[phiIndx], s.mh.step(phiIndx), p.PhiA, p.PhiB)
	nuCand := 0.0
	if s.cov == spatial.Matern {
		nuCand = s.gen.LogitNormal(s.theta[nuIndx], s.mh.step(nuIndx), p.NuA, p.NuB)
	}
	sigmaSqCand := s.theta[sigmaSqIndx]
	if sigmaSqMH {
		sigmaSqCand = s.gen.LogitNormal(s.theta[sigmaSqIndx], s.mh.step(sigmaSqIndx), p.SigmaSqA, p.SigmaSqB)
	}

	if err := s.updateBF(s.bfCand, sigmaSqCand, phiCand, nuCand); err != nil {
		return err
	}

	quadCand, logDetCand := s.bfCand.QuadFormLogDet(s.graph, s.w, s.workers)
	logPostCand := -0.5*logDetCand - 0.5*quadCand
	logPostCand += math.Log(phiCand-p.PhiA) + math.Log(p.PhiB-phiCand)
	if s.cov == spatial.Matern {
		logPostCand += math.Log(nuCand-p.NuA) + math.Log(p.NuB-nuCand)
	}
	if sigmaSqMH {
		logPostCand += math.Log(sigmaSqCand-p.SigmaSqA) + math.Log(p.SigmaSqB-sigmaSqCand)
	}

	if s.gen.Float64() <= math.Exp(logPostCand-logPostCur) {
		s.bf, s.bfCand = s.bfCand, s.bf

		s.theta[phiIndx] = phiCand
		s.mh.accepted(phiIndx)
		if s.cov == spatial.Matern {
			s.theta[nuIndx] = nuCand
			s.mh.accepted(nuIndx)
		}
		if sigmaSqMH {
			s.theta[sigmaSqIndx] = sigmaSqCand
			s.mh.accepted(sigmaSqIndx)
		}
	}
	return nil
}

// updateZ draws the latent occupancy states and accumulates the per-site
// integrated likelihood for WAIC. Sites with any detection are occupied
// with certainty and never drawn. The two accumulation branches reflect the
// two data shapes: binomial counts exponentiate by K and K-y, Bernoulli
// visits multiply per visit.
func (s *SpatialOcc) updateZ() {
	d := s.data

	if s.binomial {
		for i := 0; i < d.NObs; i++ {
			j := d.Site[i]
			s.detProb[i] = logitInv(s.xDet(i)+s.alphaStarObs[i], 0, 1)
			s.psi[j] = logitInv(s.xOcc(j)+s.w[j]+s.betaStarSites[j], 0, 1)
			s.piProd[j] = math.Pow(1.0-s.detProb[i], d.K[i])
			s.piProdWAIC[j] *= math.Pow(s.detProb[i], d.Y[i])
			s.piProdWAIC[j] *= math.Pow(1.0-s.detProb[i], d.K[i]-d.Y[i])
			s.ySum[j] = d.Y[i]
		}
	} else {
		for i := 0; i < d.NObs; i++ {
			j := d.Site[i]
			s.detProb[i] = logitInv(s.xDet(i)+s.alphaStarObs[i], 0, 1)
			if s.visits[j] == 0 {
				s.psi[j] = logitInv(s.xOcc(j)+s.w[j]+s.betaStarSites[j], 0, 1)
			}
			s.piProd[j] *= 1.0 - s.detProb[i]
			s.piProdWAIC[j] *= math.Pow(s.detProb[i], d.Y[i])
			s.piProdWAIC[j] *= math.Pow(1.0-s.detProb[i], 1.0-d.Y[i])
			s.ySum[j] += d.Y[i]
			s.visits[j]++
		}
	}

	for j := 0; j < d.J; j++ {
		psiNum := s.psi[j] * s.piProd[j]
		if s.ySum[j] == 0 {
			s.z[j] = s.gen.Bernoulli(psiNum / (psiNum + (1.0 - s.psi[j])))
			s.yWAIC[j] = (1.0 - s.psi[j]) + s.psi[j]*s.piProdWAIC[j]
		} else {
			s.z[j] = 1.0
			s.yWAIC[j] = s.psi[j] * s.piProdWAIC[j]
		}
		s.piProd[j] = 1.0
		s.piProdWAIC[j] = 1.0
		s.ySum[j] = 0.0
		s.visits[j] = 0
	}
}

// EndBatch implements Sampler.
func (s *SpatialOcc) EndBatch(batch int) (accept []float64, tuning []float64) {
	return s.mh.adaptBatch(batch, s.cfg.BatchLength)
}

// Record implements Sampler.
func (s *SpatialOcc) Record(st *Samples) {
	st.Beta = append(st.Beta, snapshot(s.beta))
	st.Alpha = append(st.Alpha, snapshot(s.alpha))
	st.Z = append(st.Z, snapshot(s.z))
	st.Psi = append(st.Psi, snapshot(s.psi))
	st.W = append(st.W, snapshot(s.w))
	st.Theta = append(st.Theta, snapshot(s.theta))
	st.Like = append(st.Like, snapshot(s.yWAIC))
	if s.data.POccRE > 0 {
		st.SigmaSqPsi = append(st.SigmaSqPsi, snapshot(s.sigmaSqPsi))
		st.BetaStar = append(st.BetaStar, snapshot(s.betaStar))
	}
	if s.data.PDetRE > 0 {
		st.SigmaSqP = append(st.SigmaSqP, snapshot(s.sigmaSqP))
		st.AlphaStar = append(st.AlphaStar, snapshot(s.alphaStar))
	}
}
