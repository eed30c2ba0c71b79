// Package sampler implements the MCMC engines: the NNGP Polya-Gamma
// occupancy Gibbs sampler, the adaptive Metropolis controller for the
// spatial covariance parameters, and the chain runner that drives batches,
// burn-in, thinning, and reporting.
package sampler

import "math"

// A Sampler advances a model state one full MCMC iteration at a time.
type Sampler interface {
	// Step runs one complete Gibbs iteration. Any error is fatal to the run.
	Step() error

	// EndBatch closes out a batch: it adapts the Metropolis tuning values
	// and returns the batch acceptance rates and the updated log tuning
	// values for the trajectory record.
	EndBatch(batch int) (accept []float64, tuning []float64)

	// Record copies the current state of every sampled quantity into the
	// store. Called only on retained (post-burn, thinned) iterations.
	Record(s *Samples)

	// Theta returns the current spatial covariance parameter vector
	// (shared storage, read only).
	Theta() []float64
}

// logit maps x in (a, b) onto the real line.
func logit(x float64, a float64, b float64) float64 {
	return math.Log((x - a) / (b - x))
}

// logitInv is the inverse of logit.
func logitInv(x float64, a float64, b float64) float64 {
	return a + (b-a)/(1.0+math.Exp(-x))
}
